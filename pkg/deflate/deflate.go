// Package deflate implements the permessage-deflate extension (RFC
// 7692) as a wsframe.Compressor, backed by klauspost/compress/flate
// rather than the standard library's compress/flate: the klauspost
// fork is the one the surrounding example pack already depends on, and
// its Reader/Writer are drop-in compatible with stdlib flate's wire
// format, so the DEFLATE bytes on the connection are unaffected.
package deflate

import (
	"bytes"
	"io"
	"strconv"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/watt-toolkit/wsframe/pkg/wsframe"
)

// deflateTail is the 4-byte trailer RFC 7692 §7.2.1 says a compressor
// MUST append and a decompressor MUST remove: an empty DEFLATE
// non-final block, equivalent to syncing the stream without closing it.
var deflateTail = []byte{0x00, 0x00, 0xff, 0xff}

// Extension is a permessage-deflate Compressor. The zero value is not
// ready to use; construct one with New.
type Extension struct {
	enabled                 bool
	serverNoContextTakeover bool
	clientNoContextTakeover bool
	level                   int

	writers sync.Pool
	readers sync.Pool
}

// New constructs an Extension at the given flate compression level
// (flate.DefaultCompression is a reasonable default). enabled controls
// IsEnabled; the extension is always IsImplemented.
func New(enabled bool, level int) *Extension {
	e := &Extension{enabled: enabled, level: level}
	e.writers.New = func() any {
		w, _ := flate.NewWriter(io.Discard, e.level)
		return w
	}
	e.readers.New = func() any {
		return flate.NewReader(bytes.NewReader(nil))
	}
	return e
}

func (e *Extension) IsImplemented() bool { return true }
func (e *Extension) IsEnabled() bool     { return e.enabled }

// Negotiate inspects the offered permessage-deflate parameters and
// decides whether to accept the extension. This engine never requires
// a non-default max_window_bits, and always honors a peer's requested
// no_context_takeover; it never asks the peer to grant one back.
func (e *Extension) Negotiate(params map[string]string) (string, error) {
	if !e.enabled {
		return "", errNotEnabled
	}

	fragment := "permessage-deflate"
	if _, ok := params["client_no_context_takeover"]; ok {
		e.clientNoContextTakeover = true
		fragment += "; client_no_context_takeover"
	}
	if _, ok := params["server_no_context_takeover"]; ok {
		e.serverNoContextTakeover = true
		fragment += "; server_no_context_takeover"
	}
	if v, ok := params["client_max_window_bits"]; ok {
		if _, err := strconv.Atoi(v); err != nil && v != "" {
			return "", errBadWindowBits
		}
	}
	return fragment, nil
}

// Compress appends the DEFLATE-compressed, trailer-stripped form of in
// to out, per RFC 7692 §7.2.1.
func (e *Extension) Compress(in []byte, out []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := e.writers.Get().(*flate.Writer)
	defer e.writers.Put(w)
	w.Reset(&buf)

	if _, err := w.Write(in); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}

	compressed := bytes.TrimSuffix(buf.Bytes(), deflateTail)
	out = append(out, compressed...)

	if e.serverNoContextTakeover {
		w.Reset(io.Discard)
	}
	return out, nil
}

// inflateState is one inbound message's decompression state: the raw
// compressed bytes accumulate here, chunk by chunk, across however many
// frames and Consume calls the message's wire bytes were split into,
// and are only run through flate once the message's FIN frame arrives
// and Close appends the trailer.
type inflateState struct {
	e   *Extension
	buf bytes.Buffer
}

// NewInflater starts decompression state for one inbound message.
func (e *Extension) NewInflater() wsframe.Inflater {
	return &inflateState{e: e}
}

func (s *inflateState) Write(chunk []byte) error {
	s.buf.Write(chunk)
	return nil
}

// Close appends the standard trailer to the message's accumulated
// compressed bytes, inflates the whole thing in one pass, and appends
// the result to out. An empty final block follows the trailer so the
// flate reader sees a terminated stream instead of an unexpected EOF.
func (s *inflateState) Close(out []byte) ([]byte, error) {
	s.buf.Write(deflateTail)
	s.buf.Write([]byte{0x01, 0x00, 0x00, 0xff, 0xff})

	r := s.e.readers.Get().(flate.Resetter)
	defer s.e.readers.Put(r)
	if err := r.Reset(&s.buf, nil); err != nil {
		return nil, err
	}

	buf := bytes.NewBuffer(out)
	if _, err := io.Copy(buf, r.(io.Reader)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var (
	errNotEnabled    = deflateError{"permessage-deflate is not enabled"}
	errBadWindowBits = deflateError{"invalid client_max_window_bits"}
)

type deflateError struct{ msg string }

func (e deflateError) Error() string { return "deflate: " + e.msg }
