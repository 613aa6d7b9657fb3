// Command wsecho is a demonstration WebSocket echo server built on
// pkg/wsframe: it accepts the opening handshake over net/http, hijacks
// the connection, and runs the inbound processor/outbound builder pair
// directly against the raw TCP stream.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/debug"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli/v3"

	"github.com/rs/zerolog"

	"github.com/watt-toolkit/wsframe/internal/config"
	"github.com/watt-toolkit/wsframe/pkg/deflate"
	"github.com/watt-toolkit/wsframe/pkg/wsframe"
)

const (
	configDirName  = "wsecho"
	configFileName = "config.toml"
)

func main() {
	bi, _ := debug.ReadBuildInfo()

	cmd := &cli.Command{
		Name:    "wsecho",
		Usage:   "demo WebSocket echo server built on pkg/wsframe",
		Version: versionOf(bi),
		Flags:   config.Flags(configFile()),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			l := newLogger(cmd.Bool("pretty-log"))
			return run(ctx, cmd, l)
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func versionOf(bi *debug.BuildInfo) string {
	if bi == nil {
		return "dev"
	}
	return bi.Main.Version
}

func configFile() altsrc.StringSourcer {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	path := dir + "/" + configDirName + "/" + configFileName
	return altsrc.StringSourcer(path)
}

func newLogger(pretty bool) zerolog.Logger {
	if pretty {
		return zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func run(ctx context.Context, cmd *cli.Command, l zerolog.Logger) error {
	addr := cmd.String("listen")
	maxMessageBytes := cmd.Int("max-message-bytes")
	compressionEnabled := cmd.Bool("compression")

	srv := &server{
		buffers:            wsframe.NewPooledBufferManager(),
		maxMessageBytes:    int(maxMessageBytes),
		compressionEnabled: compressionEnabled,
		log:                l,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", srv.handleUpgrade)

	l.Info().Str("addr", addr).Bool("compression", compressionEnabled).Msg("wsecho listening")
	httpSrv := &http.Server{Addr: addr, Handler: mux}
	return httpSrv.ListenAndServe()
}

// server holds the collaborators shared by every connection: a single
// buffer manager (bytebufferpool.Pool is itself safe under concurrent
// use) and the operator's chosen limits.
type server struct {
	buffers            *wsframe.PooledBufferManager
	maxMessageBytes    int
	compressionEnabled bool
	log                zerolog.Logger
}

func (s *server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	req := &httpHandshakeRequest{r: r}
	resp := &httpHandshakeResponse{header: w.Header()}

	if err := wsframe.ProcessHandshake(req, resp); err != nil {
		s.log.Warn().Err(err).Str("kind", string(wsframe.Kind(err))).Msg("handshake rejected")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "hijacking not supported", http.StatusInternalServerError)
		return
	}
	conn, brw, err := hj.Hijack()
	if err != nil {
		s.log.Error().Err(err).Msg("hijack failed")
		return
	}
	defer conn.Close()

	if err := writeHandshakeResponse(brw, resp); err != nil {
		s.log.Error().Err(err).Msg("writing handshake response failed")
		return
	}

	s.serveConn(conn, brw, req.offers())
}

func writeHandshakeResponse(brw *bufio.ReadWriter, resp *httpHandshakeResponse) error {
	if _, err := brw.WriteString("HTTP/1.1 101 Switching Protocols\r\n"); err != nil {
		return err
	}
	for k, vs := range resp.header {
		for _, v := range vs {
			if _, err := brw.WriteString(k + ": " + v + "\r\n"); err != nil {
				return err
			}
		}
	}
	if _, err := brw.WriteString("\r\n"); err != nil {
		return err
	}
	return brw.Flush()
}

func (s *server) serveConn(conn net.Conn, brw *bufio.ReadWriter, offers []wsframe.ExtensionOffer) {
	compressor := deflate.New(s.compressionEnabled, -1)
	negotiator := wsframe.Negotiator{Enabled: s.compressionEnabled, Compressor: compressor}
	negotiated, _ := negotiator.Negotiate(offers)
	if negotiated.SoftError != nil {
		s.log.Warn().Err(negotiated.SoftError).Msg("extension offer dropped")
	}

	proc := wsframe.NewProcessor(true, s.buffers, negotiated.CompressionAccepted, compressor)
	builder := wsframe.NewBuilder(true, negotiated.CompressionAccepted, compressor, wsframe.CryptoRandSource{})

	in := make([]byte, 4096)
	out := s.buffers.GetMessage(wsframe.OpcodeText, 0)
	defer s.buffers.Release(out)

	for {
		n, err := brw.Read(in)
		if n > 0 {
			if !s.consumeAll(proc, builder, conn, out, in[:n]) {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// consumeAll drives proc to completion over chunk, echoing every
// finished message back over conn. It returns false if a fatal error
// or write failure means the connection should close.
func (s *server) consumeAll(proc *wsframe.Processor, builder *wsframe.Builder, conn net.Conn, out *wsframe.MessageBuffer, chunk []byte) bool {
	for len(chunk) > 0 {
		n, err := proc.Consume(chunk)
		chunk = chunk[n:]
		if err != nil {
			s.log.Warn().Err(err).Str("kind", string(wsframe.Kind(err))).Msg("protocol error")
			s.sendClose(builder, conn, out, err)
			return false
		}
		if proc.State() == wsframe.StateReady {
			msg := proc.TakeMessage()
			if s.maxMessageBytes > 0 && len(msg.Payload()) > s.maxMessageBytes {
				s.buffers.Release(msg)
				if err := builder.PrepareClose(wsframe.CloseMessageTooBig, "", out); err == nil {
					s.write(conn, out)
				}
				return false
			}
			if !s.echo(builder, conn, out, msg) {
				return false
			}
		}
	}
	return true
}

func (s *server) echo(builder *wsframe.Builder, conn net.Conn, out *wsframe.MessageBuffer, msg *wsframe.MessageBuffer) bool {
	defer s.buffers.Release(msg)

	switch msg.Opcode() {
	case wsframe.OpcodePing:
		if err := builder.PreparePong(msg.Payload(), out); err != nil {
			s.log.Error().Err(err).Msg("building pong")
			return false
		}
	case wsframe.OpcodeClose:
		if err := builder.PrepareClose(wsframe.CloseNormalClosure, "", out); err != nil {
			s.log.Error().Err(err).Msg("building close")
			return false
		}
		s.write(conn, out)
		return false
	case wsframe.OpcodePong:
		return true
	default:
		om := wsframe.OutboundMessage{
			Opcode:              msg.Opcode(),
			Payload:             msg.Payload(),
			Fin:                 true,
			RequestsCompression: msg.Compressed(),
		}
		if err := builder.PrepareDataFrame(om, out); err != nil {
			s.log.Error().Err(err).Msg("building echo frame")
			return false
		}
	}
	return s.write(conn, out)
}

func (s *server) sendClose(builder *wsframe.Builder, conn net.Conn, out *wsframe.MessageBuffer, cause error) {
	code := wsframe.CloseProtocolError
	if wsframe.Kind(cause) == wsframe.KindInvalidUTF8 {
		code = wsframe.CloseInvalidFramePayload
	}
	if err := builder.PrepareClose(code, "", out); err != nil {
		return
	}
	s.write(conn, out)
}

func (s *server) write(conn net.Conn, out *wsframe.MessageBuffer) bool {
	if _, err := conn.Write(out.Header()); err != nil {
		return false
	}
	if _, err := conn.Write(out.Payload()); err != nil {
		return false
	}
	return true
}

// httpHandshakeRequest adapts *http.Request to wsframe.HandshakeRequest.
type httpHandshakeRequest struct{ r *http.Request }

func (h *httpHandshakeRequest) Method() string      { return h.r.Method }
func (h *httpHandshakeRequest) HTTPVersion() string  { return h.r.Proto }
func (h *httpHandshakeRequest) Header(name string) string {
	return h.r.Header.Get(name)
}
func (h *httpHandshakeRequest) ParameterList(name string) []string {
	return h.r.Header.Values(name)
}
func (h *httpHandshakeRequest) URI() string { return h.r.RequestURI }

func (h *httpHandshakeRequest) offers() []wsframe.ExtensionOffer {
	offers, _ := wsframe.ParseExtensionOffers(h.r.Header.Get("Sec-WebSocket-Extensions"))
	return offers
}

// httpHandshakeResponse adapts http.Header to wsframe.HandshakeResponse.
type httpHandshakeResponse struct{ header http.Header }

func (h *httpHandshakeResponse) ReplaceHeader(name, value string) {
	h.header.Set(name, value)
}
func (h *httpHandshakeResponse) AppendHeader(name, value string) {
	h.header.Add(name, value)
}
