package wsframe

import "strings"

// ExtensionOffer is one parsed entry from a Sec-WebSocket-Extensions
// header: an extension token plus its parameters (bare parameters map
// to an empty string value).
type ExtensionOffer struct {
	Name   string
	Params map[string]string
}

// ParseExtensionOffers parses a raw Sec-WebSocket-Extensions header
// value into a list of offers. Offers are comma-separated; within an
// offer, the extension token and its parameters are separated by ';'.
func ParseExtensionOffers(header string) ([]ExtensionOffer, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil
	}

	var offers []ExtensionOffer
	for _, rawOffer := range strings.Split(header, ",") {
		parts := strings.Split(rawOffer, ";")
		name := strings.TrimSpace(parts[0])
		if name == "" {
			return nil, ErrExtensionParseError
		}
		offer := ExtensionOffer{Name: name, Params: map[string]string{}}
		for _, rawParam := range parts[1:] {
			rawParam = strings.TrimSpace(rawParam)
			if rawParam == "" {
				continue
			}
			if eq := strings.IndexByte(rawParam, '='); eq != -1 {
				key := strings.TrimSpace(rawParam[:eq])
				val := strings.Trim(strings.TrimSpace(rawParam[eq+1:]), `"`)
				offer.Params[key] = val
			} else {
				offer.Params[rawParam] = ""
			}
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

// PermessageCompressToken is the extension token this engine recognizes
// (RFC 7692 names it permessage-deflate on the wire; the spec calls the
// family permessage-compress to allow a pluggable backend).
const PermessageCompressToken = "permessage-deflate"

// Compressor is the pluggable permessage-compress collaborator (§6).
// Its wire details (window bits, context takeover) are opaque to the
// negotiator and the inbound/outbound state machines: they only call
// Negotiate, Compress, and NewInflater.
type Compressor interface {
	// IsImplemented reports whether this build carries a working
	// compressor at all (a no-op stub may return false).
	IsImplemented() bool
	// IsEnabled reports whether the operator has turned compression on.
	IsEnabled() bool
	// Negotiate inspects the offered parameters and returns the
	// response fragment to advertise, or an error if the offer cannot
	// be satisfied.
	Negotiate(params map[string]string) (responseFragment string, err error)
	// Compress appends the compressed form of in to out. in is always
	// one complete, unfragmented message: outbound messages are never
	// split across PrepareDataFrame calls.
	Compress(in []byte, out []byte) ([]byte, error)
	// NewInflater starts decompression state for one inbound message.
	// A message's compressed bytes may arrive across several frames
	// (RSV1 is only set on the first) and across several Consume calls
	// within a single frame; the returned Inflater is fed every chunk
	// belonging to the message and finalized exactly once, at the
	// message's FIN frame.
	NewInflater() Inflater
}

// Inflater holds the decompression state for a single inbound message.
type Inflater interface {
	// Write feeds the next chunk of that message's compressed bytes,
	// in order, with no trailer attached.
	Write(chunk []byte) error
	// Close appends the RFC 7692 sync-flush trailer, inflates the
	// accumulated stream, and appends the result to out.
	Close(out []byte) ([]byte, error)
}

// Negotiator runs the extension negotiation described in §4.5.
type Negotiator struct {
	// Enabled is the global extension support toggle. When false,
	// Negotiate returns ErrExtensionsDisabled without inspecting offers.
	Enabled bool
	// Compressor is the permessage-compress collaborator. Nil means no
	// compressor is configured, equivalent to IsImplemented()==false.
	Compressor Compressor
}

// NegotiationResult carries the outcome of negotiating one handshake's
// worth of extension offers.
type NegotiationResult struct {
	// ResponseHeader is the aggregated Sec-WebSocket-Extensions value
	// to send back, or "" if nothing was accepted.
	ResponseHeader string
	// CompressionAccepted reports whether permessage-compress was
	// negotiated; the outbound/inbound state machines consult this to
	// decide whether RSV1 carries meaning on this connection.
	CompressionAccepted bool
	// SoftError carries a non-fatal per-extension negotiation failure
	// (decided Open Question, §9): the handshake still succeeds, but
	// the caller may want to log why an offered extension was dropped.
	SoftError error
}

// Negotiate implements §4.5: if extensions are globally disabled,
// return ErrExtensionsDisabled without touching offers. Otherwise, for
// each known extension present in offers, delegate to its collaborator;
// a per-extension failure drops that extension (empty fragment) but
// does not fail the overall negotiation.
func (n *Negotiator) Negotiate(offers []ExtensionOffer) (NegotiationResult, error) {
	if !n.Enabled {
		return NegotiationResult{}, ErrExtensionsDisabled
	}

	var result NegotiationResult
	for _, offer := range offers {
		if offer.Name != PermessageCompressToken {
			continue // only permessage-compress is recognized, per §6
		}
		if n.Compressor == nil || !n.Compressor.IsImplemented() || !n.Compressor.IsEnabled() {
			continue
		}
		fragment, err := n.Compressor.Negotiate(offer.Params)
		if err != nil {
			result.SoftError = err
			continue
		}
		result.ResponseHeader = fragment
		result.CompressionAccepted = true
	}
	return result, nil
}
