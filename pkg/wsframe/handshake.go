package wsframe

import (
	"crypto/sha1"
	"encoding/base64"
	"strings"
)

// HandshakeRequest is the accessor contract the handshake helper relies
// on from an external HTTP request parser (§6) — only these five
// members are read; the core never parses HTTP itself.
type HandshakeRequest interface {
	Method() string
	HTTPVersion() string
	Header(name string) string
	ParameterList(name string) []string
	URI() string
}

// HandshakeResponse is the accessor contract for building the upgrade
// response, again provided by an external HTTP layer (§6).
type HandshakeResponse interface {
	ReplaceHeader(name, value string)
	AppendHeader(name, value string)
}

// ValidateHandshake checks the preconditions RFC 6455 4.2.1 places on
// an opening handshake request: GET, HTTP/1.1, and a non-empty
// Sec-WebSocket-Key.
func ValidateHandshake(req HandshakeRequest) error {
	if req.Method() != "GET" {
		return ErrInvalidHTTPMethod
	}
	if req.HTTPVersion() != "HTTP/1.1" {
		return ErrInvalidHTTPVersion
	}
	if req.Header("Sec-WebSocket-Key") == "" {
		return ErrMissingRequiredHeader
	}
	return nil
}

// ComputeAcceptKey computes the Sec-WebSocket-Accept value for a given
// Sec-WebSocket-Key, per RFC 6455 1.3: base64(SHA1(key + GUID)).
func ComputeAcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// ProcessHandshake runs ValidateHandshake and, on success, sets the
// response headers required to complete the upgrade: Sec-WebSocket-
// Accept, Upgrade, and Connection (§4.4).
func ProcessHandshake(req HandshakeRequest, resp HandshakeResponse) error {
	if err := ValidateHandshake(req); err != nil {
		return err
	}
	accept := ComputeAcceptKey(req.Header("Sec-WebSocket-Key"))
	resp.ReplaceHeader("Sec-WebSocket-Accept", accept)
	resp.AppendHeader("Upgrade", "websocket")
	resp.AppendHeader("Connection", "Upgrade")
	return nil
}

// SplitHostPort splits a Host header value into (host, port), per the
// rule in §6: the last ':' preceded by ']' (or no ']' at all) separates
// host and port; otherwise the whole value is the host (a bracketed
// IPv6 literal with no port after the ']' is returned whole).
func SplitHostPort(hostHeader string) (host, port string) {
	if hostHeader == "" {
		return "", ""
	}

	closeBracket := strings.LastIndexByte(hostHeader, ']')
	if closeBracket == -1 {
		// No IPv6 bracket: the last colon, if any, separates the port.
		if i := strings.LastIndexByte(hostHeader, ':'); i != -1 {
			return hostHeader[:i], hostHeader[i+1:]
		}
		return hostHeader, ""
	}

	// IPv6 literal: a port can only appear after the closing bracket.
	rest := hostHeader[closeBracket+1:]
	if strings.HasPrefix(rest, ":") {
		return hostHeader[:closeBracket+1], rest[1:]
	}
	return hostHeader, ""
}
