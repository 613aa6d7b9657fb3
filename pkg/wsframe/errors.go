package wsframe

import "errors"

// ErrorKind tags every fallible operation in the engine with a stable,
// programmatically inspectable category, so callers can choose an
// outgoing close code without parsing error strings.
type ErrorKind string

const (
	KindExtensionsDisabled    ErrorKind = "extensions_disabled"
	KindExtensionParseError   ErrorKind = "extension_parse_error"
	KindInvalidHTTPMethod     ErrorKind = "invalid_http_method"
	KindInvalidHTTPVersion    ErrorKind = "invalid_http_version"
	KindMissingRequiredHeader ErrorKind = "missing_required_header"
	KindSHA1Library           ErrorKind = "sha1_library"
	KindInvalidArguments      ErrorKind = "invalid_arguments"
	KindInvalidOpcode         ErrorKind = "invalid_opcode"
	KindInvalidPayload        ErrorKind = "invalid_payload"
	KindInvalidRSVBit         ErrorKind = "invalid_rsv_bit"
	KindInvalidContinuation   ErrorKind = "invalid_continuation"
	KindFragmentedControl     ErrorKind = "fragmented_control"
	KindControlTooBig         ErrorKind = "control_too_big"
	KindMaskingRequired       ErrorKind = "masking_required"
	KindMaskingForbidden      ErrorKind = "masking_forbidden"
	KindNonMinimalEncoding    ErrorKind = "non_minimal_encoding"
	KindRequires64Bit         ErrorKind = "requires_64bit"
	KindInvalidUTF8           ErrorKind = "invalid_utf8"
	KindReservedCloseCode     ErrorKind = "reserved_close_code"
	KindInvalidCloseCode      ErrorKind = "invalid_close_code"
	KindReasonRequiresCode    ErrorKind = "reason_requires_code"
	KindGeneric               ErrorKind = "generic"
)

// protocolError pairs a stable ErrorKind with a human-readable message,
// the way the teacher's flat var-block of sentinel errors names one
// failure per variable; here the kind is attached so callers can branch
// on it without string matching.
type protocolError struct {
	kind ErrorKind
	msg  string
}

func (e *protocolError) Error() string { return "wsframe: " + e.msg }

func newErr(kind ErrorKind, msg string) error {
	return &protocolError{kind: kind, msg: msg}
}

// Kind recovers the ErrorKind carried by err, or KindGeneric if err did
// not originate from this package.
func Kind(err error) ErrorKind {
	var pe *protocolError
	if errors.As(err, &pe) {
		return pe.kind
	}
	return KindGeneric
}

// Sentinel errors, one per kind, mirroring the teacher's flat
// var Err... = errors.New(...) convention in protocol.go/upgrade.go.
var (
	ErrExtensionsDisabled    = newErr(KindExtensionsDisabled, "extension support is disabled")
	ErrExtensionParseError   = newErr(KindExtensionParseError, "could not parse extension offer")
	ErrInvalidHTTPMethod     = newErr(KindInvalidHTTPMethod, "handshake requires GET")
	ErrInvalidHTTPVersion    = newErr(KindInvalidHTTPVersion, "handshake requires HTTP/1.1")
	ErrMissingRequiredHeader = newErr(KindMissingRequiredHeader, "missing required header")
	ErrSHA1Library           = newErr(KindSHA1Library, "sha1 digest computation failed")
	ErrInvalidArguments      = newErr(KindInvalidArguments, "invalid arguments")
	ErrInvalidOpcode         = newErr(KindInvalidOpcode, "invalid or reserved opcode")
	ErrInvalidPayload        = newErr(KindInvalidPayload, "invalid payload")
	ErrInvalidRSVBit         = newErr(KindInvalidRSVBit, "reserved bit set without a matching extension")
	ErrInvalidContinuation   = newErr(KindInvalidContinuation, "continuation frame out of sequence")
	ErrFragmentedControl     = newErr(KindFragmentedControl, "control frames must not be fragmented")
	ErrControlTooBig         = newErr(KindControlTooBig, "control frame payload exceeds 125 bytes")
	ErrMaskingRequired       = newErr(KindMaskingRequired, "server requires masked frames")
	ErrMaskingForbidden      = newErr(KindMaskingForbidden, "client must not receive masked frames")
	ErrNonMinimalEncoding    = newErr(KindNonMinimalEncoding, "payload length is not minimally encoded")
	ErrRequires64Bit         = newErr(KindRequires64Bit, "payload length requires a 64-bit host")
	ErrInvalidUTF8           = newErr(KindInvalidUTF8, "invalid UTF-8 in text message")
	ErrReservedCloseCode     = newErr(KindReservedCloseCode, "close code is reserved")
	ErrInvalidCloseCode      = newErr(KindInvalidCloseCode, "close code is out of range")
	ErrReasonRequiresCode    = newErr(KindReasonRequiresCode, "close reason given without a status code")
	ErrGeneric               = newErr(KindGeneric, "generic protocol error")
)
