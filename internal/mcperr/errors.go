// Package mcperr defines the error kinds and exit-condition types shared
// across the transport, protocol, and scan packages, following
// the teacher's plain sentinel-wrapping idiom (fmt.Errorf("...: %w", err))
// but with a typed Kind so callers can branch with errors.As.
package mcperr

import "fmt"

// Kind classifies an Error for propagation-policy decisions.
type Kind int

const (
	KindTransport Kind = iota
	KindProtocol
	KindTimeout
	KindAuth
	KindRuleCompilation
	KindValidation
	KindCancelled
	KindBusy
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "Transport"
	case KindProtocol:
		return "Protocol"
	case KindTimeout:
		return "Timeout"
	case KindAuth:
		return "Auth"
	case KindRuleCompilation:
		return "RuleCompilation"
	case KindValidation:
		return "Validation"
	case KindCancelled:
		return "Cancelled"
	case KindBusy:
		return "Busy"
	default:
		return "Unknown"
	}
}

// ConnectStage names where in the connection handshake a ConnectError
// occurred.
type ConnectStage string

const (
	StageDNS                 ConnectStage = "dns"
	StageTCP                 ConnectStage = "tcp"
	StageTLS                 ConnectStage = "tls"
	StageSSEEndpointAnnounce ConnectStage = "sse_endpoint_announce"
	StageInitialize          ConnectStage = "initialize"
)

// Error is the uniform wrapping error type for this module.
type Error struct {
	Kind    Kind
	Stage   ConnectStage // only meaningful for KindTransport connect failures
	Code    int          // JSON-RPC error code, only meaningful for KindProtocol
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s error at stage %s: %s", e.Kind, e.Stage, e.Message)
	}
	if e.Kind == KindProtocol {
		return fmt.Sprintf("protocol error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Timeout builds a KindTimeout error for a request that exceeded its
// per-call budget.
func Timeout(message string) *Error {
	return &Error{Kind: KindTimeout, Message: message}
}

// Protocol builds a KindProtocol error from a JSON-RPC error response of
// any code, -32601 (method not found) included; the enumeration methods
// turn a -32601 error into an empty result instead of returning it.
func Protocol(code int, message string) *Error {
	return &Error{Kind: KindProtocol, Code: code, Message: message}
}

// Connect builds a KindTransport error tagged with the failing stage.
func Connect(stage ConnectStage, err error) *Error {
	msg := string(stage)
	if err != nil {
		msg = err.Error()
	}
	return &Error{Kind: KindTransport, Stage: stage, Message: msg, Err: err}
}

// InvalidAuth builds a KindAuth error for auth configuration rejected due
// to non-ISO-8859-1 header content.
func InvalidAuth(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

// Busy builds a KindBusy error for a scan requested while one is active.
func Busy(message string) *Error {
	return &Error{Kind: KindBusy, Message: message}
}

// Cancelled builds a KindCancelled error for a caller-observable
// cancellation (distinct from the phase-log "cancelled" entry, which never
// raises an error to the ScanOrchestrator's caller).
func Cancelled(message string) *Error {
	return &Error{Kind: KindCancelled, Message: message}
}

// Validation builds a KindValidation error for a rejected user-authored
// rule or malformed input.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}
