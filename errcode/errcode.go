package errcode

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK Code = "ok"

	// Control stream outcomes. These unwind exactly one frame, from the
	// transfer engine to the dispatcher; they are never retried.
	Detached  Code = "detached"
	Suspended Code = "suspended"
	Preempted Code = "preempted"

	// Two-wire bus outcomes.
	AddressNak Code = "address_nak"
	Timeout    Code = "timeout"

	InvalidParams  Code = "invalid_params"
	InvalidPayload Code = "invalid_payload"
	Unsupported    Code = "unsupported"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}
