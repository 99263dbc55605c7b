package scanning

import (
	"errors"
	"fmt"
)

// Kind classifies an identification failure
type Kind int

const (
	// KindUpstream means the model call failed or did not complete
	KindUpstream Kind = iota
	// KindMalformed means the model answered with something unusable
	KindMalformed
	// KindEscalation means the answer was not trustworthy enough without a manual name
	KindEscalation
)

func (k Kind) String() string {
	switch k {
	case KindUpstream:
		return "upstream failure"
	case KindMalformed:
		return "malformed response"
	case KindEscalation:
		return "escalation"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned by Identify for every failure
type Error struct {
	Kind   Kind
	Msg    string
	Result *IdentificationResult // set for escalations so the caller can show what the model saw
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func upstreamError(msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Msg: msg, Err: err}
}

func malformedError(msg string, err error) *Error {
	return &Error{Kind: KindMalformed, Msg: msg, Err: err}
}

func escalationError(result *IdentificationResult) *Error {
	return &Error{Kind: KindEscalation, Msg: "low confidence identification", Result: result}
}

// KindOf returns the Kind of err, and false if err is not an *Error
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsEscalation reports whether err is a confidence escalation
func IsEscalation(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindEscalation
}
