package codec

import "errors"

// ErrMalformed is the sentinel wrapped by every decode failure: truncated
// input, a non-minimal VarInt, trailing bytes, or a field over its hard
// cap. Callers that only care "is this wire blob garbage" can check
// errors.Is(err, ErrMalformed) without matching on the specific reason.
var ErrMalformed = errors.New("malformed encoding")

// MalformedEncoding describes why a decode was rejected.
type MalformedEncoding struct {
	Reason string
}

func (e *MalformedEncoding) Error() string {
	return "malformed encoding: " + e.Reason
}

func (e *MalformedEncoding) Unwrap() error {
	return ErrMalformed
}

func malformed(reason string) error {
	return &MalformedEncoding{Reason: reason}
}
