// Package xerror holds the sentinel error kinds the connection engine and
// packet codecs return, so callers can classify failures with errors.Is
// rather than string matching.
package xerror

import (
	"errors"
	"fmt"

	"github.com/beaconmq/beacon/internal/code"
)

var (
	// ErrMalformed is returned by a packet codec on structural decode failure.
	ErrMalformed = errors.New("xerror: malformed packet")

	// ErrV3UnacceptableProtocolVersion: CONNECT named a protocol level this
	// server does not recognize (V3.1/V3.1.1/V5 only).
	ErrV3UnacceptableProtocolVersion = errors.New("xerror: unacceptable protocol version")

	// ErrV3IdentifierRejected: empty client id with CleanSession=false on a
	// pre-5 CONNECT.
	ErrV3IdentifierRejected = errors.New("xerror: identifier rejected")

	// ProtocolNotConnected: any non-CONNECT packet before the handshake
	// completed.
	ProtocolNotConnected = errors.New("xerror: not connected")

	// ProtocolBadConnect: a second CONNECT on an already-connected state.
	ProtocolBadConnect = errors.New("xerror: duplicate connect")

	// ProtocolError: validator semantic failure carrying a reason code.
	ProtocolError = errors.New("xerror: protocol error")

	// NotAuthorized: authentication or ACL denial.
	NotAuthorized = errors.New("xerror: not authorized")

	// ClientIdentifierNotValid: client-id policy rejection.
	ClientIdentifierNotValid = errors.New("xerror: client identifier not valid")

	// UnspecifiedError: session-open (or other collaborator) failure during
	// handshake with no more specific reason.
	UnspecifiedError = errors.New("xerror: unspecified error")

	// SendFailure: send_fn returned an error; the owning task must shut down.
	SendFailure = errors.New("xerror: send failure")
)

// Coded pairs a sentinel error with the wire reason code the caller should
// emit to the client (CONNACK/PUBACK/PUBREC/SUBACK/DISCONNECT).
type Coded struct {
	Err    error
	Reason code.Code
}

func (c *Coded) Error() string {
	return fmt.Sprintf("%s (reason=%s)", c.Err, c.Reason)
}

func (c *Coded) Unwrap() error {
	return c.Err
}

// WithReason attaches a reason code to a sentinel error.
func WithReason(err error, reason code.Code) error {
	return &Coded{Err: err, Reason: reason}
}

// ReasonOf extracts the reason code carried by err, if any; it returns
// (0, false) when none is attached.
func ReasonOf(err error) (code.Code, bool) {
	var c *Coded
	if errors.As(err, &c) {
		return c.Reason, true
	}
	return 0, false
}
