package smtp

import "fmt"

// LogicError is the SMTP server rejecting a command at the protocol level
// (a 4yz or 5yz reply). The session is still usable afterwards: only the
// transaction the command was part of failed.
type LogicError struct {
	// Cmd names the command that triggered the error, e.g. "RCPT".
	Cmd string
	// Response is the erroneous reply the server sent.
	Response Response
}

func (e *LogicError) Error() string {
	return fmt.Sprintf("smtp: %s: %s", e.Cmd, e.Response.String())
}

// MissingCapabilitiesError is returned by Command.CheckAvailability when the
// server's EHLO response didn't advertise something the command needs. No
// bytes are written to the wire when this happens.
type MissingCapabilitiesError struct {
	Cmd          string
	Capabilities []string
}

func (e *MissingCapabilitiesError) Error() string {
	return fmt.Sprintf("smtp: %s requires capabilities %v, which the server did not advertise", e.Cmd, e.Capabilities)
}

// EncodingNotSupportedError is returned when a message requires an encoding
// extension (8BITMIME, SMTPUTF8) the server hasn't advertised.
type EncodingNotSupportedError struct {
	Requirement EncodingRequirement
}

func (e *EncodingNotSupportedError) Error() string {
	return fmt.Sprintf("smtp: message requires %s, which the server did not advertise", e.Requirement)
}

// ErrNoConnection is returned by Session methods once the session has been
// torn down by a prior fatal (non-*LogicError) failure, or after Quit.
var ErrNoConnection = fmt.Errorf("smtp: session has no connection")

// ChainError describes which step of a Chain failed, and why.
type ChainError struct {
	Index int
	Err   error
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("smtp: chain step %d: %s", e.Index, e.Err)
}

func (e *ChainError) Unwrap() error { return e.Err }
