package smtp

import (
	"context"
	"fmt"
)

// Ehlo sends "EHLO <identity>" and parses the server's capability list out
// of the response. On success it stashes the parsed EhloData on itself so
// Session.Send can pick it up; a fresh Ehlo value should be used per
// attempt.
type Ehlo struct {
	Identity ClientId

	parsed *EhloData
}

// CheckAvailability implements Command. EHLO has no precondition.
func (Ehlo) CheckAvailability(*EhloData) error { return nil }

// Exec implements Command.
func (e *Ehlo) Exec(ctx context.Context, io *Io) (Response, error) {
	resp, err := io.ExecSimpleCmd(ctx, fmt.Sprintf("EHLO %s", e.Identity))
	if err != nil {
		return resp, err
	}
	if _, err := checkResponse("EHLO", resp); err != nil {
		return resp, err
	}
	e.parsed = parseEhloResponse(resp)
	return resp, nil
}

// EhloData returns the capabilities parsed out of the last successful
// Exec, or nil if Exec hasn't succeeded yet.
func (e *Ehlo) EhloData() *EhloData { return e.parsed }

// Helo sends the older, capability-free "HELO <identity>" greeting.
type Helo struct {
	Identity ClientId
}

// CheckAvailability implements Command. HELO has no precondition.
func (Helo) CheckAvailability(*EhloData) error { return nil }

// Exec implements Command.
func (h Helo) Exec(ctx context.Context, io *Io) (Response, error) {
	resp, err := io.ExecSimpleCmd(ctx, fmt.Sprintf("HELO %s", h.Identity))
	if err != nil {
		return resp, err
	}
	return checkResponse("HELO", resp)
}

// Noop sends NOOP, which the server acknowledges without side effects.
type Noop struct{}

// CheckAvailability implements Command.
func (Noop) CheckAvailability(*EhloData) error { return nil }

// Exec implements Command.
func (Noop) Exec(ctx context.Context, io *Io) (Response, error) {
	resp, err := io.ExecSimpleCmd(ctx, "NOOP")
	if err != nil {
		return resp, err
	}
	return checkResponse("NOOP", resp)
}

// Reset sends RSET, aborting any mail transaction in progress.
type Reset struct{}

// CheckAvailability implements Command.
func (Reset) CheckAvailability(*EhloData) error { return nil }

// Exec implements Command.
func (Reset) Exec(ctx context.Context, io *Io) (Response, error) {
	resp, err := io.ExecSimpleCmd(ctx, "RSET")
	if err != nil {
		return resp, err
	}
	return checkResponse("RSET", resp)
}

// Quit sends QUIT. The caller is expected to close the underlying
// connection afterward regardless of the response.
type Quit struct{}

// CheckAvailability implements Command.
func (Quit) CheckAvailability(*EhloData) error { return nil }

// Exec implements Command.
func (Quit) Exec(ctx context.Context, io *Io) (Response, error) {
	resp, err := io.ExecSimpleCmd(ctx, "QUIT")
	if err != nil {
		return resp, err
	}
	return checkResponse("QUIT", resp)
}

// Vrfy sends "VRFY <address>", asking the server to confirm a mailbox
// exists. Most public-facing servers reply 252 (can't verify, but will
// attempt delivery) rather than actually confirming or denying, as a
// defense against address harvesting.
type Vrfy struct {
	Address string
}

// CheckAvailability implements Command.
func (Vrfy) CheckAvailability(*EhloData) error { return nil }

// Exec implements Command.
func (v Vrfy) Exec(ctx context.Context, io *Io) (Response, error) {
	resp, err := io.ExecSimpleCmd(ctx, fmt.Sprintf("VRFY %s", v.Address))
	if err != nil {
		return resp, err
	}
	return checkResponse("VRFY", resp)
}

// Help sends HELP, optionally scoped to a particular command name.
type Help struct {
	Topic string
}

// CheckAvailability implements Command.
func (Help) CheckAvailability(*EhloData) error { return nil }

// Exec implements Command.
func (h Help) Exec(ctx context.Context, io *Io) (Response, error) {
	line := "HELP"
	if h.Topic != "" {
		line = "HELP " + h.Topic
	}
	resp, err := io.ExecSimpleCmd(ctx, line)
	if err != nil {
		return resp, err
	}
	return checkResponse("HELP", resp)
}
