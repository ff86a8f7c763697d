package smtp

import "context"

// Command is a single SMTP command and the logic to run it against an open
// connection. Built-in commands (Ehlo, StartTls, Mail, Rcpt, Data, Auth...)
// all implement this, and callers are free to implement their own.
//
// Unlike the Rust library this package's protocol layer is modeled after,
// Go interfaces are already dynamically dispatchable, so there's no need
// for a boxed/type-erased variant: a Command value can be stored, passed
// around and combined with Either/SelectCmd/Chain exactly as-is.
type Command interface {
	// CheckAvailability reports whether the server (as described by ehlo)
	// has advertised what this command needs. ehlo is nil for a session
	// that hasn't done EHLO/HELO yet. Returning a non-nil error here means
	// Exec will not be called and nothing is written to the wire.
	CheckAvailability(ehlo *EhloData) error

	// Exec runs the command against io. A returned error that is a
	// *LogicError means the command was rejected at the protocol level and
	// io is still usable; any other error means io is no longer usable.
	Exec(ctx context.Context, io *Io) (Response, error)
}

// Either runs a and, only if a.CheckAvailability fails, falls back to b.
// Its own CheckAvailability succeeds if either branch's does, and Exec runs
// whichever branch CheckAvailability most recently chose (it must be called
// first; Session.Send always does). Use &Either{...} — its methods have
// pointer receivers so the choice survives between the two calls.
type Either struct {
	A, B   Command
	chosen Command
}

// CheckAvailability implements Command.
func (e *Either) CheckAvailability(ehlo *EhloData) error {
	if err := e.A.CheckAvailability(ehlo); err == nil {
		e.chosen = e.A
		return nil
	}
	if err := e.B.CheckAvailability(ehlo); err != nil {
		return err
	}
	e.chosen = e.B
	return nil
}

// Exec implements Command.
func (e *Either) Exec(ctx context.Context, io *Io) (Response, error) {
	chosen := e.chosen
	if chosen == nil {
		chosen = e.A
	}
	return chosen.Exec(ctx, io)
}

// SelectCmd picks whichever of A or B is available, committing to that
// choice for both CheckAvailability and Exec. Like Either, it prefers A
// when A is available and otherwise uses B; the chosen branch is not
// exposed to the caller. Use &SelectCmd{...}; see Either for why.
type SelectCmd struct {
	A, B   Command
	chosen Command
}

// CheckAvailability implements Command.
func (s *SelectCmd) CheckAvailability(ehlo *EhloData) error {
	if err := s.A.CheckAvailability(ehlo); err == nil {
		s.chosen = s.A
		return nil
	}
	if err := s.B.CheckAvailability(ehlo); err != nil {
		return err
	}
	s.chosen = s.B
	return nil
}

// Exec implements Command. It runs whichever branch CheckAvailability most
// recently chose; Session.Send always calls CheckAvailability first so by
// the time Exec runs the choice is guaranteed to still be valid.
func (s *SelectCmd) Exec(ctx context.Context, io *Io) (Response, error) {
	chosen := s.chosen
	if chosen == nil {
		chosen = s.A
	}
	return chosen.Exec(ctx, io)
}

// OnChainError controls what Chain does when one of its steps fails with a
// *LogicError.
type OnChainError int

const (
	// StopAndReset aborts the chain and sends RSET to return the server to
	// a known, transaction-free state. This is the default a caller should
	// reach for when a later step depends on the failed one.
	StopAndReset OnChainError = iota
	// Stop aborts the chain without sending RSET.
	Stop
	// Continue runs every remaining step regardless of earlier failures,
	// collecting every step's response; the returned *ChainError still
	// names only the first failure. This is the policy RCPT commands generally
	// want: one recipient being rejected shouldn't cancel the others.
	Continue
)

// Chain runs cmds against io in order, honoring onError when a command
// fails with a *LogicError. It returns the responses collected for steps
// that ran, and a *ChainError describing the first failure if any step
// failed (under every policy, including Continue).
//
// A non-*LogicError from any step is returned immediately and unwrapped,
// since at that point io itself is no longer usable and RSET would just
// fail too.
func Chain(ctx context.Context, io *Io, cmds []Command, onError OnChainError) ([]Response, error) {
	responses := make([]Response, 0, len(cmds))
	var firstErr *ChainError

	for i, cmd := range cmds {
		resp, err := cmd.Exec(ctx, io)
		if err == nil {
			responses = append(responses, resp)
			continue
		}

		logicErr, ok := err.(*LogicError)
		if !ok {
			return responses, err
		}
		responses = append(responses, resp)
		if firstErr == nil {
			firstErr = &ChainError{Index: i, Err: logicErr}
		}

		switch onError {
		case Continue:
			continue
		case Stop:
			return responses, firstErr
		case StopAndReset:
			_, _ = Reset{}.Exec(ctx, io)
			return responses, firstErr
		}
	}
	if firstErr == nil {
		return responses, nil
	}
	return responses, firstErr
}
