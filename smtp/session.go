package smtp

import "context"

// Session wraps an Io with the capability cache from the last successful
// EHLO/HELO. It is the type user code holds and calls Send/Chain/Quit on.
//
// Session reproduces "ownership by move" structurally rather than with the
// compiler's help: Send and Chain return the *Session to keep using, which
// is nil exactly when a transport failure has destroyed the connection
// (I5). Once a call returns a nil *Session, the old reference must not be
// used again. A *LogicError, by contrast, leaves the returned *Session
// identical to the receiver — the session is still perfectly usable.
type Session struct {
	io   *Io
	ehlo *EhloData
}

// EhloData returns the capabilities cached from the last successful
// EHLO/HELO, or nil if none has completed yet.
func (s *Session) EhloData() *EhloData {
	if s == nil {
		return nil
	}
	return s.ehlo
}

// IsSecure reports whether the session's transport is currently
// TLS-encrypted.
func (s *Session) IsSecure() bool {
	return s != nil && s.io != nil && s.io.IsSecure()
}

// Send runs a single command. It first calls cmd.CheckAvailability against
// the cached EhloData; on failure the session is returned unchanged
// alongside the *MissingCapabilitiesError and nothing is written to the
// wire. Otherwise it runs cmd.Exec: a *LogicError leaves the session
// usable, any other error destroys it (the returned *Session is nil).
func (s *Session) Send(ctx context.Context, cmd Command) (*Session, Response, error) {
	if s == nil || s.io == nil {
		return nil, Response{}, ErrNoConnection
	}

	if err := cmd.CheckAvailability(s.ehlo); err != nil {
		return s, Response{}, err
	}

	resp, err := cmd.Exec(ctx, s.io)
	if err != nil {
		if _, ok := err.(*LogicError); ok {
			return s, resp, err
		}
		_ = s.io.Close()
		s.io = nil
		return nil, resp, err
	}

	switch c := cmd.(type) {
	case *Ehlo:
		s.ehlo = c.EhloData()
	case StartTls:
		s.ehlo = nil
	}
	return s, resp, nil
}

// Chain runs cmds in order via the package-level Chain function, against
// this session's Io. A *ChainError (one or more steps failed with a
// *LogicError, already handled per onError) leaves the session usable; any
// other error destroys it.
func (s *Session) Chain(ctx context.Context, cmds []Command, onError OnChainError) (*Session, []Response, error) {
	if s == nil || s.io == nil {
		return nil, nil, ErrNoConnection
	}

	resps, err := Chain(ctx, s.io, cmds, onError)
	if err != nil {
		if _, ok := err.(*ChainError); !ok {
			_ = s.io.Close()
			s.io = nil
			return nil, resps, err
		}
	}
	return s, resps, err
}

// Quit issues QUIT and shuts down the socket regardless of the response
// (RFC 5321 doesn't require a 221 before closing). The session must not be
// used again afterward, successful or not.
func (s *Session) Quit(ctx context.Context) error {
	if s == nil || s.io == nil {
		return ErrNoConnection
	}

	_, err := Quit{}.Exec(ctx, s.io)
	closeErr := s.io.Close()
	s.io = nil

	if err != nil {
		if _, ok := err.(*LogicError); !ok {
			return err
		}
	}
	return closeErr
}

// ehloOrHelo runs EHLO, falling back to HELO (and synthesizing a
// conservative EhloData) if the server rejects EHLO with a permanent
// negative reply.
func (s *Session) ehloOrHelo(ctx context.Context, id ClientId) error {
	ehlo := &Ehlo{Identity: id}
	if _, _, err := s.Send(ctx, ehlo); err == nil {
		return nil
	} else if logicErr, ok := err.(*LogicError); !ok || !logicErr.Response.Code.IsPermanentNegative() {
		return err
	}

	if _, _, err := s.Send(ctx, Helo{Identity: id}); err != nil {
		return err
	}
	s.ehlo = newHeloEhloData("")
	return nil
}
