package smtp

import "context"

// MailEnvelope is one message to send: a reverse path, one or more forward
// paths, and the already-assembled message body plus whatever extended
// encoding it needs.
type MailEnvelope struct {
	From ReversePath
	To   []ForwardPath
	Data []byte

	Encoding EncodingRequirement
	// Size, if non-zero, is advertised to the server via MAIL's SIZE
	// parameter (RFC 1870) ahead of sending Data.
	Size int64
}

// EnvelopeResult is the outcome of sending one MailEnvelope.
type EnvelopeResult struct {
	Envelope MailEnvelope
	// Err is nil on success, a *LogicError if the server rejected the
	// envelope at the protocol level, or NoConnection (or a transport
	// error) if the session died before this envelope could be attempted.
	Err error
}

// ConnectSendQuit connects per config, sends every envelope in order, and
// quits. It returns one EnvelopeResult per envelope, always in order and
// always the same length as envelopes, even when a transport failure part
// way through means the remaining results are synthetic NoConnection
// failures.
//
// Each envelope runs MAIL FROM → RCPT TO (one per recipient) → DATA. A
// *LogicError on any step resets the session with RSET and moves on to the
// next envelope; any other error destroys the session and every envelope
// from that point on fails fast without touching the wire again.
func ConnectSendQuit(ctx context.Context, config ConnectionConfig, envelopes []MailEnvelope) []EnvelopeResult {
	results := make([]EnvelopeResult, len(envelopes))

	session, err := Connect(ctx, config)
	if err != nil {
		for i, env := range envelopes {
			results[i] = EnvelopeResult{Envelope: env, Err: err}
		}
		return results
	}

	for i, env := range envelopes {
		if session == nil {
			results[i] = EnvelopeResult{Envelope: env, Err: ErrNoConnection}
			continue
		}

		next, err := sendOneEnvelope(ctx, session, env)
		session = next
		results[i] = EnvelopeResult{Envelope: env, Err: err}
	}

	if session != nil {
		_ = session.Quit(ctx)
	}
	return results
}

func sendOneEnvelope(ctx context.Context, session *Session, env MailEnvelope) (*Session, error) {
	mail := Mail{From: env.From, Encoding: env.Encoding, Size: env.Size}
	if err := checkEncodingSupported(session.EhloData(), env.Encoding); err != nil {
		return session, err
	}

	next, _, err := session.Send(ctx, mail)
	session = next
	if err != nil {
		return resetOnLogicError(ctx, session, err)
	}

	for _, to := range env.To {
		next, _, err = session.Send(ctx, Rcpt{To: to})
		session = next
		if err != nil {
			return resetOnLogicError(ctx, session, err)
		}
	}

	next, _, err = session.Send(ctx, Data{Body: env.Data})
	session = next
	if err != nil {
		return resetOnLogicError(ctx, session, err)
	}

	return session, nil
}

// resetOnLogicError issues RSET and returns the (still usable) session
// alongside the original error when err is a *LogicError; any other error
// means the session is already gone (session is nil), so it's passed
// through unchanged.
func resetOnLogicError(ctx context.Context, session *Session, err error) (*Session, error) {
	if session == nil {
		return nil, err
	}
	if _, ok := err.(*LogicError); !ok {
		return session, err
	}
	next, _, _ := session.Send(ctx, Reset{})
	if next == nil {
		return nil, err
	}
	return next, err
}

func checkEncodingSupported(ehlo *EhloData, req EncodingRequirement) error {
	switch req {
	case Encoding8BitMime:
		if ehlo == nil || !ehlo.HasCapability("8BITMIME") {
			return &EncodingNotSupportedError{Requirement: req}
		}
	case EncodingSmtpUtf8:
		if ehlo == nil || !ehlo.HasCapability("SMTPUTF8") {
			return &EncodingNotSupportedError{Requirement: req}
		}
	}
	return nil
}
