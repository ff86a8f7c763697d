package smtp

import (
	"context"
	"testing"
	"time"
)

func waitMock(t *testing.T, mock *MockSocket) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := mock.Wait(ctx); err != nil {
		t.Errorf("mock conversation did not complete cleanly: %v", err)
	}
}

func testEhlo(t *testing.T, session *Session, ctx context.Context) {
	t.Helper()
	if _, err := session.io.ReadResponse(ctx); err != nil {
		t.Fatalf("ehlo: reading greeting: %v", err)
	}
	if err := session.ehloOrHelo(ctx, DefaultClientId()); err != nil {
		t.Fatalf("ehlo: %v", err)
	}
}

// Scenario 1: plain submit.
func TestScenarioPlainSubmit(t *testing.T) {
	script := []Step{
		ReplyLine("220 x"),
		ExpectLine("EHLO [127.0.0.1]"),
		{Direction: Reply, Bytes: []byte("250-x\r\n250 SIZE 1024\r\n")},
		ExpectLine("MAIL FROM:<a@b>"),
		ReplyLine("250 ok"),
		ExpectLine("RCPT TO:<c@d>"),
		ReplyLine("250 ok"),
		ExpectLine("DATA"),
		ReplyLine("354 go"),
		{Direction: Expect, Bytes: []byte("hi\r\n.\r\n")},
		ReplyLine("250 queued"),
		ExpectLine("QUIT"),
		ReplyLine("221 bye"),
	}
	mock := NewMockSocket(script)
	session := &Session{io: NewIo(mock, nil)}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	testEhlo(t, session, ctx)

	env := MailEnvelope{
		From: ReversePathFromUnchecked("a@b"),
		To:   []ForwardPath{ForwardPathFromUnchecked("c@d")},
		Data: []byte("hi\r\n"),
	}
	next, err := sendOneEnvelope(ctx, session, env)
	if err != nil {
		t.Fatalf("sendOneEnvelope: %v", err)
	}
	if err := next.Quit(ctx); err != nil {
		t.Fatalf("quit: %v", err)
	}

	waitMock(t, mock)
}

// Scenario 2: STARTTLS required but the server never advertised it.
func TestScenarioStartTlsMissingCapability(t *testing.T) {
	script := []Step{
		ReplyLine("220 x"),
		ExpectLine("EHLO [127.0.0.1]"),
		ReplyLine("250 x"), // no STARTTLS advertised
	}
	mock := NewMockSocket(script)
	session := &Session{io: NewIo(mock, nil)}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	testEhlo(t, session, ctx)

	_, _, err := session.Send(ctx, StartTls{SniDomain: DomainFromUnchecked("example.com")})
	if _, ok := err.(*MissingCapabilitiesError); !ok {
		t.Fatalf("err = %v (%T), want *MissingCapabilitiesError", err, err)
	}

	// CheckAvailability must reject before anything reaches the wire. The
	// script has already ended and the mock closed its end of the pipe, so a
	// STARTTLS write would have failed as a transport error rather than
	// producing the *MissingCapabilitiesError asserted above. Close the
	// client end to release the pipe.
	_ = session.io.Close()
}

// Scenario 3 (dot-stuffing) is covered directly in dotstuff_test.go.

// Scenario 4: a LogicError during RCPT resets the session and the next
// envelope proceeds normally.
func TestScenarioLogicErrorContinuesSession(t *testing.T) {
	script := []Step{
		ReplyLine("220 x"),
		ExpectLine("EHLO [127.0.0.1]"),
		ReplyLine("250 x"),
		ExpectLine("MAIL FROM:<a@b>"),
		ReplyLine("250 ok"),
		ExpectLine("RCPT TO:<bad@d>"),
		ReplyLine("550 no such user"),
		ExpectLine("RSET"),
		ReplyLine("250 ok"),
		ExpectLine("MAIL FROM:<a@b>"),
		ReplyLine("250 ok"),
		ExpectLine("RCPT TO:<good@d>"),
		ReplyLine("250 ok"),
		ExpectLine("DATA"),
		ReplyLine("354 go"),
		{Direction: Expect, Bytes: []byte("hi\r\n.\r\n")},
		ReplyLine("250 queued"),
		ExpectLine("QUIT"),
		ReplyLine("221 bye"),
	}
	mock := NewMockSocket(script)
	session := &Session{io: NewIo(mock, nil)}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	testEhlo(t, session, ctx)

	envelopes := []MailEnvelope{
		{From: ReversePathFromUnchecked("a@b"), To: []ForwardPath{ForwardPathFromUnchecked("bad@d")}, Data: []byte("hi\r\n")},
		{From: ReversePathFromUnchecked("a@b"), To: []ForwardPath{ForwardPathFromUnchecked("good@d")}, Data: []byte("hi\r\n")},
	}

	var results []EnvelopeResult
	for _, env := range envelopes {
		if session == nil {
			results = append(results, EnvelopeResult{Envelope: env, Err: ErrNoConnection})
			continue
		}
		next, err := sendOneEnvelope(ctx, session, env)
		session = next
		results = append(results, EnvelopeResult{Envelope: env, Err: err})
	}
	if session != nil {
		_ = session.Quit(ctx)
	}

	if _, ok := results[0].Err.(*LogicError); !ok {
		t.Errorf("results[0].Err = %v (%T), want *LogicError", results[0].Err, results[0].Err)
	}
	if results[1].Err != nil {
		t.Fatalf("expected second envelope to succeed, got %v", results[1].Err)
	}

	waitMock(t, mock)
}

// Scenario 5: a transport error after the first envelope's DATA body fails
// every remaining envelope fast with ErrNoConnection, without touching the
// wire again.
func TestScenarioTransportErrorAbortsRemaining(t *testing.T) {
	script := []Step{
		ReplyLine("220 x"),
		ExpectLine("EHLO [127.0.0.1]"),
		ReplyLine("250 x"),
		ExpectLine("MAIL FROM:<a@b>"),
		ReplyLine("250 ok"),
		ExpectLine("RCPT TO:<c@d>"),
		ReplyLine("250 ok"),
		ExpectLine("DATA"),
		ReplyLine("354 go"),
		{Direction: Expect, Bytes: []byte("hi\r\n.\r\n")},
		// No reply: the script runs out, the mock goroutine closes its end
		// of the pipe, and the client observes that as a read failure.
	}
	mock := NewMockSocket(script)
	session := &Session{io: NewIo(mock, nil)}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	testEhlo(t, session, ctx)

	envelopes := []MailEnvelope{
		{From: ReversePathFromUnchecked("a@b"), To: []ForwardPath{ForwardPathFromUnchecked("c@d")}, Data: []byte("hi\r\n")},
		{From: ReversePathFromUnchecked("a@b"), To: []ForwardPath{ForwardPathFromUnchecked("c@d")}, Data: []byte("hi\r\n")},
	}

	var results []EnvelopeResult
	for _, env := range envelopes {
		if session == nil {
			results = append(results, EnvelopeResult{Envelope: env, Err: ErrNoConnection})
			continue
		}
		next, err := sendOneEnvelope(ctx, session, env)
		session = next
		results = append(results, EnvelopeResult{Envelope: env, Err: err})
	}

	if results[0].Err == nil {
		t.Fatalf("expected first envelope to fail with a transport error")
	}
	if _, ok := results[0].Err.(*LogicError); ok {
		t.Fatalf("expected a transport error, not a LogicError: %v", results[0].Err)
	}
	if session != nil {
		t.Fatalf("expected the session to be destroyed after a transport error")
	}
	if results[1].Err != ErrNoConnection {
		t.Errorf("results[1].Err = %v, want ErrNoConnection", results[1].Err)
	}
}

// Scenario 6: AUTH PLAIN with an initial response, because the server
// specifically advertised "AUTH PLAIN".
func TestScenarioAuthPlainInitialResponse(t *testing.T) {
	script := []Step{
		ReplyLine("220 x"),
		ExpectLine("EHLO [127.0.0.1]"),
		{Direction: Reply, Bytes: []byte("250-x\r\n250 AUTH PLAIN\r\n")},
		ExpectLine("AUTH PLAIN AHVzZXIAcGFzcw=="),
		ReplyLine("235 ok"),
	}
	mock := NewMockSocket(script)
	session := &Session{io: NewIo(mock, nil)}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	testEhlo(t, session, ctx)

	_, resp, err := session.Send(ctx, AuthPlain("", "user", "pass"))
	if err != nil {
		t.Fatalf("AUTH PLAIN: %v", err)
	}
	if resp.Message() != "ok" {
		t.Errorf("response = %q, want %q", resp.Message(), "ok")
	}

	waitMock(t, mock)
}

// AUTH PLAIN without an "AUTH PLAIN" advertisement falls back to the
// classic two-round-trip form.
func TestAuthPlainTwoStepFallback(t *testing.T) {
	script := []Step{
		ReplyLine("220 x"),
		ExpectLine("EHLO [127.0.0.1]"),
		{Direction: Reply, Bytes: []byte("250-x\r\n250 AUTH LOGIN\r\n")},
		ExpectLine("AUTH PLAIN"),
		ReplyLine("334 "),
		ExpectLine("AHVzZXIAcGFzcw=="),
		ReplyLine("235 ok"),
	}
	mock := NewMockSocket(script)
	session := &Session{io: NewIo(mock, nil)}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	testEhlo(t, session, ctx)

	if _, _, err := session.Send(ctx, AuthPlain("", "user", "pass")); err != nil {
		t.Fatalf("AUTH PLAIN: %v", err)
	}

	waitMock(t, mock)
}
