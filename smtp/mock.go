package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
)

// StepDirection is the direction of a single step in a scripted mock
// conversation: bytes the test expects the client to write, or bytes the
// mock server replies with.
type StepDirection int

const (
	// Expect asserts the client writes exactly these bytes next.
	Expect StepDirection = iota
	// Reply has the mock server write these bytes to the client next.
	Reply
)

// Step is one entry in a mock conversation script.
type Step struct {
	Direction StepDirection
	Bytes     []byte
}

// ExpectLine is shorthand for an Expect step of a single CRLF-terminated
// line.
func ExpectLine(line string) Step { return Step{Direction: Expect, Bytes: []byte(line + "\r\n")} }

// ReplyLine is shorthand for a Reply step of a single CRLF-terminated
// line.
func ReplyLine(line string) Step { return Step{Direction: Reply, Bytes: []byte(line + "\r\n")} }

// NewMockSocket drives a scripted conversation over a net.Pipe: one end is
// returned as a Socket for an Io to use, while a background goroutine
// walks script against the other end, asserting Expect steps against what
// the client wrote and emitting Reply steps on demand. Any divergence is
// recorded and surfaced through Err after the conversation ends (or via
// the client-side read/write returning an error immediately).
//
// This is the Go-native analogue of original_source/src/mock.rs's
// Actor/ActionData scripted stream, reshaped to the {direction, bytes}
// vocabulary spec.md's mock format uses, and implemented over net.Pipe
// instead of a hand-rolled in-memory stream since the standard library
// already provides exactly that primitive.
type MockSocket struct {
	Socket

	mu       sync.Mutex
	err      error
	done     chan struct{}
	isSecure bool
}

// NewMockSocket builds a MockSocket and starts running script in the
// background.
func NewMockSocket(script []Step) *MockSocket {
	client, server := net.Pipe()
	m := &MockSocket{
		Socket: mockTransport{Conn: client, secure: new(bool)},
		done:   make(chan struct{}),
	}
	go m.run(server, script)
	return m
}

func (m *MockSocket) run(server net.Conn, script []Step) {
	defer close(m.done)
	defer server.Close()

	var pending []byte
	for _, step := range script {
		switch step.Direction {
		case Reply:
			if _, err := server.Write(step.Bytes); err != nil {
				m.fail(fmt.Errorf("mock: writing reply: %w", err))
				return
			}
		case Expect:
			want := step.Bytes
			for len(want) > 0 {
				if len(pending) == 0 {
					buf := make([]byte, 4096)
					n, err := server.Read(buf)
					if err != nil {
						m.fail(fmt.Errorf("mock: conversation diverged: expected %d more bytes but read failed: %w", len(want), err))
						return
					}
					pending = buf[:n]
				}
				n := len(want)
				if n > len(pending) {
					n = len(pending)
				}
				if !bytes.Equal(pending[:n], want[:n]) {
					m.fail(fmt.Errorf("mock: conversation diverged: got %q, want %q", pending[:n], want[:n]))
					return
				}
				pending = pending[n:]
				want = want[n:]
			}
		}
	}

	if len(pending) > 0 {
		m.fail(fmt.Errorf("mock: conversation diverged: %d unexpected trailing bytes %q", len(pending), pending))
	}
}

func (m *MockSocket) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err == nil {
		m.err = err
	}
}

// Err returns the first divergence the script detected, if any. Call it
// after the conversation is expected to be finished.
func (m *MockSocket) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Wait blocks until the scripted conversation has run to completion or ctx
// is done.
func (m *MockSocket) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return m.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// mockTransport adapts one end of a net.Pipe into a Socket. Its Upgrade
// always fails: a mock transport has no TLS to speak of, matching spec.md
// §4.2's "mock sockets reject upgrade".
type mockTransport struct {
	net.Conn
	secure *bool
}

func (t mockTransport) IsSecure() bool { return *t.secure }

func (t mockTransport) Upgrade(context.Context, string, *tls.Config) (Socket, error) {
	return nil, fmt.Errorf("smtp: mock socket does not support TLS upgrade")
}
