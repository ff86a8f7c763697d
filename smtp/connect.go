package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/sd2k/smtpengine/smtp/codes"
)

// Default ports for message submission (RFC 6409) and MTA-to-MTA relay
// (RFC 5321). ConnectionBuilder does not add a port on its own; these are
// for callers building the address, e.g. with NewConnectionBuilderHostPort.
const (
	DefaultSubmissionPort = 587
	DefaultRelayPort      = 25
)

// SecurityKind selects how a Session's transport is secured.
type SecurityKind int

const (
	// SecurityNone never encrypts the connection. Deprecated by the spec
	// this package implements; kept for compatibility with servers that
	// still run cleartext submission on trusted networks.
	SecurityNone SecurityKind = iota
	// SecurityDirectTLS performs the TLS handshake before anything else
	// is sent (the "SMTPS"/implicit-TLS style used on port 465).
	SecurityDirectTLS
	// SecurityStartTLS connects in cleartext, EHLOs, then upgrades via
	// STARTTLS before authenticating or sending mail.
	SecurityStartTLS
)

// Security configures how, if at all, a connection is encrypted.
type Security struct {
	Kind   SecurityKind
	Domain Domain
	Config *tls.Config
}

// ConnectionConfig describes everything Connect needs: the four fields the
// spec names (address, security, client identity, optional AUTH command)
// and an optional Tracer for wire-level tracing.
type ConnectionConfig struct {
	Addr     string
	Security Security
	ClientId ClientId
	AuthCmd  Command
	Tracer   Tracer
}

// ConnectionBuilder builds a ConnectionConfig via chained setters,
// mirroring the teacher's functional-option builders
// (mailerSMTP's option functions) and original_source's ConnectionBuilder.
type ConnectionBuilder struct {
	addr     string
	security Security
	clientId *ClientId
	authCmd  Command
	tracer   Tracer
}

// NewConnectionBuilder starts a builder for addr ("host:port"). The
// default security is SecurityStartTLS, matching
// original_source/src/connect.rs's ConnectionBuilder::build default.
func NewConnectionBuilder(addr string) *ConnectionBuilder {
	return &ConnectionBuilder{
		addr:     addr,
		security: Security{Kind: SecurityStartTLS},
	}
}

// NewConnectionBuilderHostPort builds the "host:port" address from its
// parts.
func NewConnectionBuilderHostPort(host string, port int) *ConnectionBuilder {
	return NewConnectionBuilder(net.JoinHostPort(host, fmt.Sprintf("%d", port)))
}

// UseDirectTLS configures implicit TLS (port 465 style).
func (b *ConnectionBuilder) UseDirectTLS(domain Domain, cfg *tls.Config) *ConnectionBuilder {
	b.security = Security{Kind: SecurityDirectTLS, Domain: domain, Config: cfg}
	return b
}

// UseStartTLS configures opportunistic TLS via STARTTLS (port 587 style).
func (b *ConnectionBuilder) UseStartTLS(domain Domain, cfg *tls.Config) *ConnectionBuilder {
	b.security = Security{Kind: SecurityStartTLS, Domain: domain, Config: cfg}
	return b
}

// UseNoSecurity disables TLS entirely.
func (b *ConnectionBuilder) UseNoSecurity() *ConnectionBuilder {
	b.security = Security{Kind: SecurityNone}
	return b
}

// Auth sets the command run immediately after connecting (and, for
// STARTTLS, after the post-upgrade EHLO).
func (b *ConnectionBuilder) Auth(cmd Command) *ConnectionBuilder {
	b.authCmd = cmd
	return b
}

// ClientId overrides the EHLO/HELO identity. If never called, Build uses
// LocalhostClientId.
func (b *ConnectionBuilder) ClientId(id ClientId) *ConnectionBuilder {
	b.clientId = &id
	return b
}

// Tracer sets the wire tracer passed to the resulting Session's Io.
func (b *ConnectionBuilder) Tracer(t Tracer) *ConnectionBuilder {
	b.tracer = t
	return b
}

// Build finalizes the configuration.
func (b *ConnectionBuilder) Build() ConnectionConfig {
	id := ClientId{}
	if b.clientId != nil {
		id = *b.clientId
	} else {
		id = LocalhostClientId()
	}
	return ConnectionConfig{
		Addr:     b.addr,
		Security: b.security,
		ClientId: id,
		AuthCmd:  b.authCmd,
		Tracer:   b.tracer,
	}
}

// Connect establishes a Session per config: dials (upgrading immediately
// for SecurityDirectTLS), reads the greeting, EHLOs (falling back to
// HELO), upgrades via STARTTLS and re-EHLOs if configured, and finally
// runs config.AuthCmd if set.
func Connect(ctx context.Context, config ConnectionConfig) (*Session, error) {
	var sock Socket
	var err error
	if config.Security.Kind == SecurityDirectTLS {
		sock, err = DialTLS(ctx, config.Addr, config.Security.Config)
	} else {
		sock, err = DialInsecure(ctx, config.Addr)
	}
	if err != nil {
		return nil, err
	}

	session := &Session{io: NewIo(sock, config.Tracer)}

	greeting, err := session.io.ReadResponse(ctx)
	if err != nil {
		_ = sock.Close()
		return nil, err
	}
	if greeting.Code != codes.ServiceReady {
		greetingErr := &LogicError{Cmd: "CONNECT", Response: greeting}
		_ = session.Quit(ctx)
		return nil, greetingErr
	}

	if err := session.ehloOrHelo(ctx, config.ClientId); err != nil {
		closeDeadSession(session, sock)
		return nil, err
	}

	if config.Security.Kind == SecurityStartTLS {
		if _, _, err := session.Send(ctx, StartTls{
			SniDomain: config.Security.Domain,
			Config:    config.Security.Config,
		}); err != nil {
			closeDeadSession(session, sock)
			return nil, err
		}
		if err := session.ehloOrHelo(ctx, config.ClientId); err != nil {
			closeDeadSession(session, sock)
			return nil, err
		}
	}

	if config.AuthCmd != nil {
		if _, _, err := session.Send(ctx, config.AuthCmd); err != nil {
			closeDeadSession(session, sock)
			return nil, err
		}
	}

	return session, nil
}

// closeDeadSession closes the transport for a connect attempt that failed
// partway through. session.io is nil whenever the failure was transport-
// fatal (it was already closed as part of tearing the Io down); a
// *LogicError failure leaves session.io (and the live socket) in place, so
// it's closed directly here instead.
func closeDeadSession(session *Session, sock Socket) {
	if session.io != nil {
		_ = session.io.Close()
		return
	}
	_ = sock.Close()
}
