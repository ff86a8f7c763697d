package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// Socket is the transport a Session speaks over. It is a net.Conn plus the
// two extra bits of information the protocol layer needs: whether traffic
// is currently encrypted, and how to move from cleartext to TLS in place
// without losing the underlying connection (RFC 3207 STARTTLS).
type Socket interface {
	net.Conn

	// IsSecure reports whether this socket is presently TLS-encrypted.
	IsSecure() bool

	// Upgrade performs a TLS client handshake over the current connection
	// and returns a new Socket speaking TLS from this point on. It must
	// only be called when IsSecure reports false and the caller has not
	// left any unread plaintext buffered in front of the handshake.
	Upgrade(ctx context.Context, sniDomain string, cfg *tls.Config) (Socket, error)
}

// DialInsecure opens a plain TCP connection to addr.
func DialInsecure(ctx context.Context, addr string) (Socket, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return insecureSocket{conn}, nil
}

// DialTLS opens a TCP connection to addr and immediately performs a TLS
// handshake over it (the "implicit TLS"/SMTPS style used on port 465).
func DialTLS(ctx context.Context, addr string, cfg *tls.Config) (Socket, error) {
	sock, err := DialInsecure(ctx, addr)
	if err != nil {
		return nil, err
	}
	return sock.Upgrade(ctx, hostOf(addr), cfg)
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

type insecureSocket struct{ net.Conn }

func (insecureSocket) IsSecure() bool { return false }

func (s insecureSocket) Upgrade(ctx context.Context, sniDomain string, cfg *tls.Config) (Socket, error) {
	tlsCfg := cfg
	if tlsCfg == nil {
		tlsCfg = &tls.Config{}
	} else {
		tlsCfg = tlsCfg.Clone()
	}
	if tlsCfg.ServerName == "" {
		tlsCfg.ServerName = sniDomain
	}

	tlsConn := tls.Client(s.Conn, tlsCfg)
	if dl, ok := ctx.Deadline(); ok {
		_ = tlsConn.SetDeadline(dl)
		defer tlsConn.SetDeadline(time.Time{})
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, err
	}
	return secureSocket{tlsConn}, nil
}

type secureSocket struct{ *tls.Conn }

func (secureSocket) IsSecure() bool { return true }

func (secureSocket) Upgrade(context.Context, string, *tls.Config) (Socket, error) {
	return nil, fmt.Errorf("smtp: connection is already TLS encrypted")
}
