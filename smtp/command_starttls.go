package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
)

// StartTls upgrades an insecure connection to TLS per RFC 3207. After a
// successful Exec the caller should re-run Ehlo: capabilities advertised
// before the handshake must not be trusted, since an active attacker could
// have injected them.
type StartTls struct {
	// SniDomain is sent as the TLS ClientHello server name. Leave Config's
	// ServerName unset and this takes effect; set it and Config wins.
	SniDomain Domain
	Config    *tls.Config
}

// CheckAvailability implements Command: STARTTLS requires the server to
// have advertised the STARTTLS capability.
func (StartTls) CheckAvailability(ehlo *EhloData) error {
	if ehlo == nil || !ehlo.HasCapability("STARTTLS") {
		return &MissingCapabilitiesError{Cmd: "STARTTLS", Capabilities: []string{"STARTTLS"}}
	}
	return nil
}

// Exec implements Command.
func (s StartTls) Exec(ctx context.Context, io *Io) (Response, error) {
	if io.IsSecure() {
		return Response{}, fmt.Errorf("smtp: connection is already TLS encrypted")
	}

	resp, err := io.ExecSimpleCmd(ctx, "STARTTLS")
	if err != nil {
		return resp, err
	}
	if _, err := checkResponse("STARTTLS", resp); err != nil {
		return resp, err
	}

	if err := io.Upgrade(ctx, s.SniDomain.String(), s.Config); err != nil {
		return resp, err
	}
	return resp, nil
}
