package smtp

import (
	"context"
	"crypto/hmac"
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/emersion/go-sasl"

	"github.com/sd2k/smtpengine/smtp/codes"
)

// NullCodePointError is returned when an AUTH PLAIN identity, username or
// password contains a NUL byte, which would be indistinguishable from the
// SASL PLAIN token's own field separators.
type NullCodePointError struct {
	Field string
}

func (e *NullCodePointError) Error() string {
	return fmt.Sprintf("smtp: AUTH PLAIN %s must not contain a NUL byte", e.Field)
}

// PlainAuth is the AUTH PLAIN (RFC 4616) command. Unlike AUTH LOGIN, PLAIN
// has two wire shapes depending on what the server advertised: a
// single-line initial response, or a classic AUTH-then-334-then-response
// round trip. CheckAvailability stashes the EhloData it was given so Exec
// can pick the right one without threading it through the Command
// interface.
type PlainAuth struct {
	Identity, Username, Password string

	ehlo *EhloData
}

// AuthPlain builds a PlainAuth command. identity may be empty to
// authenticate and authorize as the same user.
func AuthPlain(identity, username, password string) *PlainAuth {
	return &PlainAuth{Identity: identity, Username: username, Password: password}
}

// CheckAvailability implements Command.
func (p *PlainAuth) CheckAvailability(ehlo *EhloData) error {
	if ehlo == nil || !ehlo.HasCapability("AUTH") {
		return &MissingCapabilitiesError{Cmd: "AUTH PLAIN", Capabilities: []string{"AUTH"}}
	}
	for field, v := range map[string]string{"identity": p.Identity, "username": p.Username, "password": p.Password} {
		if strings.ContainsRune(v, 0) {
			return &NullCodePointError{Field: field}
		}
	}
	p.ehlo = ehlo
	return nil
}

// Exec implements Command.
func (p *PlainAuth) Exec(ctx context.Context, io *Io) (Response, error) {
	token := p.Identity + "\x00" + p.Username + "\x00" + p.Password
	b64 := base64.StdEncoding.EncodeToString([]byte(token))

	var resp Response
	var err error
	if p.ehlo != nil && p.ehlo.HasCapabilityParam("AUTH", "PLAIN") {
		resp, err = io.ExecSecretCmd(ctx, "AUTH PLAIN "+b64)
		if err != nil {
			return resp, err
		}
	} else {
		resp, err = io.ExecSimpleCmd(ctx, "AUTH PLAIN")
		if err != nil {
			return resp, err
		}
		if resp.Code != codes.AuthContinue {
			return resp, &LogicError{Cmd: "AUTH PLAIN", Response: resp}
		}
		resp, err = io.ExecSecretCmd(ctx, b64)
		if err != nil {
			return resp, err
		}
	}

	if resp.Code != codes.AuthSuccessful {
		return resp, &LogicError{Cmd: "AUTH PLAIN", Response: resp}
	}
	return resp, nil
}

// Auth runs a SASL challenge/response authentication exchange that always
// starts with a bare "AUTH <mechanism>" (no initial response) followed by
// as many 334-challenge round trips as the mechanism needs; a mechanism's
// initial response, if it has one, is sent as the answer to the first
// challenge. AuthLogin and
// AuthCramMD5 build one of these; AUTH PLAIN has its own type (PlainAuth)
// because it additionally supports a single-line initial-response form.
type Auth struct {
	Client sasl.Client
}

// AuthLogin authenticates with the non-standard but widely deployed LOGIN
// mechanism: a 334 challenge asking for the username, then one asking for
// the password.
func AuthLogin(username, password string) Auth {
	return Auth{Client: sasl.NewLoginClient(username, password)}
}

// AuthCramMD5 authenticates with CRAM-MD5 (RFC 2195): the server's
// challenge is HMAC-MD5'd with password as the key.
func AuthCramMD5(username, password string) Auth {
	return Auth{Client: &cramMD5Client{username: username, secret: password}}
}

// CheckAvailability implements Command: the server's AUTH capability must
// list this mechanism by name.
func (a Auth) CheckAvailability(ehlo *EhloData) error {
	mech, _, err := a.Client.Start()
	if err != nil {
		return err
	}
	if ehlo == nil || !ehlo.HasCapabilityParam("AUTH", mech) {
		return &MissingCapabilitiesError{Cmd: "AUTH " + mech, Capabilities: []string{"AUTH=" + mech}}
	}
	return nil
}

// Exec implements Command.
func (a Auth) Exec(ctx context.Context, io *Io) (Response, error) {
	mech, ir, err := a.Client.Start()
	if err != nil {
		return Response{}, err
	}

	resp, err := io.ExecSimpleCmd(ctx, "AUTH "+mech)
	// The mechanism's initial response, if any, answers the first challenge.
	if err == nil && ir != nil && resp.Code == codes.AuthContinue {
		resp, err = io.ExecSecretCmd(ctx, base64.StdEncoding.EncodeToString(ir))
	}
	if err != nil {
		return resp, err
	}

	for resp.Code == codes.AuthContinue {
		challenge, decErr := base64.StdEncoding.DecodeString(strings.Join(resp.Lines, ""))
		if decErr != nil {
			return resp, fmt.Errorf("smtp: AUTH %s: server sent malformed base64 challenge: %w", mech, decErr)
		}

		next, err := a.Client.Next(challenge)
		if err != nil {
			return resp, err
		}

		resp, err = io.ExecSecretCmd(ctx, base64.StdEncoding.EncodeToString(next))
		if err != nil {
			return resp, err
		}
	}

	if resp.Code != codes.AuthSuccessful {
		return resp, &LogicError{Cmd: "AUTH " + mech, Response: resp}
	}
	return resp, nil
}

// cramMD5Client implements sasl.Client for RFC 2195 CRAM-MD5. go-sasl does
// not ship a client for it (only a server side), so this mirrors the
// hand-rolled implementation most Go SMTP clients carry.
type cramMD5Client struct {
	username string
	secret   string
}

func (c *cramMD5Client) Start() (mech string, ir []byte, err error) {
	return "CRAM-MD5", nil, nil
}

func (c *cramMD5Client) Next(challenge []byte) ([]byte, error) {
	if challenge == nil {
		return nil, fmt.Errorf("smtp: CRAM-MD5 requires a server challenge")
	}
	d := hmac.New(md5.New, []byte(c.secret))
	d.Write(challenge)
	return []byte(fmt.Sprintf("%s %x", c.username, d.Sum(nil))), nil
}
