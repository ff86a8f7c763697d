package smtp

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// EncodingRequirement describes what, if anything, a message body needs
// from the transport beyond plain 7-bit ASCII lines.
type EncodingRequirement int

const (
	// EncodingNone needs nothing beyond base RFC 5321 transport.
	EncodingNone EncodingRequirement = iota
	// Encoding8BitMime needs the 8BITMIME extension (RFC 6152): the body
	// may contain bytes with the high bit set.
	Encoding8BitMime
	// EncodingSmtpUtf8 needs the SMTPUTF8 extension (RFC 6531): an address
	// contains non-ASCII characters.
	EncodingSmtpUtf8
)

func (r EncodingRequirement) String() string {
	switch r {
	case Encoding8BitMime:
		return "8BITMIME"
	case EncodingSmtpUtf8:
		return "SMTPUTF8"
	default:
		return "none"
	}
}

// Mail sends "MAIL FROM:<path> [params]". Size, when non-zero, is sent as
// the SIZE parameter (RFC 1870) so a server enforcing a maximum message
// size can reject the transaction before any data is transferred.
type Mail struct {
	From     ReversePath
	Encoding EncodingRequirement
	Size     int64
}

// CheckAvailability implements Command: if Encoding demands an extension,
// it must be advertised.
func (m Mail) CheckAvailability(ehlo *EhloData) error {
	switch m.Encoding {
	case Encoding8BitMime:
		if ehlo == nil || !ehlo.HasCapability("8BITMIME") {
			return &MissingCapabilitiesError{Cmd: "MAIL", Capabilities: []string{"8BITMIME"}}
		}
	case EncodingSmtpUtf8:
		if ehlo == nil || !ehlo.HasCapability("SMTPUTF8") {
			return &MissingCapabilitiesError{Cmd: "MAIL", Capabilities: []string{"SMTPUTF8"}}
		}
	}
	if m.Size > 0 && ehlo != nil && !ehlo.HasCapability("SIZE") {
		return &MissingCapabilitiesError{Cmd: "MAIL", Capabilities: []string{"SIZE"}}
	}
	return nil
}

// Exec implements Command.
func (m Mail) Exec(ctx context.Context, io *Io) (Response, error) {
	var params []string
	switch m.Encoding {
	case Encoding8BitMime:
		params = append(params, "BODY=8BITMIME")
	case EncodingSmtpUtf8:
		params = append(params, "SMTPUTF8")
	}
	if m.Size > 0 {
		params = append(params, "SIZE="+strconv.FormatInt(m.Size, 10))
	}

	line := fmt.Sprintf("MAIL FROM:%s", m.From)
	if len(params) > 0 {
		line += " " + strings.Join(params, " ")
	}

	resp, err := io.ExecSimpleCmd(ctx, line)
	if err != nil {
		return resp, err
	}
	return checkResponse("MAIL", resp)
}

// Rcpt sends "RCPT TO:<path>" for a single recipient.
type Rcpt struct {
	To ForwardPath
}

// CheckAvailability implements Command. RCPT has no precondition.
func (Rcpt) CheckAvailability(*EhloData) error { return nil }

// Exec implements Command.
func (r Rcpt) Exec(ctx context.Context, io *Io) (Response, error) {
	resp, err := io.ExecSimpleCmd(ctx, fmt.Sprintf("RCPT TO:%s", r.To))
	if err != nil {
		return resp, err
	}
	return checkResponse("RCPT", resp)
}
