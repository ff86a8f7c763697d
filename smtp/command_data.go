package smtp

import (
	"context"

	"github.com/sd2k/smtpengine/smtp/codes"
)

// Data sends the DATA command, and, only if the server replies 354, the
// dot-stuffed message body. If the server rejects DATA itself no body is
// sent and the connection is left exactly as it was beforehand.
type Data struct {
	Body []byte
}

// CheckAvailability implements Command. DATA has no precondition.
func (Data) CheckAvailability(*EhloData) error { return nil }

// Exec implements Command.
func (d Data) Exec(ctx context.Context, io *Io) (Response, error) {
	resp, err := io.ExecSimpleCmd(ctx, "DATA")
	if err != nil {
		return resp, err
	}
	if resp.Code != codes.StartMailInput {
		return checkResponse("DATA", resp)
	}

	if err := io.WriteMailData(ctx, d.Body); err != nil {
		return Response{}, err
	}
	final, err := io.ReadResponse(ctx)
	if err != nil {
		return final, err
	}
	return checkResponse("DATA", final)
}
