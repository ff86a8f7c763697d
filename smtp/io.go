package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"time"
)

// inputBufferIncSize is how much the read buffer grows by every time a
// response doesn't fit in what's already buffered.
const inputBufferIncSize = 256

// Io is a Socket plus the buffering and framing needed to speak SMTP over
// it: line-oriented commands going out, possibly-multi-line responses
// coming back, and the special dot-stuffed framing DATA uses.
//
// An Io is single-owner: once a call on it returns an error other than a
// *LogicError, the connection is presumed dead and the Io must not be used
// again.
type Io struct {
	socket Socket
	input  []byte
	tracer Tracer
}

// NewIo wraps socket for protocol-level use. tracer may be nil.
func NewIo(socket Socket, tracer Tracer) *Io {
	return &Io{socket: socket, tracer: tracer}
}

// Socket returns the underlying transport.
func (c *Io) Socket() Socket { return c.socket }

// IsSecure reports whether the underlying socket is TLS-encrypted.
func (c *Io) IsSecure() bool { return c.socket.IsSecure() }

// Close closes the underlying socket.
func (c *Io) Close() error { return c.socket.Close() }

// Upgrade replaces the underlying socket with a TLS-wrapped one. It refuses
// to run if there is unconsumed plaintext sitting in the read buffer, since
// that data was read before the handshake and can't safely be reinterpreted
// as ciphertext.
func (c *Io) Upgrade(ctx context.Context, sniDomain string, cfg *tls.Config) error {
	if len(c.input) > 0 {
		return errBufferedInputOnUpgrade
	}
	newSocket, err := c.socket.Upgrade(ctx, sniDomain, cfg)
	if err != nil {
		return err
	}
	c.socket = newSocket
	return nil
}

func (c *Io) fill(ctx context.Context) error {
	c.applyDeadline(ctx)
	buf := make([]byte, inputBufferIncSize)
	n, err := c.socket.Read(buf)
	if n > 0 {
		c.input = append(c.input, buf[:n]...)
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (c *Io) applyDeadline(ctx context.Context) {
	if dl, ok := ctx.Deadline(); ok {
		_ = c.socket.SetDeadline(dl)
	} else {
		_ = c.socket.SetDeadline(time.Time{})
	}
}

// ReadResponse reads and parses one complete (possibly multi-line) SMTP
// response, blocking until it's available, ctx's deadline passes, or the
// connection fails. Only the deadline is applied to the socket: cancelling a
// ctx that has no deadline does not interrupt a blocked read.
func (c *Io) ReadResponse(ctx context.Context) (Response, error) {
	for {
		resp, consumed, ok, err := parseResponse(c.input)
		if err != nil {
			return Response{}, err
		}
		if ok {
			if c.tracer != nil {
				c.tracer.Trace(TraceInbound, c.input[:consumed])
			}
			c.input = c.input[consumed:]
			return resp, nil
		}
		if err := c.fill(ctx); err != nil {
			return Response{}, err
		}
	}
}

// WriteLine writes a single CRLF-terminated command line, e.g. "EHLO
// example.com" or "MAIL FROM:<a@b.com>".
func (c *Io) WriteLine(ctx context.Context, line string) error {
	return c.writeLine(ctx, line, false)
}

// WriteSecretLine is WriteLine for lines carrying AUTH credential material
// (a base64 SASL response). The Tracer sees a redacted placeholder instead
// of the line's actual bytes; the wire is unaffected.
func (c *Io) WriteSecretLine(ctx context.Context, line string) error {
	return c.writeLine(ctx, line, true)
}

func (c *Io) writeLine(ctx context.Context, line string, secret bool) error {
	c.applyDeadline(ctx)
	wire := []byte(line + "\r\n")
	if c.tracer != nil {
		if secret {
			c.tracer.Trace(TraceOutbound, []byte("[redacted]\r\n"))
		} else {
			c.tracer.Trace(TraceOutbound, wire)
		}
	}
	_, err := c.socket.Write(wire)
	return err
}

// WriteMailData dot-stuffs body and writes it followed by the DATA
// terminator.
func (c *Io) WriteMailData(ctx context.Context, body []byte) error {
	c.applyDeadline(ctx)
	wire := dotStuff(body)
	if c.tracer != nil {
		c.tracer.Trace(TraceOutbound, wire)
	}
	_, err := c.socket.Write(wire)
	return err
}

// ExecSimpleCmd writes line, reads back exactly one response, and returns
// it. Most commands (DATA aside) are exactly this shape.
func (c *Io) ExecSimpleCmd(ctx context.Context, line string) (Response, error) {
	if err := c.WriteLine(ctx, line); err != nil {
		return Response{}, err
	}
	return c.ReadResponse(ctx)
}

// ExecSecretCmd is ExecSimpleCmd for a line carrying AUTH credential
// material: the Tracer is shown a redacted placeholder instead of line.
func (c *Io) ExecSecretCmd(ctx context.Context, line string) (Response, error) {
	if err := c.WriteSecretLine(ctx, line); err != nil {
		return Response{}, err
	}
	return c.ReadResponse(ctx)
}

// checkResponse turns an erroneous Response into a *LogicError, leaving
// non-erroneous responses untouched.
func checkResponse(cmdName string, resp Response) (Response, error) {
	if resp.IsErroneous() {
		return resp, &LogicError{Cmd: cmdName, Response: resp}
	}
	return resp, nil
}

var errBufferedInputOnUpgrade = fmt.Errorf("smtp: cannot upgrade to TLS with unconsumed buffered input")
