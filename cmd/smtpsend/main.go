// Command smtpsend sends a single message through an SMTP server using the
// smtpengine/smtp package, end to end: connect, authenticate, MAIL/RCPT/DATA,
// quit.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sd2k/smtpengine/smtp"
)

const usage = `Send an email with smtpengine.

Required flags:

    -addr      SMTP server address ("host:port").

    -from      Envelope sender address.

    -to        Recipient address. Add multiple times to send to multiple
               people. At least one of these must be present.

Optional flags:

    -security  One of "starttls" (default), "directtls", "none".

    -user      SMTP AUTH username.

    -pass      SMTP AUTH password.

    -body      Read message body from a file. The default is to read from
               stdin.

    -debug     Print the wire transcript to stderr, with AUTH credential
               lines redacted.

    -timeout   Overall deadline, as a Go duration (default "30s").
`

type rcptList []string

func (r *rcptList) String() string     { return strings.Join(*r, ",") }
func (r *rcptList) Set(v string) error { *r = append(*r, v); return nil }

func main() {
	flag.Usage = func() { fmt.Print(usage) }

	var (
		addr, security   string
		from, body, user string
		pass             string
		debug            bool
		timeout          time.Duration
		to               rcptList
	)
	flag.StringVar(&addr, "addr", "", "")
	flag.StringVar(&security, "security", "starttls", "")
	flag.StringVar(&from, "from", "", "")
	flag.Var(&to, "to", "")
	flag.StringVar(&user, "user", "", "")
	flag.StringVar(&pass, "pass", "", "")
	flag.StringVar(&body, "body", "", "")
	flag.BoolVar(&debug, "debug", false, "")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "")
	if err := flag.CommandLine.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(os.Args) == 1 {
		fmt.Print(usage)
		return
	}
	if addr == "" {
		fmt.Fprintln(os.Stderr, "-addr needs to be set")
		os.Exit(1)
	}
	if from == "" {
		fmt.Fprintln(os.Stderr, "-from needs to be set")
		os.Exit(1)
	}
	if len(to) == 0 {
		fmt.Fprintln(os.Stderr, "-to needs to be set")
		os.Exit(1)
	}

	data, err := readBody(body)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	builder := smtp.NewConnectionBuilder(addr)
	switch security {
	case "starttls":
		builder.UseStartTLS(smtp.DomainFromUnchecked(hostOf(addr)), nil)
	case "directtls":
		builder.UseDirectTLS(smtp.DomainFromUnchecked(hostOf(addr)), nil)
	case "none":
		builder.UseNoSecurity()
	default:
		fmt.Fprintf(os.Stderr, "unknown -security %q\n", security)
		os.Exit(1)
	}
	if user != "" {
		builder.Auth(smtp.AuthPlain("", user, pass))
	}
	if debug {
		builder.Tracer(smtp.TracerFunc(func(dir smtp.TraceDirection, b []byte) {
			fmt.Fprintf(os.Stderr, "%s %q\n", dir, b)
		}))
	}
	config := builder.Build()

	envelope := smtp.MailEnvelope{
		From: smtp.ReversePathFromUnchecked(from),
		Data: data,
	}
	for _, addr := range to {
		envelope.To = append(envelope.To, smtp.ForwardPathFromUnchecked(addr))
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	results := smtp.ConnectSendQuit(ctx, config, []smtp.MailEnvelope{envelope})
	if err := results[0].Err; err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func readBody(path string) ([]byte, error) {
	if path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func hostOf(addr string) string {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[:i]
	}
	return addr
}
