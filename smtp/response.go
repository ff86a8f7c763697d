package smtp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sd2k/smtpengine/smtp/codes"
)

// maxResponseLineLength is RFC 5321 §4.5.3.1.5's limit on a single reply
// line, including the code, separator and CRLF.
const maxResponseLineLength = 512

// maxResponseSize bounds the total size of a (possibly multi-line) response
// this package will buffer before giving up on a malformed or hostile peer.
const maxResponseSize = 64 * 1024

// Response is a parsed, possibly multi-line, SMTP reply.
type Response struct {
	Code codes.ResponseCode
	// Lines holds the message body, one entry per reply line, with the
	// leading "CODE-"/"CODE " prefix stripped.
	Lines []string
}

// Message joins Lines with "\n", for callers that don't care about the
// per-line structure.
func (r Response) Message() string { return strings.Join(r.Lines, "\n") }

func (r Response) String() string {
	return fmt.Sprintf("%d %s", r.Code, r.Message())
}

// IsErroneous reports whether the response's code is neither a positive
// completion nor a positive intermediate reply.
func (r Response) IsErroneous() bool { return r.Code.IsErroneous() }

// parseResponse parses a complete, CRLF-terminated multi-line SMTP response
// out of raw and returns the Response together with the number of bytes it
// consumed from raw. It returns ok == false if raw does not yet contain a
// complete response (the caller should read more and retry).
func parseResponse(raw []byte) (resp Response, consumed int, ok bool, err error) {
	var lines []parsedLine
	off := 0
	for {
		lineLen, termLen := indexLineEnd(raw[off:])
		if lineLen < 0 {
			if len(raw)-off > maxResponseLineLength {
				return Response{}, 0, false, fmt.Errorf("smtp: response line exceeds %d bytes", maxResponseLineLength)
			}
			return Response{}, 0, false, nil
		}
		line := raw[off : off+lineLen]
		off += lineLen + termLen

		pl, perr := parseLine(line)
		if perr != nil {
			return Response{}, 0, false, perr
		}
		lines = append(lines, pl)

		if off > maxResponseSize {
			return Response{}, 0, false, fmt.Errorf("smtp: response exceeds %d bytes without completing", maxResponseSize)
		}
		if !pl.continued {
			break
		}
	}

	resp, err = linesToResponse(lines)
	if err != nil {
		return Response{}, 0, false, err
	}
	return resp, off, true, nil
}

type parsedLine struct {
	code      int
	continued bool
	message   string
}

// indexLineEnd finds the line terminator in b: CRLF is the normal case, but
// a bare LF is tolerated for robustness against non-conforming peers (it is
// never emitted by this package). It returns the line length and the
// terminator's length (1 or 2), or -1 if b contains no terminator yet.
func indexLineEnd(b []byte) (lineLen, termLen int) {
	for i := 0; i < len(b); i++ {
		if b[i] == '\n' {
			if i > 0 && b[i-1] == '\r' {
				return i - 1, 2
			}
			return i, 1
		}
	}
	return -1, 0
}

// parseLine parses a single reply line (without its trailing CRLF): a
// three-digit code, a '-' (continued) or ' ' (final) separator, and a
// message that must be valid UTF-8.
func parseLine(line []byte) (parsedLine, error) {
	if len(line) > maxResponseLineLength-2 {
		return parsedLine{}, fmt.Errorf("smtp: response line exceeds %d bytes", maxResponseLineLength)
	}
	if len(line) < 3 {
		return parsedLine{}, fmt.Errorf("smtp: response line too short to contain a code: %q", line)
	}
	codeDigits := string(line[:3])
	for _, b := range []byte(codeDigits) {
		if b < '0' || b > '9' {
			return parsedLine{}, fmt.Errorf("smtp: response code %q is not numeric", codeDigits)
		}
	}
	code, err := strconv.Atoi(codeDigits)
	if err != nil {
		return parsedLine{}, fmt.Errorf("smtp: response code %q is not numeric", codeDigits)
	}

	var continued bool
	var msg []byte
	switch {
	case len(line) == 3:
		continued = false
		msg = nil
	case line[3] == '-':
		continued = true
		msg = line[4:]
	case line[3] == ' ':
		continued = false
		msg = line[4:]
	default:
		return parsedLine{}, fmt.Errorf("smtp: response line has invalid separator %q", line[3])
	}

	if !isValidUTF8(msg) {
		return parsedLine{}, fmt.Errorf("smtp: response message is not valid UTF-8")
	}

	return parsedLine{code: code, continued: continued, message: string(msg)}, nil
}

func isValidUTF8(b []byte) bool {
	return strings.ToValidUTF8(string(b), "�") == string(b)
}

// linesToResponse checks that every line in lines shares the same code and
// assembles the final Response.
func linesToResponse(lines []parsedLine) (Response, error) {
	if len(lines) == 0 {
		return Response{}, fmt.Errorf("smtp: empty response")
	}
	code := lines[0].code
	msgs := make([]string, len(lines))
	for i, l := range lines {
		if l.code != code {
			return Response{}, fmt.Errorf("smtp: inconsistent response code: line 1 has %d, line %d has %d", code, i+1, l.code)
		}
		msgs[i] = l.message
	}
	return Response{Code: codes.ResponseCode(code), Lines: msgs}, nil
}
