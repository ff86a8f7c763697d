package smtp

import (
	"fmt"
	"net"
	"os"
	"strings"

	"golang.org/x/net/idna"
)

// SyntaxError reports that a caller-supplied string does not conform to the
// RFC 5321 grammar of the construct it was parsed as.
type SyntaxError struct {
	Kind  string
	Value string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("smtp: syntax error parsing %s in %q", e.Kind, e.Value)
}

// Domain is a DNS name, lower-cased and compared case-insensitively.
//
// Non-ASCII input is punycode-encoded via idna before the dot-atom grammar
// is checked, so internationalized host names round-trip the same way a
// SMTPUTF8-aware client would expect.
type Domain struct {
	raw string
}

// NewDomain validates s as a RFC 5321 §4.1.2 Domain, punycode-encoding it
// first if it contains non-ASCII labels.
func NewDomain(s string) (Domain, error) {
	ascii, err := idna.ToASCII(s)
	if err != nil {
		return Domain{}, &SyntaxError{Kind: "Domain", Value: s}
	}
	if !validDomain(ascii) {
		return Domain{}, &SyntaxError{Kind: "Domain", Value: s}
	}
	return Domain{raw: strings.ToLower(ascii)}, nil
}

// DomainFromUnchecked builds a Domain without validating it. The caller is
// asserting the value has already been validated elsewhere.
func DomainFromUnchecked(s string) Domain { return Domain{raw: strings.ToLower(s)} }

func (d Domain) String() string { return d.raw }
func (d Domain) IsZero() bool   { return d.raw == "" }

func validDomain(s string) bool {
	if s == "" {
		return false
	}
	for _, label := range strings.Split(s, ".") {
		if !validSubdomain(label) {
			return false
		}
	}
	return true
}

func validSubdomain(s string) bool {
	if len(s) < 1 {
		return false
	}
	if !isAlnum(s[0]) || !isAlnum(s[len(s)-1]) {
		return false
	}
	for i := 1; i < len(s)-1; i++ {
		if !isAlnum(s[i]) && s[i] != '-' {
			return false
		}
	}
	return true
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// AddressLiteral is a bracketed address literal, e.g. "[127.0.0.1]" or
// "[IPv6:::1]".
type AddressLiteral struct {
	raw string
}

// AddressLiteralFromIP builds an AddressLiteral from an IPv4 or IPv6 address.
func AddressLiteralFromIP(ip net.IP) AddressLiteral {
	if v4 := ip.To4(); v4 != nil {
		return AddressLiteral{raw: fmt.Sprintf("[%s]", v4.String())}
	}
	return AddressLiteral{raw: fmt.Sprintf("[IPv6:%s]", ip.String())}
}

// NewCustomAddressLiteral builds an address literal using a standardized,
// IANA-registered tag other than the bare IPv4/IPv6 forms, e.g.
// NewCustomAddressLiteral("X-MY-TAG", "some-value").
func NewCustomAddressLiteral(tag, value string) (AddressLiteral, error) {
	if tag == "" || tag[len(tag)-1] == '-' || !allBytes(tag, isTagByte) {
		return AddressLiteral{}, &SyntaxError{Kind: "AddressLiteral tag", Value: tag}
	}
	if !allBytes(value, isAddrLitValueByte) {
		return AddressLiteral{}, &SyntaxError{Kind: "AddressLiteral value", Value: value}
	}
	return AddressLiteral{raw: fmt.Sprintf("[%s:%s]", tag, value)}, nil
}

func (a AddressLiteral) String() string { return a.raw }

func isTagByte(b byte) bool { return isAlnum(b) || b == '-' }
func isAddrLitValueByte(b byte) bool {
	return (b >= 33 && b <= 90) || (b >= 94 && b <= 126)
}

func allBytes(s string, pred func(byte) bool) bool {
	for i := 0; i < len(s); i++ {
		if !pred(s[i]) {
			return false
		}
	}
	return true
}

// ClientId is the argument given to EHLO/HELO: either a Domain or an
// AddressLiteral.
type ClientId struct {
	domain  Domain
	literal AddressLiteral
	isAddr  bool
}

// NewClientIdDomain wraps a Domain as a ClientId.
func NewClientIdDomain(d Domain) ClientId { return ClientId{domain: d} }

// NewClientIdAddressLiteral wraps an AddressLiteral as a ClientId.
func NewClientIdAddressLiteral(a AddressLiteral) ClientId {
	return ClientId{literal: a, isAddr: true}
}

// DefaultClientId is the fallback used when the local hostname cannot be
// determined: the IPv4 loopback address literal "[127.0.0.1]".
func DefaultClientId() ClientId {
	return NewClientIdAddressLiteral(AddressLiteral{raw: "[127.0.0.1]"})
}

// LocalhostClientId builds a ClientId from os.Hostname, falling back to
// DefaultClientId if the hostname can't be determined or doesn't parse as a
// Domain.
func LocalhostClientId() ClientId {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return DefaultClientId()
	}
	d, err := NewDomain(host)
	if err != nil {
		return DefaultClientId()
	}
	return NewClientIdDomain(d)
}

func (c ClientId) String() string {
	if c.isAddr {
		return c.literal.String()
	}
	return c.domain.String()
}

// EsmtpKeyword is the case-insensitive keyword naming an ESMTP capability,
// e.g. "STARTTLS" or "8BITMIME". It is always stored upper-cased.
type EsmtpKeyword struct {
	raw string
}

// NewEsmtpKeyword validates and uppercases s.
func NewEsmtpKeyword(s string) (EsmtpKeyword, error) {
	if len(s) < 1 || len(s) > 20 || !isAlnum(s[0]) {
		return EsmtpKeyword{}, &SyntaxError{Kind: "EsmtpKeyword", Value: s}
	}
	for i := 1; i < len(s); i++ {
		if !isAlnum(s[i]) && s[i] != '-' {
			return EsmtpKeyword{}, &SyntaxError{Kind: "EsmtpKeyword", Value: s}
		}
	}
	return EsmtpKeyword{raw: strings.ToUpper(s)}, nil
}

// EsmtpKeywordFromUnchecked builds an EsmtpKeyword without validation.
func EsmtpKeywordFromUnchecked(s string) EsmtpKeyword { return EsmtpKeyword{raw: strings.ToUpper(s)} }

func (k EsmtpKeyword) String() string { return k.raw }

// EsmtpValue is a single parameter word following an EsmtpKeyword in an EHLO
// continuation line: printable, non-space bytes.
type EsmtpValue struct{ raw string }

// NewEsmtpValue validates s as printable non-space ASCII.
func NewEsmtpValue(s string) (EsmtpValue, error) {
	if !allBytes(s, isPrintableNonSpace) {
		return EsmtpValue{}, &SyntaxError{Kind: "EsmtpValue", Value: s}
	}
	return EsmtpValue{raw: s}, nil
}

func isPrintableNonSpace(b byte) bool { return b >= 33 && b <= 126 }

func (v EsmtpValue) String() string { return v.raw }

// ForwardPath is the opaque address token used in RCPT TO:<...>.
type ForwardPath struct{ raw string }

// ForwardPathFromUnchecked builds a ForwardPath without validating it; the
// caller asserts the address was already validated by an address-parsing
// collaborator.
func ForwardPathFromUnchecked(s string) ForwardPath { return ForwardPath{raw: s} }

func (p ForwardPath) String() string { return fmt.Sprintf("<%s>", p.raw) }
func (p ForwardPath) Raw() string    { return p.raw }

// ReversePath is the opaque address token used in MAIL FROM:<...>. An empty
// ReversePath serializes to the null reverse path "<>".
type ReversePath struct{ raw string }

// ReversePathFromUnchecked builds a ReversePath without validating it.
func ReversePathFromUnchecked(s string) ReversePath { return ReversePath{raw: s} }

// EmptyReversePath returns the null reverse path, "<>".
func EmptyReversePath() ReversePath { return ReversePath{} }

func (p ReversePath) String() string { return fmt.Sprintf("<%s>", p.raw) }
func (p ReversePath) Raw() string    { return p.raw }
