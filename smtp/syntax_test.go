package smtp

import (
	"net"
	"testing"
)

func TestNewDomain(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"example.com", false},
		{"mx1.example.com", false},
		{"xn--nxasmq6b.example.com", false},
		{"", true},
		{"-leading-hyphen.com", true},
		{"trailing-hyphen-.com", true},
		{"a.b", false}, // one-character labels are valid sub-domains
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := NewDomain(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewDomain(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
}

func TestNewDomainPunycodesUnicode(t *testing.T) {
	d, err := NewDomain("straße.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() == "straße.example.com" {
		t.Errorf("expected the unicode label to be punycode-encoded, got %q", d.String())
	}
}

func TestAddressLiteralFromIP(t *testing.T) {
	v4 := AddressLiteralFromIP(net.ParseIP("127.0.0.1"))
	if v4.String() != "[127.0.0.1]" {
		t.Errorf("v4 literal = %q, want %q", v4.String(), "[127.0.0.1]")
	}

	v6 := AddressLiteralFromIP(net.ParseIP("::1"))
	if v6.String() != "[IPv6:::1]" {
		t.Errorf("v6 literal = %q, want %q", v6.String(), "[IPv6:::1]")
	}
}

func TestNewCustomAddressLiteral(t *testing.T) {
	lit, err := NewCustomAddressLiteral("X-MY-TAG", "some-value")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lit.String() != "[X-MY-TAG:some-value]" {
		t.Errorf("literal = %q", lit.String())
	}

	if _, err := NewCustomAddressLiteral("", "v"); err == nil {
		t.Errorf("expected an empty tag to be rejected")
	}
	if _, err := NewCustomAddressLiteral("bad-", "v"); err == nil {
		t.Errorf("expected a trailing-hyphen tag to be rejected")
	}
}

func TestClientIdString(t *testing.T) {
	d, err := NewDomain("example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := NewClientIdDomain(d).String(); got != "example.com" {
		t.Errorf("domain ClientId = %q", got)
	}
	if got := DefaultClientId().String(); got != "[127.0.0.1]" {
		t.Errorf("default ClientId = %q", got)
	}
}

func TestNewEsmtpKeyword(t *testing.T) {
	k, err := NewEsmtpKeyword("8bitmime")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k.String() != "8BITMIME" {
		t.Errorf("keyword = %q, want upper-cased", k.String())
	}

	if _, err := NewEsmtpKeyword(""); err == nil {
		t.Errorf("expected empty keyword to be rejected")
	}
	if _, err := NewEsmtpKeyword("has a space"); err == nil {
		t.Errorf("expected a keyword containing a space to be rejected")
	}
}

func TestForwardAndReversePathFormatting(t *testing.T) {
	fp := ForwardPathFromUnchecked("user@example.com")
	if fp.String() != "<user@example.com>" {
		t.Errorf("ForwardPath.String() = %q", fp.String())
	}

	rp := ReversePathFromUnchecked("sender@example.com")
	if rp.String() != "<sender@example.com>" {
		t.Errorf("ReversePath.String() = %q", rp.String())
	}

	if EmptyReversePath().String() != "<>" {
		t.Errorf("EmptyReversePath().String() = %q, want %q", EmptyReversePath().String(), "<>")
	}
}
