package smtp

import (
	"testing"

	"github.com/sd2k/smtpengine/smtp/codes"
	"zgo.at/ztest"
)

func TestParseEhloResponse(t *testing.T) {
	resp := Response{
		Code: codes.Ok,
		Lines: []string{
			"mx.example.com greets you",
			"8BITMIME",
			"SIZE 1024",
			"AUTH PLAIN LOGIN",
		},
	}

	ehlo := parseEhloResponse(resp)
	if ehlo.GreetingDomain != "mx.example.com" {
		t.Errorf("GreetingDomain = %q, want %q", ehlo.GreetingDomain, "mx.example.com")
	}
	if !ehlo.HasCapability("8bitmime") {
		t.Errorf("expected 8BITMIME to be advertised (case-insensitively)")
	}
	if !ehlo.HasCapabilityParam("AUTH", "plain") {
		t.Errorf("expected AUTH PLAIN to be advertised (case-insensitively)")
	}
	if !ehlo.HasCapabilityParam("AUTH", "LOGIN") {
		t.Errorf("expected AUTH LOGIN to be advertised")
	}
	if ehlo.HasCapability("STARTTLS") {
		t.Errorf("did not expect STARTTLS to be advertised")
	}
	got := ehlo.CapabilityParams("size")
	want := []string{"1024"}
	if ztest.Diff(joinWords(got), joinWords(want)) != "" {
		t.Errorf("CapabilityParams(SIZE) = %#v, want %#v", got, want)
	}
}

func TestParseEhloResponseGreetingOnly(t *testing.T) {
	resp := Response{Code: codes.Ok, Lines: []string{"mx.example.com"}}
	ehlo := parseEhloResponse(resp)
	if ehlo.GreetingDomain != "mx.example.com" {
		t.Errorf("GreetingDomain = %q", ehlo.GreetingDomain)
	}
	if ehlo.HasCapability("ANYTHING") {
		t.Errorf("bare-greeting EHLO should have no capabilities")
	}
}

func TestHeloFallbackIsConservative(t *testing.T) {
	ehlo := newHeloEhloData("mx.example.com")
	if !ehlo.IsHeloOnly() {
		t.Errorf("expected IsHeloOnly")
	}
	if ehlo.HasCapability("STARTTLS") || ehlo.HasCapability("AUTH") {
		t.Errorf("HELO fallback must not claim any real capabilities")
	}
}

func joinWords(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out
}
