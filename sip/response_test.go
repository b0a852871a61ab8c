package sip_test

import (
	"testing"

	"github.com/pouriyajamshidi/sipping/sip"
)

const okResponse = "SIP/2.0 200 OK\r\n" +
	"Via: SIP/2.0/UDP 10.0.0.1:40000;branch=z9hG4bK1111111111\r\n" +
	"Call-ID: 2222222222\r\n" +
	"CSeq: 1 OPTIONS\r\n" +
	"Content-Length: 0\r\n" +
	"\r\n"

func TestFirstLine(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"crlf", okResponse, "SIP/2.0 200 OK"},
		{"lf", "SIP/2.0 404 Not Found\nVia: x\n", "SIP/2.0 404 Not Found"},
		{"single line", "garbage", "garbage"},
		{"empty", "", ""},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			if got := sip.FirstLine([]byte(c.raw)); got != c.want {
				t.Errorf("sip.FirstLine(%q) = %q, want %q", c.raw, got, c.want)
			}
		})
	}
}

func TestCallID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{"canonical", okResponse, "2222222222", true},
		{"compact", "SIP/2.0 200 OK\ni: 42\n\n", "42", true},
		{"case insensitive", "SIP/2.0 200 OK\ncall-id:  abc \n\n", "abc", true},
		{"missing", "SIP/2.0 200 OK\nCSeq: 1 OPTIONS\n\n", "", false},
		{"status line is not a header", "Call-ID: 1\n\n", "", false},
		{"body is ignored", "SIP/2.0 200 OK\nCSeq: 1 OPTIONS\n\nCall-ID: 9\n", "", false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			got, ok := sip.CallID([]byte(c.raw))
			if got != c.want || ok != c.wantOK {
				t.Errorf("sip.CallID(%q) = (%q, %v), want (%q, %v)", c.raw, got, ok, c.want, c.wantOK)
			}
		})
	}
}

func TestMatchesRequest(t *testing.T) {
	t.Parallel()

	req := sip.Request{CallID: "2222222222"}
	if !sip.MatchesRequest([]byte(okResponse), req) {
		t.Errorf("sip.MatchesRequest() = false, want true")
	}

	req.CallID = "3333333333"
	if sip.MatchesRequest([]byte(okResponse), req) {
		t.Errorf("sip.MatchesRequest() = true for a foreign Call-ID, want false")
	}
}
