package sip

import (
	"bytes"
	"strings"
)

// FirstLine returns the first line of raw without its line terminator.
// For a response this is the status line, e.g. "SIP/2.0 200 OK".
func FirstLine(raw []byte) string {
	line, _, _ := bytes.Cut(raw, []byte("\n"))
	return string(bytes.TrimSuffix(line, []byte("\r")))
}

// HeaderValue returns the value of the first header called name in raw.
// Compact form names are matched when compact is not empty.
func HeaderValue(raw []byte, name, compact string) (string, bool) {
	head, _, _ := bytes.Cut(raw, []byte("\n\n"))
	head, _, _ = bytes.Cut(head, []byte("\r\n\r\n"))

	lines := strings.Split(string(head), "\n")
	for _, line := range lines[min(1, len(lines)):] {
		key, value, ok := strings.Cut(strings.TrimRight(line, "\r"), ":")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		if strings.EqualFold(key, name) || (compact != "" && strings.EqualFold(key, compact)) {
			return strings.TrimSpace(value), true
		}
	}

	return "", false
}

// CallID extracts the Call-ID header from raw.
func CallID(raw []byte) (string, bool) {
	return HeaderValue(raw, "Call-ID", "i")
}

// MatchesRequest reports whether raw carries the Call-ID of req.
func MatchesRequest(raw []byte, req Request) bool {
	id, ok := CallID(raw)
	return ok && id == req.CallID
}
