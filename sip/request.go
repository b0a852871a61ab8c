package sip

import (
	"net/netip"
	"strconv"
	"strings"
)

const (
	// NonceLength is the number of digits used for Call-ID and branch values.
	NonceLength = 10

	// BranchMagicCookie prefixes every Via branch (RFC 3261 section 8.1.1.7).
	BranchMagicCookie = "z9hG4bK"

	// MarkerHeader flags the request as a probe for devices that care.
	MarkerHeader = "X-redundancy: Request"

	displayName = `"SIP Ping"`
)

// OptionsParams holds everything needed to render an OPTIONS request.
type OptionsParams struct {
	Domain      string
	UserID      string
	MaxForwards uint
	LocalAddr   netip.Addr
	LocalPort   uint16
	CallID      string
	Branch      string
}

// Request is a rendered OPTIONS probe together with the nonces that tag it.
type Request struct {
	CallID string
	Branch string
	Text   string
}

// Bytes returns the wire representation of the request.
func (r Request) Bytes() []byte {
	return []byte(r.Text)
}

// NewRequest generates a fresh Call-ID and branch and renders the request.
// Any CallID or Branch already set on p is overwritten.
func NewRequest(p OptionsParams) Request {
	p.CallID = Nonce(NonceLength)
	p.Branch = Nonce(NonceLength)

	return Request{
		CallID: p.CallID,
		Branch: p.Branch,
		Text:   BuildOptions(p),
	}
}

// BuildOptions renders an OPTIONS request from p.
// The output only depends on p, so equal params always give equal bytes.
func BuildOptions(p OptionsParams) string {
	var sb strings.Builder

	aor := displayName + "<sip:" + p.UserID + "@" + p.Domain + ">"

	writeLine(&sb, "OPTIONS sip:"+p.Domain+" SIP/2.0")
	writeLine(&sb, "Via: SIP/2.0/UDP "+viaHost(p.LocalAddr, p.LocalPort)+";branch="+BranchMagicCookie+p.Branch)
	writeLine(&sb, "To: "+aor)
	writeLine(&sb, "From: "+aor)
	writeLine(&sb, "Call-ID: "+p.CallID)
	writeLine(&sb, "CSeq: 1 OPTIONS")
	writeLine(&sb, "Max-forwards: "+strconv.FormatUint(uint64(p.MaxForwards), 10))
	writeLine(&sb, MarkerHeader)
	writeLine(&sb, "Content-Length: 0")
	writeLine(&sb, "")

	return sb.String()
}

func writeLine(sb *strings.Builder, line string) {
	sb.WriteString(line)
	sb.WriteByte('\n')
}

func viaHost(addr netip.Addr, port uint16) string {
	if !addr.IsValid() {
		addr = netip.IPv4Unspecified()
	}

	return netip.AddrPortFrom(addr.Unmap(), port).String()
}
