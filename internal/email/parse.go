package email

import (
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"time"
)

// SenderSet is the configured set of "sender-address" strings
// (local_part@domain, lowercased) an email's sender must belong to for
// IsSend to be true.
type SenderSet map[string]struct{}

// NewSenderSet builds a SenderSet from a list of addresses.
func NewSenderSet(addrs []string) SenderSet {
	out := make(SenderSet, len(addrs))
	for _, a := range addrs {
		out[strings.ToLower(strings.TrimSpace(a))] = struct{}{}
	}
	return out
}

func (s SenderSet) contains(localPart, domain string) bool {
	_, ok := s[strings.ToLower(localPart+"@"+domain)]
	return ok
}

// ParseError carries the file path a parse failure occurred against, so
// the coordinator can record it in the errors table without losing context.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes raw RFC 822 message bytes plus format-supplied metadata
// into a normalized Row. path is stored verbatim for diagnostics and
// uniqueness; it is not necessarily parsed out of the message itself.
func Parse(raw []byte, path string, meta *Meta, senders SenderSet) (Row, error) {
	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	if err != nil {
		return Row{}, &ParseError{Path: path, Err: fmt.Errorf("read message: %w", err)}
	}
	h := msg.Header

	sender := h.Get("Sender")
	if strings.TrimSpace(sender) == "" {
		sender = h.Get("From")
	}
	name, localPart, domain := splitAddress(sender)

	date, err := parseDate(h)
	if err != nil {
		return Row{}, &ParseError{Path: path, Err: fmt.Errorf("parse date: %w", err)}
	}

	subject := decodeHeader(h.Get("Subject"))

	toAddrs := parseAddressList(h.Get("To"))
	var toGroup, toName, toAddress *string
	if len(toAddrs) > 0 {
		first := toAddrs[0]
		if first.group != "" {
			g := first.group
			toGroup = &g
		}
		if first.name != "" {
			n := first.name
			toName = &n
		}
		if first.email != "" {
			a := first.email
			toAddress = &a
		}
	}

	isReply := strings.TrimSpace(h.Get("In-Reply-To")) != ""
	isSend := senders.contains(localPart, domain)

	row := Row{
		Path:            path,
		SenderDomain:    domain,
		SenderLocalPart: localPart,
		SenderName:      name,
		Year:            date.Year(),
		Month:           int(date.Month()),
		Day:             date.Day(),
		Timestamp:       date.Unix(),
		Subject:         subject,
		ToCount:         len(toAddrs),
		ToGroup:         toGroup,
		ToName:          toName,
		ToAddress:       toAddress,
		IsReply:         isReply,
		IsSend:          isSend,
	}

	if meta != nil {
		tagStr := TagsString(meta.Tags)
		if len(meta.Tags) > 0 {
			row.MetaTags = &tagStr
		}
		seen := meta.IsSeen
		row.MetaIsSeen = &seen
	}

	return row, nil
}

func parseDate(h mail.Header) (time.Time, error) {
	t, err := h.Date()
	if err == nil {
		return t.UTC(), nil
	}
	// mail.Header.Date applies mail.ParseDate to the same Date header, so
	// this second attempt accepts no formats the first one rejected.
	if raw := h.Get("Date"); raw != "" {
		if t, err2 := mail.ParseDate(raw); err2 == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

// decodeHeader applies RFC 2047 MIME-word decoding, falling back to the
// raw header value when decoding fails (many real-world messages carry
// headers that only partially conform).
func decodeHeader(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if decoded, err := (&mime.WordDecoder{}).DecodeHeader(s); err == nil {
		return decoded
	}
	return s
}

// splitAddress decodes a single address header into (display name,
// local-part, domain). It takes the first address if more than one is
// present.
func splitAddress(header string) (name, localPart, domain string) {
	addrs := parseAddressList(header)
	if len(addrs) == 0 {
		return "", "", ""
	}
	a := addrs[0]
	email := a.email
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return a.name, email, ""
	}
	return a.name, email[:at], email[at+1:]
}

type addressEntry struct {
	group string
	name  string
	email string
}

// parseAddressList parses an address-list header, tolerating RFC 5322
// group syntax ("Undisclosed-recipients:a@x,b@y;") which net/mail does not
// accept, and falling back to a permissive comma-split when strict
// parsing fails outright (mirrors the teacher's parseAddrList helper).
func parseAddressList(header string) []addressEntry {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}

	if group, rest, ok := splitGroupSyntax(header); ok {
		entries := parseAddressList(rest)
		out := make([]addressEntry, len(entries))
		for i, e := range entries {
			e.group = group
			out[i] = e
		}
		return out
	}

	addrs, err := mail.ParseAddressList(header)
	if err == nil {
		out := make([]addressEntry, 0, len(addrs))
		for _, a := range addrs {
			if a == nil {
				continue
			}
			e := strings.ToLower(strings.TrimSpace(a.Address))
			if e == "" {
				continue
			}
			out = append(out, addressEntry{name: decodeHeader(a.Name), email: e})
		}
		return out
	}

	// Fallback: best-effort comma split.
	var out []addressEntry
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, addr := "", part
		if idx := strings.Index(part, "<"); idx >= 0 {
			if end := strings.Index(part[idx:], ">"); end > 0 {
				name = strings.TrimSpace(part[:idx])
				addr = strings.TrimSpace(part[idx+1 : idx+end])
			}
		}
		addr = strings.ToLower(strings.TrimSpace(addr))
		if addr == "" {
			continue
		}
		out = append(out, addressEntry{name: decodeHeader(name), email: addr})
	}
	return out
}

// splitGroupSyntax recognizes "Group-name: member, member;" and returns
// the group name plus the member list with the trailing semicolon removed.
func splitGroupSyntax(header string) (group, rest string, ok bool) {
	if !strings.HasSuffix(strings.TrimSpace(header), ";") {
		return "", "", false
	}
	colon := strings.Index(header, ":")
	if colon < 0 {
		return "", "", false
	}
	name := strings.TrimSpace(header[:colon])
	if name == "" || strings.ContainsAny(name, "@<>") {
		return "", "", false
	}
	members := strings.TrimSpace(header[colon+1:])
	members = strings.TrimSuffix(strings.TrimSpace(members), ";")
	return decodeHeader(name), members, true
}
