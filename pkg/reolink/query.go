package reolink

import (
	"fmt"
	"net/url"
	"strings"
)

/*
 *  The device's HTTP server (at least on the Home Hub) refuses some RFC-compliant
 *  percent-encodings in the query string: '/' must not be sent as %2F, and a space
 *  must be %20 rather than '+'.  Go's query encoder produces both, so every
 *  finalised request URL is rewritten before it is sent.
 */

// Bit set of ASCII characters that are sent unescaped even when the encoder
// escaped them
var allowedUnescaped = func() (set [2]uint64) {
	for _, c := range []byte("!\"$&'()*,-./:;<>?@[]^_`{}~") {
		set[c/64] |= 1 << (c % 64)
	}
	return
}()

func isAllowedUnescaped(c byte) bool {
	return c < 0x80 && allowedUnescaped[c/64]&(1<<(c%64)) != 0
}

type segmentKind int

const (
	segmentLiteral segmentKind = iota
	segmentPlus
	segmentEscape
)

// queryScanner splits an encoded query string into literal runs, '+' markers
// and 3-byte %XX escapes
type queryScanner struct {
	qs  string
	pos int
}

func (s *queryScanner) next() (segmentKind, string, bool) {
	if s.pos >= len(s.qs) {
		return 0, "", false
	}

	switch s.qs[s.pos] {
	case '%':
		if s.pos+3 > len(s.qs) {
			panic(fmt.Sprintf("truncated percent-encoding at offset %d in %q", s.pos, s.qs))
		}
		seg := s.qs[s.pos : s.pos+3]
		s.pos += 3
		return segmentEscape, seg, true
	case '+':
		s.pos++
		return segmentPlus, "+", true
	}

	end := strings.IndexAny(s.qs[s.pos:], "%+")
	if end < 0 {
		end = len(s.qs)
	} else {
		end += s.pos
	}
	seg := s.qs[s.pos:end]
	s.pos = end
	return segmentLiteral, seg, true
}

// NormalizeQuery rewrites an already percent-encoded query string into the form
// the device accepts.  It returns the input and false when nothing needs to
// change.
//
// The argument must be a valid encoded query string, as produced by the request
// builder: a '%' not followed by two hex digits panics.
//
// Example: "foo%2Fbar+baz" becomes "foo/bar%20baz".
func NormalizeQuery(qs string) (string, bool) {
	scanner := queryScanner{qs: qs}
	kind, seg, ok := scanner.next()

	if !ok || (kind == segmentLiteral && len(seg) == len(qs)) {
		return qs, false
	}

	var b strings.Builder
	b.Grow(len(qs))

	for ; ok; kind, seg, ok = scanner.next() {
		switch kind {
		case segmentLiteral:
			b.WriteString(seg)
		case segmentPlus:
			b.WriteString("%20")
		case segmentEscape:
			c := unhex(seg[1])<<4 | unhex(seg[2])
			if isAllowedUnescaped(c) {
				b.WriteByte(c)
			} else {
				b.WriteString(seg)
			}
		}
	}

	return b.String(), true
}

// normalizeURL applies NormalizeQuery to the URL's raw query in place
func normalizeURL(u *url.URL) {
	if u == nil || u.RawQuery == "" {
		return
	}

	if qs, changed := NormalizeQuery(u.RawQuery); changed {
		u.RawQuery = qs
	}
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10
	}

	panic(fmt.Sprintf("invalid hex digit %q in percent-encoding", c))
}
