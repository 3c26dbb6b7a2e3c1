// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package negotiate

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrMalformedAccept is matched by every [InvalidAcceptError]. It signals a
// bad request, as opposed to a well formed header nothing satisfies.
var ErrMalformedAccept = errors.New("malformed accept header")

// InvalidAcceptError describes where an Accept header stopped matching
// the grammar.
type InvalidAcceptError struct {
	Header string
	Offset int
	Reason string
}

// Error implements the [builtin.error] interface.
func (e InvalidAcceptError) Error() string {
	return fmt.Sprintf("invalid accept header at offset %d: %s", e.Offset, e.Reason)
}

// Is implements the implicit interface used by [errors.Is].
func (InvalidAcceptError) Is(target error) bool {
	return target == ErrMalformedAccept
}

// MediaType is a media type a handler is able to produce.
type MediaType struct {
	Type       string
	Subtype    string
	Parameters map[string]string
}

// String formats the media type for use in a Content-Type header.
func (m MediaType) String() string {
	var sb strings.Builder
	sb.WriteString(m.Type)
	sb.WriteByte('/')
	sb.WriteString(m.Subtype)

	keys := make([]string, 0, len(m.Parameters))
	for k := range m.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString("; ")
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(m.Parameters[k])
	}
	return sb.String()
}

// MediaRange is a single entry of an Accept header.
type MediaRange struct {
	MediaType
	Quality float64
}

func (r MediaRange) specificity() int {
	switch {
	case r.Type == "*":
		return 0
	case r.Subtype == "*":
		return 1
	default:
		return 2 + len(r.Parameters)
	}
}

func (r MediaRange) matches(m MediaType) bool {
	if r.Type != "*" && !strings.EqualFold(r.Type, m.Type) {
		return false
	}
	if r.Subtype != "*" && !strings.EqualFold(r.Subtype, m.Subtype) {
		return false
	}
	for k, v := range r.Parameters {
		have, ok := m.Parameters[k]
		if !ok || !strings.EqualFold(have, v) {
			return false
		}
	}
	return true
}

// ParseAccept parses every value of the Accept header, treating them as one
// comma separated list. Absent or empty values are treated as "*/*".
//
//	Accept      = #( media-range [ weight ] )
//	media-range = ( "*/*" / ( type "/*" ) / ( type "/" subtype ) ) parameters
//	parameters  = *( OWS ";" OWS [ parameter ] )
//	parameter   = token "=" ( token / quoted-string )
//
// A parameter named "q" is the weight; parameters after it are extensions
// and are ignored.
func ParseAccept(values []string) ([]MediaRange, error) {
	header := strings.Join(values, ",")
	if strings.TrimSpace(header) == "" {
		return []MediaRange{{MediaType: MediaType{Type: "*", Subtype: "*"}, Quality: 1}}, nil
	}

	p := &acceptParser{s: header}
	return p.parse()
}

type acceptParser struct {
	s   string
	pos int
}

func (p *acceptParser) fail(reason string) error {
	return InvalidAcceptError{Header: p.s, Offset: p.pos, Reason: reason}
}

func (p *acceptParser) eof() bool {
	return p.pos >= len(p.s)
}

func (p *acceptParser) peek() byte {
	return p.s[p.pos]
}

func (p *acceptParser) skipOWS() {
	for !p.eof() && (p.peek() == ' ' || p.peek() == '\t') {
		p.pos++
	}
}

func isTchar(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0
}

func (p *acceptParser) token() string {
	start := p.pos
	for !p.eof() && isTchar(p.peek()) {
		p.pos++
	}
	return p.s[start:p.pos]
}

func (p *acceptParser) quotedString() (string, error) {
	// opening DQUOTE already peeked
	p.pos++
	var sb strings.Builder
	for !p.eof() {
		c := p.peek()
		switch {
		case c == '"':
			p.pos++
			return sb.String(), nil
		case c == '\\':
			p.pos++
			if p.eof() {
				return "", p.fail("unterminated quoted-pair")
			}
			sb.WriteByte(p.peek())
			p.pos++
		case c == '\t' || c == ' ' || c == 0x21 || (0x23 <= c && c <= 0x5b) || (0x5d <= c && c <= 0x7e) || c >= 0x80:
			sb.WriteByte(c)
			p.pos++
		default:
			return "", p.fail("invalid character in quoted-string")
		}
	}
	return "", p.fail("unterminated quoted-string")
}

func (p *acceptParser) parse() ([]MediaRange, error) {
	var ranges []MediaRange
	for {
		p.skipOWS()
		if p.eof() {
			break
		}
		if p.peek() == ',' {
			// empty list elements are allowed and ignored
			p.pos++
			continue
		}

		r, err := p.mediaRange()
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)

		p.skipOWS()
		if p.eof() {
			break
		}
		if p.peek() != ',' {
			return nil, p.fail("expected ','")
		}
		p.pos++
	}
	if len(ranges) == 0 {
		return nil, p.fail("no media ranges")
	}
	return ranges, nil
}

func (p *acceptParser) mediaRange() (MediaRange, error) {
	typ := p.token()
	if typ == "" {
		return MediaRange{}, p.fail("expected type")
	}
	if p.eof() || p.peek() != '/' {
		return MediaRange{}, p.fail("expected '/'")
	}
	p.pos++
	subtype := p.token()
	if subtype == "" {
		return MediaRange{}, p.fail("expected subtype")
	}
	if typ == "*" && subtype != "*" {
		return MediaRange{}, p.fail("wildcard type requires wildcard subtype")
	}

	r := MediaRange{
		MediaType: MediaType{
			Type:    strings.ToLower(typ),
			Subtype: strings.ToLower(subtype),
		},
		Quality: 1,
	}

	weighted := false
	for {
		save := p.pos
		p.skipOWS()
		if p.eof() || p.peek() != ';' {
			p.pos = save
			return r, nil
		}
		p.pos++
		p.skipOWS()
		if p.eof() || p.peek() == ',' || p.peek() == ';' {
			continue
		}

		name := p.token()
		if name == "" {
			return MediaRange{}, p.fail("expected parameter name")
		}
		if p.eof() || p.peek() != '=' {
			return MediaRange{}, p.fail("expected '='")
		}
		p.pos++

		var value string
		if !p.eof() && p.peek() == '"' {
			v, err := p.quotedString()
			if err != nil {
				return MediaRange{}, err
			}
			value = v
		} else {
			value = p.token()
			if value == "" {
				return MediaRange{}, p.fail("expected parameter value")
			}
		}

		name = strings.ToLower(name)
		switch {
		case weighted:
			// accept-ext, ignored
		case name == "q":
			q, err := parseQValue(value)
			if err != nil {
				return MediaRange{}, p.fail(err.Error())
			}
			r.Quality = q
			weighted = true
		default:
			if r.Parameters == nil {
				r.Parameters = make(map[string]string)
			}
			r.Parameters[name] = value
		}
	}
}

func parseQValue(s string) (float64, error) {
	if len(s) == 0 || len(s) > 5 || (s[0] != '0' && s[0] != '1') {
		return 0, errors.New("invalid qvalue")
	}
	if len(s) > 1 {
		if s[1] != '.' {
			return 0, errors.New("invalid qvalue")
		}
		for _, c := range s[2:] {
			if c < '0' || c > '9' || (s[0] == '1' && c != '0') {
				return 0, errors.New("invalid qvalue")
			}
		}
	}
	return strconv.ParseFloat(s, 64)
}

// SelectAccept picks the supported media type to respond with. Each
// supported type is weighted by the most specific range matching it, the
// highest weight wins and ties go to the earlier supported type. False is
// returned when no supported type has a non-zero weight.
func SelectAccept(ranges []MediaRange, supported []MediaType) (MediaType, bool) {
	bestIdx := -1
	bestQ := 0.0
	for i, m := range supported {
		q := quality(ranges, m)
		if q > bestQ {
			bestIdx = i
			bestQ = q
		}
	}
	if bestIdx < 0 {
		return MediaType{}, false
	}
	return supported[bestIdx], true
}

func quality(ranges []MediaRange, m MediaType) float64 {
	spec := -1
	q := 0.0
	for _, r := range ranges {
		if !r.matches(m) {
			continue
		}
		s := r.specificity()
		if s > spec {
			spec = s
			q = r.Quality
		}
	}
	return q
}

// Accept parses and selects in one step, see [ParseAccept] and [SelectAccept].
// A malformed header results in an error matching [ErrMalformedAccept].
func Accept(values []string, supported []MediaType) (MediaType, bool, error) {
	ranges, err := ParseAccept(values)
	if err != nil {
		return MediaType{}, false, err
	}
	m, ok := SelectAccept(ranges, supported)
	return m, ok, nil
}
