// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package negotiate implements proactive content negotiation for the
// Accept-Encoding and Accept request headers, following the grammar in
// RFC 9110 section 12.5.
package negotiate

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Identifiers of the content codings implemented by this server.
const (
	Identity = "identity"
	Gzip     = "gzip"
	Brotli   = "br"

	// Wildcard matches any coding not explicitly listed.
	Wildcard = "*"
)

// known lists the implemented codings from least to most compressed.
// Equal quality ties are broken in favour of later entries.
var known = []string{Identity, Gzip, Brotli}

// AcceptableEncodingsHeader is the value sent back in the Accept-Encoding
// response header when no acceptable coding could be negotiated.
const AcceptableEncodingsHeader = "br, gzip, identity"

// Known returns the implemented coding identifiers ordered from least to
// most compressed.
func Known() []string {
	return slices.Clone(known)
}

// IsKnown reports whether identifier names an implemented coding.
func IsKnown(identifier string) bool {
	return slices.Contains(known, identifier)
}

func priority(identifier string) int {
	return slices.Index(known, identifier)
}

// Coding is a single entry of an Accept-Encoding header.
type Coding struct {
	Identifier string
	Quality    float64
}

// Accept-Encoding = [ ( codings [ weight ] ) *( OWS "," OWS ( codings [ weight ] ) ) ]
// codings         = content-coding / "identity" / "*"
// content-coding  = token
// weight          = OWS ";" OWS "q=" qvalue
// qvalue          = ( "0" [ "." 0*3DIGIT ] ) / ( "1" [ "." 0*3("0") ] )
const (
	tcharPattern  = "[!#$%&'*+\\-.^_`|~0-9a-zA-Z]"
	tokenPattern  = tcharPattern + "+"
	owsPattern    = "[ \t]*"
	qvaluePattern = `(?:0(?:\.[0-9]{0,3})?|1(?:\.0{0,3})?)`
	weightPattern = owsPattern + ";" + owsPattern + "[qQ]=" + qvaluePattern
	codingPattern = "(?:" + tokenPattern + ")(?:" + weightPattern + ")?"
)

var acceptEncodingRegexp = regexp.MustCompile(
	"^(?:" + codingPattern + "(?:" + owsPattern + "," + owsPattern + codingPattern + ")*)?$",
)

// ParseAcceptEncoding parses the values of the Accept-Encoding header into
// the codings it contains, in header order. Only the first header value is
// considered when multiple are given.
//
// Absent values are treated as "*", the client accepts anything. An empty
// value, or one that does not match the grammar, is treated as accepting
// only "identity". Parsing never fails.
func ParseAcceptEncoding(values []string) []Coding {
	if len(values) == 0 {
		return []Coding{{Identifier: Wildcard, Quality: 1}}
	}

	header := strings.TrimSpace(values[0])
	if header == "" || !acceptEncodingRegexp.MatchString(header) {
		return []Coding{{Identifier: Identity, Quality: 1}}
	}

	raw := strings.Split(header, ",")
	codings := make([]Coding, 0, len(raw))
	for _, codingRaw := range raw {
		identifier, weight, hasWeight := strings.Cut(codingRaw, ";")

		coding := Coding{
			Identifier: strings.ToLower(strings.TrimSpace(identifier)),
			Quality:    1,
		}
		if hasWeight {
			_, qvalue, _ := strings.Cut(weight, "=")
			q, err := strconv.ParseFloat(strings.TrimSpace(qvalue), 64)
			if err == nil {
				coding.Quality = q
			}
		}
		codings = append(codings, coding)
	}
	return codings
}

// SelectEncoding picks the implemented coding to respond with. Codings the
// server does not implement are ignored, except for "*" which stands in
// for every implemented coding not explicitly listed.
//
// The highest quality wins and ties go to the most compressed coding.
// False is returned when nothing implemented is acceptable, including when
// the best candidate has a quality of zero.
func SelectEncoding(codings []Coding) (Coding, bool) {
	candidates := make([]Coding, 0, len(known))
	var wildcard *Coding
	for i, coding := range codings {
		if coding.Identifier == Wildcard {
			if wildcard == nil {
				wildcard = &codings[i]
			}
			continue
		}
		if !IsKnown(coding.Identifier) {
			continue
		}
		candidates = append(candidates, coding)
	}

	if wildcard != nil {
		for _, identifier := range known {
			listed := slices.ContainsFunc(candidates, func(c Coding) bool {
				return c.Identifier == identifier
			})
			if listed {
				continue
			}
			candidates = append(candidates, Coding{
				Identifier: identifier,
				Quality:    wildcard.Quality,
			})
		}
	}

	if len(candidates) == 0 {
		return Coding{}, false
	}

	slices.SortStableFunc(candidates, func(a, b Coding) int {
		switch {
		case a.Quality > b.Quality:
			return -1
		case a.Quality < b.Quality:
			return 1
		default:
			return priority(b.Identifier) - priority(a.Identifier)
		}
	})

	best := candidates[0]
	if best.Quality == 0 {
		return Coding{}, false
	}
	return best, true
}

// Encoding parses and selects in one step, see [ParseAcceptEncoding] and
// [SelectEncoding].
func Encoding(values []string) (Coding, bool) {
	return SelectEncoding(ParseAcceptEncoding(values))
}
