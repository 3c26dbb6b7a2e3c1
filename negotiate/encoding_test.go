// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package negotiate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAcceptEncoding(t *testing.T) {
	t.Run("will return a wildcard", func(t *testing.T) {
		t.Run("if the header is absent", func(t *testing.T) {
			codings := ParseAcceptEncoding(nil)

			if !assert.Equal(t, []Coding{{Identifier: Wildcard, Quality: 1}}, codings) {
				return
			}
		})
	})

	t.Run("will return identity only", func(t *testing.T) {
		testCases := []struct {
			Name   string
			Values []string
		}{
			{Name: "if the header is the empty string", Values: []string{""}},
			{Name: "if the header is only whitespace", Values: []string{"   "}},
			{Name: "if the qvalue is out of range", Values: []string{"gzip;q=1.5"}},
			{Name: "if the qvalue has too many digits", Values: []string{"gzip;q=0.1234"}},
			{Name: "if a coding is missing between commas", Values: []string{"gzip,,br"}},
			{Name: "if a coding contains a separator", Values: []string{"gz/ip"}},
			{Name: "if the weight is not q", Values: []string{"gzip;level=1"}},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				codings := ParseAcceptEncoding(testCase.Values)

				if !assert.Equal(t, []Coding{{Identifier: Identity, Quality: 1}}, codings) {
					return
				}
			})
		}
	})

	t.Run("will parse codings in header order", func(t *testing.T) {
		t.Run("if the header is valid", func(t *testing.T) {
			codings := ParseAcceptEncoding([]string{"deflate, GZIP;q=0.5 ,br ; Q=1.0, *;q=0"})

			expected := []Coding{
				{Identifier: "deflate", Quality: 1},
				{Identifier: Gzip, Quality: 0.5},
				{Identifier: Brotli, Quality: 1},
				{Identifier: Wildcard, Quality: 0},
			}
			if !assert.Equal(t, expected, codings) {
				return
			}
		})

		t.Run("if more than one header value is given", func(t *testing.T) {
			codings := ParseAcceptEncoding([]string{"gzip", "br"})

			if !assert.Equal(t, []Coding{{Identifier: Gzip, Quality: 1}}, codings) {
				return
			}
		})
	})
}

func TestSelectEncoding(t *testing.T) {
	t.Run("will select the strongest compressor", func(t *testing.T) {
		t.Run("if the only coding is a wildcard", func(t *testing.T) {
			coding, ok := SelectEncoding([]Coding{{Identifier: Wildcard, Quality: 1}})
			if !assert.True(t, ok) {
				return
			}
			if !assert.Equal(t, Brotli, coding.Identifier) {
				return
			}
		})

		t.Run("if every implemented coding has the same quality", func(t *testing.T) {
			coding, ok := SelectEncoding([]Coding{
				{Identifier: Identity, Quality: 0.5},
				{Identifier: Brotli, Quality: 0.5},
				{Identifier: Gzip, Quality: 0.5},
			})
			if !assert.True(t, ok) {
				return
			}
			if !assert.Equal(t, Brotli, coding.Identifier) {
				return
			}
		})
	})

	t.Run("will select the highest quality", func(t *testing.T) {
		testCases := []struct {
			Name     string
			Codings  []Coding
			Expected string
		}{
			{
				Name: "if gzip is preferred over br",
				Codings: []Coding{
					{Identifier: Brotli, Quality: 0.1},
					{Identifier: Gzip, Quality: 0.9},
				},
				Expected: Gzip,
			},
			{
				Name: "if a wildcard is weighted lower than an explicit coding",
				Codings: []Coding{
					{Identifier: Identity, Quality: 1},
					{Identifier: Wildcard, Quality: 0.5},
				},
				Expected: Identity,
			},
			{
				Name: "if an explicit coding excludes itself from the wildcard",
				Codings: []Coding{
					{Identifier: Brotli, Quality: 0},
					{Identifier: Wildcard, Quality: 1},
				},
				Expected: Gzip,
			},
			{
				Name: "if unimplemented codings are listed",
				Codings: []Coding{
					{Identifier: "zstd", Quality: 1},
					{Identifier: "deflate", Quality: 1},
					{Identifier: Gzip, Quality: 0.2},
				},
				Expected: Gzip,
			},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				coding, ok := SelectEncoding(testCase.Codings)
				if !assert.True(t, ok) {
					return
				}
				if !assert.Equal(t, testCase.Expected, coding.Identifier) {
					return
				}
			})
		}
	})

	t.Run("will fail", func(t *testing.T) {
		testCases := []struct {
			Name    string
			Codings []Coding
		}{
			{
				Name:    "if the only coding has a quality of zero",
				Codings: []Coding{{Identifier: Gzip, Quality: 0}},
			},
			{
				Name:    "if identity is explicitly refused",
				Codings: []Coding{{Identifier: Identity, Quality: 0}},
			},
			{
				Name:    "if no implemented coding is listed",
				Codings: []Coding{{Identifier: "zstd", Quality: 1}},
			},
			{
				Name:    "if the wildcard refuses everything",
				Codings: []Coding{{Identifier: Wildcard, Quality: 0}},
			},
			{
				Name:    "if there are no codings",
				Codings: nil,
			},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				_, ok := SelectEncoding(testCase.Codings)
				if !assert.False(t, ok) {
					return
				}
			})
		}
	})
}

func TestEncoding(t *testing.T) {
	t.Run("will select identity", func(t *testing.T) {
		t.Run("if the header is empty", func(t *testing.T) {
			coding, ok := Encoding([]string{""})
			if !assert.True(t, ok) {
				return
			}
			if !assert.Equal(t, Identity, coding.Identifier) {
				return
			}
		})

		t.Run("if the header is not valid", func(t *testing.T) {
			coding, ok := Encoding([]string{"br;q=abc"})
			if !assert.True(t, ok) {
				return
			}
			if !assert.Equal(t, Identity, coding.Identifier) {
				return
			}
		})
	})

	t.Run("will select br", func(t *testing.T) {
		t.Run("if the header is absent", func(t *testing.T) {
			coding, ok := Encoding(nil)
			if !assert.True(t, ok) {
				return
			}
			if !assert.Equal(t, Brotli, coding.Identifier) {
				return
			}
		})
	})
}

func TestKnown(t *testing.T) {
	t.Run("will not expose the internal ordering", func(t *testing.T) {
		t.Run("if the returned slice is modified", func(t *testing.T) {
			codings := Known()
			codings[0] = "zstd"

			if !assert.True(t, IsKnown(Identity)) {
				return
			}
			if !assert.False(t, IsKnown("zstd")) {
				return
			}
		})
	})
}
