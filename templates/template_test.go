// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package templates

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/z5labs/stencil/schema"
)

func TestRenderer_Render(t *testing.T) {
	t.Run("will render the plain flavour", func(t *testing.T) {
		t.Run("if the format is plain", func(t *testing.T) {
			var sb strings.Builder
			err := MustParse("sample").Render(&sb, map[string]any{
				"name":    "John",
				"message": "Hello <World>",
			}, Plain)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, "Hello John,\n\nHello <World>", sb.String()) {
				return
			}
		})
	})

	t.Run("will escape params", func(t *testing.T) {
		t.Run("if the format is html", func(t *testing.T) {
			var sb strings.Builder
			err := MustParse("sample").Render(&sb, map[string]any{
				"name":    "John",
				"message": "Hello <World>",
			}, HTML)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Contains(t, sb.String(), "Hello &lt;World&gt;") {
				return
			}
		})
	})

	t.Run("will query encode the link", func(t *testing.T) {
		t.Run("if the template builds a url from params", func(t *testing.T) {
			var sb strings.Builder
			err := MustParse("resetPassword").Render(&sb, map[string]any{
				"code":  "abc def",
				"email": "a+b@example.com",
			}, Plain)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.True(t, strings.HasSuffix(sb.String(), "?code=abc+def&email=a%2Bb%40example.com")) {
				return
			}
		})
	})

	t.Run("will return an UnknownFormatError", func(t *testing.T) {
		t.Run("if the format is not html or plain", func(t *testing.T) {
			err := MustParse("sample").Render(&strings.Builder{}, nil, Format("pdf"))

			var ufe UnknownFormatError
			if !assert.ErrorAs(t, err, &ufe) {
				return
			}
			if !assert.Equal(t, Format("pdf"), ufe.Format) {
				return
			}
		})
	})
}

func TestParse(t *testing.T) {
	t.Run("will not require a layout", func(t *testing.T) {
		t.Run("if the html template is self contained", func(t *testing.T) {
			fsys := fstest.MapFS{
				"hi.html.tmpl": {Data: []byte("<p>{{.}}</p>")},
				"hi.txt.tmpl":  {Data: []byte("{{.}}")},
			}

			r, err := Parse(fsys, "hi")
			if !assert.Nil(t, err) {
				return
			}

			var sb strings.Builder
			err = r.Render(&sb, "there", HTML)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, "<p>there</p>", sb.String()) {
				return
			}
		})
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the plain template is missing", func(t *testing.T) {
			fsys := fstest.MapFS{
				"hi.html.tmpl": {Data: []byte("<p>{{.}}</p>")},
			}

			_, err := Parse(fsys, "hi")
			if !assert.Error(t, err) {
				return
			}
		})
	})
}

func TestAll(t *testing.T) {
	t.Run("will render example params", func(t *testing.T) {
		examples := map[string]string{
			"sample":          `{"name": "John", "message": "Hello"}`,
			"resetPassword":   `{"code": "RQoMI6Gx4-NYJgG6GlIx9KTI8APssWTb", "email": "test@example.com"}`,
			"verifyEmailCode": `{"code": "23456CD"}`,
		}

		for _, tmpl := range All() {
			t.Run("if the template is "+tmpl.Slug, func(t *testing.T) {
				example, ok := examples[tmpl.Slug]
				if !assert.True(t, ok, "missing example") {
					return
				}

				params, err := schema.Decode([]byte(example))
				if !assert.Nil(t, err) {
					return
				}
				res := tmpl.Schema.Validate(params)
				if !assert.True(t, res.Matches, res.Error) {
					return
				}

				for _, format := range []Format{HTML, Plain} {
					var sb strings.Builder
					err = tmpl.Renderer.Render(&sb, params, format)
					if !assert.Nil(t, err) {
						return
					}
					if !assert.NotEmpty(t, sb.String()) {
						return
					}
				}
			})
		}
	})
}
