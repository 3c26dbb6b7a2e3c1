// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package templates

import (
	"github.com/swaggest/openapi-go/openapi3"
	"github.com/z5labs/stencil/respond"
)

// SecurityScheme is the name template routes reference for bearer auth.
const SecurityScheme = "jwt"

func textResponse(description string) openapi3.ResponseOrRef {
	text := new(openapi3.Schema).WithType(openapi3.SchemaTypeString)
	return openapi3.ResponseOrRef{
		Response: &openapi3.Response{
			Description: description,
			Content: map[string]openapi3.MediaType{
				respond.TextPlain: {Schema: &openapi3.SchemaOrRef{Schema: text}},
			},
		},
	}
}

func emptyResponse(description string) openapi3.ResponseOrRef {
	return openapi3.ResponseOrRef{
		Response: &openapi3.Response{Description: description},
	}
}

func validationErrorSchema() *openapi3.Schema {
	str := new(openapi3.Schema).WithType(openapi3.SchemaTypeString)
	path := new(openapi3.Schema).
		WithType(openapi3.SchemaTypeArray).
		WithItems(openapi3.SchemaOrRef{Schema: str}).
		WithDescription("The keys and indices leading to the value which failed validation")

	return new(openapi3.Schema).
		WithType(openapi3.SchemaTypeObject).
		WithRequired("error", "errorPath").
		WithProperties(map[string]openapi3.SchemaOrRef{
			"error":     {Schema: new(openapi3.Schema).WithType(openapi3.SchemaTypeString)},
			"errorPath": {Schema: path},
		})
}

func operation(t Template) *openapi3.Operation {
	op := &openapi3.Operation{
		Tags:     []string{"templates"},
		Security: []map[string][]string{{SecurityScheme: {}}},
	}
	op.WithID("templates-" + t.Slug)
	op.WithSummary(t.Summary)
	if t.Description != "" {
		op.WithDescription(t.Description)
	}

	required := true
	op.RequestBody = &openapi3.RequestBodyOrRef{
		RequestBody: &openapi3.RequestBody{
			Required: &required,
			Content: map[string]openapi3.MediaType{
				respond.JSON: {Schema: &openapi3.SchemaOrRef{Schema: t.Schema.Schema()}},
			},
		},
	}

	rendered := new(openapi3.Schema).WithType(openapi3.SchemaTypeString)
	ok := make(map[string]openapi3.MediaType, len(Acceptable))
	for _, m := range Acceptable {
		if m.Parameters["charset"] != "utf-8" {
			continue
		}
		ok[m.String()] = openapi3.MediaType{Schema: &openapi3.SchemaOrRef{Schema: rendered}}
	}

	op.Responses = openapi3.Responses{
		MapOfResponseOrRefValues: map[string]openapi3.ResponseOrRef{
			"200": {
				Response: &openapi3.Response{
					Description: "The rendered template",
					Content:     ok,
				},
			},
			"400": emptyResponse("The Accept header or the body could not be parsed"),
			"401": textResponse("The Authorization header is missing or not a bearer token"),
			"403": textResponse("The token is invalid or was not issued for this template"),
			"406": textResponse("None of the acceptable media types are allowed by the Accept header"),
			"408": emptyResponse("The body took too long to arrive"),
			"413": emptyResponse("The body is too large"),
			"415": emptyResponse("None of the supported content codings are acceptable"),
			"422": {
				Response: &openapi3.Response{
					Description: "The body does not match the schema",
					Content: map[string]openapi3.MediaType{
						respond.JSON: {Schema: &openapi3.SchemaOrRef{Schema: validationErrorSchema()}},
					},
				},
			},
		},
	}
	return op
}
