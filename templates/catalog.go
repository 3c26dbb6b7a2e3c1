// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package templates

import "github.com/z5labs/stencil/schema"

func choiceOfAB(meta schema.Meta) schema.Field {
	return schema.EnumDiscriminator(
		meta,
		"type",
		schema.Object(
			schema.Meta{},
			schema.Prop("type", schema.String(schema.Meta{Title: "Type A", Description: "Type A"}, schema.Enum("A"))),
			schema.Prop("a", schema.String(schema.Meta{Title: "Text for A", Description: "A"})),
		),
		schema.Object(
			schema.Meta{},
			schema.Prop("type", schema.String(schema.Meta{Title: "Type B", Description: "Type B"}, schema.Enum("B"))),
			schema.Prop("b", schema.Number(schema.Integer, schema.Meta{Title: "Integer for B", Description: "B"})),
		),
	)
}

// Sample greets someone with a short message. Its optional fields exist to
// exercise every kind of schema field.
func Sample() Template {
	return Template{
		Slug:        "sample",
		Summary:     "Greeting and a paragraph",
		Description: "A very basic template to show how it works.",
		Schema: schema.Object(
			schema.Meta{},
			schema.Prop("name", schema.String(
				schema.Meta{Title: "Name", Description: "The name of the person to greet, e.g, 'John' or 'John Doe'"},
				schema.MaxLength(255),
			)),
			schema.Prop("message", schema.String(
				schema.Meta{Title: "Message", Description: "The message to display, e.g, 'Hello World'"},
			)),
			schema.Prop("ztestA", schema.Optional(schema.String(
				schema.Meta{Title: "Optional String", Description: "Used for testing the admin area"},
			))),
			schema.Prop("ztestB", schema.Optional(schema.Number(
				schema.Integer,
				schema.Meta{Title: "Optional Number", Description: "Used for testing the admin area"},
			))),
			schema.Prop("ztestC", schema.Optional(schema.Array(
				schema.Meta{Title: "Unused List", Description: "This list is not rendered, it is here for testing the admin area"},
				schema.String(schema.Meta{Title: "Item", Description: "An item in the list"}),
			))),
			schema.Prop("ztestD", schema.Optional(choiceOfAB(
				schema.Meta{Title: "Test Enum Discriminator", Description: "Used to test the admin area with an enum discriminator"},
			))),
			schema.Prop("ztestE", schema.Optional(schema.Array(
				schema.Meta{Title: "Unused List of Enum Discriminators", Description: "This list is not rendered, it is here for testing the admin area"},
				choiceOfAB(schema.Meta{Title: "Test Enum Discriminator"}),
			))),
		),
		Renderer: MustParse("sample"),
	}
}

// ResetPassword links to the password reset page.
func ResetPassword() Template {
	return Template{
		Slug:        "resetPassword",
		Summary:     "A template for sending reset password links to users",
		Description: "A basic template containing a call to action to click a link to reset their password",
		Schema: schema.Object(
			schema.Meta{},
			schema.Prop("code", schema.String(
				schema.Meta{Title: "Code", Description: "The code that proves the user requested the reset"},
				schema.MinLength(32),
				schema.MaxLength(255),
			)),
			schema.Prop("email", schema.String(
				schema.Meta{Title: "Email address", Description: "The email address that will receive the email; included in the link"},
				schema.MinLength(1),
				schema.MaxLength(2047),
				schema.Format("email"),
			)),
		),
		Renderer: MustParse("resetPassword"),
	}
}

// VerifyEmailCode sends a short code used to verify an email address.
func VerifyEmailCode() Template {
	return Template{
		Slug:        "verifyEmailCode",
		Summary:     "A template for sending short verification codes to users",
		Description: "A basic template to send the user a short code to verify their email address.",
		Schema: schema.Object(
			schema.Meta{},
			schema.Prop("code", schema.String(
				schema.Meta{Title: "Code", Description: "The code that the user should use to verify their email address"},
				schema.MinLength(6),
				schema.MaxLength(12),
			)),
		),
		Renderer: MustParse("verifyEmailCode"),
	}
}

// All returns every template the service ships with.
func All() []Template {
	return []Template{
		Sample(),
		ResetPassword(),
		VerifyEmailCode(),
	}
}
