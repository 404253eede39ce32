package validators

import (
	"context"
	"fmt"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
	"github.com/isometry/terraform-provider-ldap/internal/pillar"
)

// Ensure the implementation satisfies the expected interface.
var _ validator.String = parseValidator{}

// parseValidator accepts a string when parse accepts it.
type parseValidator struct {
	description string
	summary     string
	parse       func(string) error
}

// Description describes the validation in plain text.
func (v parseValidator) Description(_ context.Context) string {
	return v.description
}

// MarkdownDescription describes the validation in Markdown.
func (v parseValidator) MarkdownDescription(ctx context.Context) string {
	return v.Description(ctx)
}

// ValidateString performs the validation.
func (v parseValidator) ValidateString(ctx context.Context, request validator.StringRequest, response *validator.StringResponse) {
	if request.ConfigValue.IsNull() || request.ConfigValue.IsUnknown() {
		return
	}

	value := request.ConfigValue.ValueString()
	if err := v.parse(value); err != nil {
		response.Diagnostics.AddAttributeError(
			request.Path,
			v.summary,
			fmt.Sprintf("The value %q is not valid: %s", value, err.Error()),
		)
	}
}

// IsValidDN returns a validator which ensures that any configured
// attribute value is a non-empty Distinguished Name (DN).
//
// Unknown values and null values are skipped from validation.
func IsValidDN() validator.String {
	return parseValidator{
		description: "value must be a valid Distinguished Name (DN)",
		summary:     "Invalid Distinguished Name",
		parse: func(value string) error {
			if value == "" {
				return fmt.Errorf("DN cannot be empty")
			}
			_, err := ldap.ParseDN(value)
			return err
		},
	}
}

// IsValidScope returns a validator for search scopes: base, onelevel,
// subtree or 0-2, case-insensitive.
func IsValidScope() validator.String {
	return parseValidator{
		description: "value must be a search scope: base, onelevel, subtree or 0-2 (case-insensitive)",
		summary:     "Invalid Search Scope",
		parse: func(value string) error {
			_, err := ldapclient.ParseScope(value)
			return err
		},
	}
}

// IsValidMalformedPolicy returns a validator for the handling of values
// that are not key=value pairs: skip or passthrough.
func IsValidMalformedPolicy() validator.String {
	return parseValidator{
		description: "value must be one of: skip, passthrough (case-insensitive)",
		summary:     "Invalid Value",
		parse: func(value string) error {
			_, err := pillar.ParseMalformedPolicy(value)
			return err
		},
	}
}
