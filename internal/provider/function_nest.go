package provider

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework/function"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
	"github.com/isometry/terraform-provider-ldap/internal/pillar"
	"github.com/isometry/terraform-provider-ldap/internal/provider/helpers"
)

var _ function.Function = &NestFunction{}

// NestFunction implements the nest function.
type NestFunction struct{}

// Metadata returns the function name.
func (f NestFunction) Metadata(_ context.Context, req function.MetadataRequest, resp *function.MetadataResponse) {
	resp.Name = "nest"
}

// Definition returns the function schema including parameters and return types.
func (f NestFunction) Definition(_ context.Context, req function.DefinitionRequest, resp *function.DefinitionResponse) {
	resp.Definition = function.Definition{
		Summary:     "Expand delimited keys into nested objects",
		Description: "Splits every key of the input on the delimiter and returns an object nested along the resulting path. Where a key is both a value and the prefix of other keys, the nested object wins. An empty delimiter returns the input unchanged.",
		MarkdownDescription: "Splits every key of the input on `delimiter` and returns an object nested along the " +
			"resulting path, the same expansion `ldap_pillar` applies with `key_delimiter`.\n\n" +
			"- `{\"ntp:server\" = \"pool.ntp.org\"}` with `\":\"` becomes `{ntp = {server = \"pool.ntp.org\"}}`\n" +
			"- Where a key is both a value and the prefix of other keys, the nested object wins\n" +
			"- An empty delimiter returns the input unchanged",
		Parameters: []function.Parameter{
			function.DynamicParameter{
				Name:                "input",
				Description:         "Map or object with delimited keys, e.g. the result of provider::ldap::flatten.",
				MarkdownDescription: "Map or object with delimited keys, e.g. the result of `provider::ldap::flatten`.",
			},
			function.StringParameter{
				Name:        "delimiter",
				Description: "Separator between key segments.",
			},
		},
		Return: function.DynamicReturn{},
	}
}

// Run implements the function logic.
func (f NestFunction) Run(ctx context.Context, req function.RunRequest, resp *function.RunResponse) {
	var input types.Dynamic
	var delimiter string

	ctx = initializeLogging(ctx)

	resp.Error = function.ConcatFuncErrors(resp.Error, req.Arguments.Get(ctx, &input, &delimiter))
	if resp.Error != nil {
		return
	}

	flat, err := helpers.DynamicValueToMap(ctx, input)
	if err != nil {
		resp.Error = function.NewArgumentFuncError(0, fmt.Sprintf("Invalid input: %s", err.Error()))
		return
	}

	nested := pillar.Nest(flat, delimiter)

	tflog.SubsystemTrace(ctx, ldapclient.SubsystemProvider, "Nested keys", map[string]any{
		"keys":      len(flat),
		"top_level": len(nested),
		"delimiter": delimiter,
	})

	value, err := helpers.GoValueToTerraform(ctx, nested)
	if err != nil {
		resp.Error = function.NewFuncError(fmt.Sprintf("Failed to convert result: %s", err.Error()))
		return
	}

	resp.Error = function.ConcatFuncErrors(resp.Error, resp.Result.Set(ctx, types.DynamicValue(value)))
}

func NewNestFunction() function.Function {
	return &NestFunction{}
}
