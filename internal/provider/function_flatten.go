package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-framework/function"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
	"github.com/isometry/terraform-provider-ldap/internal/provider/helpers"
)

var _ function.Function = &FlattenFunction{}

func NewFlattenFunction() function.Function {
	return &FlattenFunction{}
}

// FlattenFunction implements the flatten function.
type FlattenFunction struct{}

// Metadata returns the function name.
func (f FlattenFunction) Metadata(_ context.Context, req function.MetadataRequest, resp *function.MetadataResponse) {
	resp.Name = "flatten"
}

// Definition returns the function schema including parameters and return types.
func (f FlattenFunction) Definition(_ context.Context, req function.DefinitionRequest, resp *function.DefinitionResponse) {
	resp.Definition = function.Definition{
		Summary:     "Convert key=value strings to a map",
		Description: "Splits each value on its first '=' and returns the pairs as a map. Values without '=' are ignored. When a key repeats, the last value wins.",
		MarkdownDescription: "Splits each value on its first `=` and returns the pairs as a map, the way multi-valued " +
			"directory attributes such as `description` are turned into configuration data.\n\n" +
			"- `\"a=b=c\"` becomes `{a = \"b=c\"}`\n" +
			"- Values without `=` are ignored\n" +
			"- When a key repeats, the last value wins",
		Parameters: []function.Parameter{
			function.ListParameter{
				Name:                "values",
				ElementType:         types.StringType,
				Description:         "List of key=value strings.",
				MarkdownDescription: "List of `key=value` strings.",
			},
		},
		Return: function.MapReturn{
			ElementType: types.StringType,
		},
	}
}

// Run implements the function logic.
func (f FlattenFunction) Run(ctx context.Context, req function.RunRequest, resp *function.RunResponse) {
	var values []string

	ctx = initializeLogging(ctx)

	resp.Error = function.ConcatFuncErrors(resp.Error, req.Arguments.Get(ctx, &values))
	if resp.Error != nil {
		return
	}

	flattened := ldapclient.Flatten(values)

	tflog.SubsystemTrace(ctx, ldapclient.SubsystemProvider, "Flattened values", map[string]any{
		"values":    len(values),
		"keys":      len(flattened),
		"malformed": len(ldapclient.Malformed(values)),
	})

	resp.Error = function.ConcatFuncErrors(resp.Error, resp.Result.Set(ctx, helpers.StringMapValue(flattened)))
}
