package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework-validators/datasourcevalidator"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
	"github.com/isometry/terraform-provider-ldap/internal/pillar"
	"github.com/isometry/terraform-provider-ldap/internal/provider/helpers"
	"github.com/isometry/terraform-provider-ldap/internal/provider/validators"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &PillarDataSource{}
var _ datasource.DataSourceWithConfigure = &PillarDataSource{}
var _ datasource.DataSourceWithConfigValidators = &PillarDataSource{}

func NewPillarDataSource() datasource.DataSource {
	return &PillarDataSource{}
}

// PillarDataSource defines the data source implementation.
type PillarDataSource struct {
	aggregator *pillar.Aggregator
}

// PillarDataSourceModel describes the data source data model.
type PillarDataSourceModel struct {
	ConfigFile types.String  `tfsdk:"config_file"` // Path to a YAML aggregation config
	Config     types.Dynamic `tfsdk:"config"`      // Inline aggregation config
	Malformed  types.String  `tfsdk:"malformed"`   // Overrides the config's malformed policy

	ID     types.String  `tfsdk:"id"`
	Pillar types.Dynamic `tfsdk:"pillar"` // Aggregated data
}

func (d *PillarDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_pillar"
}

func (d *PillarDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Runs the searches named in `search_order` one after another, flattens their " +
			"`key=value` attributes and merges the results into a single mapping. A key set by a later " +
			"search replaces the same key from an earlier one. Any failing search fails the read.\n\n" +
			"Each search definition accepts the provider arguments (`server`, `port`, `tls`, `binddn`, " +
			"`bindpw`, `basedn` or `dn`, `scope`, `attrs`) plus `filter` and `flatten_attrs`. " +
			"`flatten_attrs` defaults to `attrs`. The top-level keys `malformed` (`skip` or `passthrough`) " +
			"and `key_delimiter` control the handling of values without `=` and the nesting of keys.",

		Attributes: map[string]schema.Attribute{
			"config_file": schema.StringAttribute{
				MarkdownDescription: "Path to a YAML aggregation config. Conflicts with `config`.",
				Optional:            true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"config": schema.DynamicAttribute{
				MarkdownDescription: "Aggregation config as an object, e.g. the result of `yamldecode`. " +
					"Conflicts with `config_file`.",
				Optional: true,
			},
			"malformed": schema.StringAttribute{
				MarkdownDescription: "Handling of values that are not `key=value` pairs: `skip` drops them, " +
					"`passthrough` also copies the whole attribute into the result under its own name. " +
					"Overrides `malformed` in the aggregation config.",
				Optional: true,
				Validators: []validator.String{
					validators.IsValidMalformedPolicy(),
				},
			},
			"id": schema.StringAttribute{
				MarkdownDescription: "Identifier for this aggregation.",
				Computed:            true,
			},
			"pillar": schema.DynamicAttribute{
				MarkdownDescription: "The aggregated data.",
				Computed:            true,
			},
		},
	}
}

// ConfigValidators implements datasource.DataSourceWithConfigValidators.
func (d *PillarDataSource) ConfigValidators(ctx context.Context) []datasource.ConfigValidator {
	return []datasource.ConfigValidator{
		datasourcevalidator.ExactlyOneOf(
			path.MatchRoot("config_file"),
			path.MatchRoot("config"),
		),
	}
}

func (d *PillarDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	// Prevent panic if the provider has not been configured.
	if req.ProviderData == nil {
		return
	}

	providerData, ok := req.ProviderData.(*ldapclient.ProviderData)
	if !ok {
		resp.Diagnostics.AddError(
			"Unexpected Data Source Configure Type",
			fmt.Sprintf("Expected *ldapclient.ProviderData, got: %T. Please report this issue to the provider developers.", req.ProviderData),
		)
		return
	}

	if err := providerData.Validate(ctx); err != nil {
		resp.Diagnostics.AddError("Provider Not Configured", err.Error())
		return
	}

	d.aggregator = pillar.NewAggregator(providerData.Searcher)
}

func (d *PillarDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data PillarDataSourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	logCompletion := ldapclient.LogDataSourceOperation(ctx, "ldap_pillar", "read", map[string]any{
		"config_file": data.ConfigFile.ValueString(),
		"inline":      !data.Config.IsNull(),
	})
	defer func() {
		var err error
		if resp.Diagnostics.HasError() {
			for _, diag := range resp.Diagnostics.Errors() {
				err = fmt.Errorf("%s: %s", diag.Summary(), diag.Detail())
				break
			}
		}
		logCompletion(err)
	}()

	if d.aggregator == nil {
		resp.Diagnostics.AddError(
			"Provider Not Configured",
			"The LDAP provider has not been configured. Please report this issue to the provider developers.",
		)
		return
	}

	cfg, err := d.loadConfig(ctx, &data)
	if err != nil {
		resp.Diagnostics.AddError("Invalid Aggregation Config", err.Error())
		return
	}

	if !data.Malformed.IsNull() && !data.Malformed.IsUnknown() {
		policy, err := pillar.ParseMalformedPolicy(data.Malformed.ValueString())
		if err != nil {
			resp.Diagnostics.AddAttributeError(path.Root("malformed"), "Invalid Value", err.Error())
			return
		}
		cfg.Malformed = policy
	}

	tflog.Debug(ctx, "Aggregating search definitions", map[string]any{
		"search_order": cfg.SearchOrder,
		"malformed":    string(cfg.Malformed),
	})

	result, err := d.aggregator.Aggregate(ctx, cfg)
	if err != nil {
		var aggErr *pillar.AggregationError
		if errors.As(err, &aggErr) {
			addSearchErrorDiagnostic(&resp.Diagnostics, aggErr)
		} else {
			resp.Diagnostics.AddError("Error Aggregating Searches", err.Error())
		}
		return
	}

	value, err := helpers.GoValueToTerraform(ctx, result)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Converting Aggregated Data",
			fmt.Sprintf("Could not convert aggregated data to a Terraform value: %s", err.Error()),
		)
		return
	}

	data.Pillar = types.DynamicValue(value)
	data.ID = types.StringValue(fmt.Sprintf("pillar-%d", len(result)))

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// loadConfig reads the aggregation config from whichever argument is set.
func (d *PillarDataSource) loadConfig(ctx context.Context, data *PillarDataSourceModel) (*pillar.Config, error) {
	if !data.ConfigFile.IsNull() && !data.ConfigFile.IsUnknown() {
		return pillar.LoadConfigFile(data.ConfigFile.ValueString())
	}

	raw, err := helpers.DynamicValueToMap(ctx, data.Config)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return pillar.ParseConfig(raw)
}
