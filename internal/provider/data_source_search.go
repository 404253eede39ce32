package provider

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework-validators/int64validator"
	"github.com/hashicorp/terraform-plugin-framework-validators/listvalidator"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
	"github.com/isometry/terraform-provider-ldap/internal/provider/validators"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &SearchDataSource{}
var _ datasource.DataSourceWithConfigure = &SearchDataSource{}

func NewSearchDataSource() datasource.DataSource {
	return &SearchDataSource{}
}

// SearchDataSource defines the data source implementation.
type SearchDataSource struct {
	searcher *ldapclient.Searcher
}

// SearchDataSourceModel describes the data source data model.
type SearchDataSourceModel struct {
	// Search configuration
	Filter types.String `tfsdk:"filter"` // LDAP filter
	DN     types.String `tfsdk:"dn"`     // Base DN
	Scope  types.String `tfsdk:"scope"`  // base, onelevel, subtree
	Attrs  types.List   `tfsdk:"attrs"`  // Attributes to request

	// Connection overrides
	Server  types.String `tfsdk:"server"`
	Port    types.Int64  `tfsdk:"port"`
	TLS     types.Bool   `tfsdk:"tls"`
	BindDN  types.String `tfsdk:"binddn"`
	BindPW  types.String `tfsdk:"bindpw"`
	Targets types.List   `tfsdk:"targets"` // Servers to run the search against

	// Output
	ID      types.String `tfsdk:"id"`
	Results types.Map    `tfsdk:"results"` // Keyed by target
}

// searchResultModel is one element of the results map.
type searchResultModel struct {
	Count   types.Int64        `tfsdk:"count"`
	Entries []searchEntryModel `tfsdk:"entries"`
	Time    searchTimeModel    `tfsdk:"time"`
}

type searchEntryModel struct {
	DN         types.String        `tfsdk:"dn"`
	Attributes map[string][]string `tfsdk:"attributes"`
}

type searchTimeModel struct {
	Human types.String `tfsdk:"human"`
	Raw   types.String `tfsdk:"raw"`
}

var (
	searchTimeAttrTypes = map[string]attr.Type{
		"human": types.StringType,
		"raw":   types.StringType,
	}

	searchEntryAttrTypes = map[string]attr.Type{
		"dn":         types.StringType,
		"attributes": types.MapType{ElemType: types.ListType{ElemType: types.StringType}},
	}

	searchResultType = types.ObjectType{AttrTypes: map[string]attr.Type{
		"count":   types.Int64Type,
		"entries": types.ListType{ElemType: types.ObjectType{AttrTypes: searchEntryAttrTypes}},
		"time":    types.ObjectType{AttrTypes: searchTimeAttrTypes},
	}}
)

func (d *SearchDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_search"
}

func (d *SearchDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Runs a single LDAP search and returns the matching entries. " +
			"Unset arguments fall back to the provider configuration and then to built-in defaults " +
			"(anonymous subtree search of `localhost:389`). With `targets`, the same search is run " +
			"against each listed server in turn.",

		Attributes: map[string]schema.Attribute{
			// Search configuration
			"filter": schema.StringAttribute{
				MarkdownDescription: "LDAP search filter, e.g. `(&(objectClass=device)(cn=web01))`.",
				Required:            true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"dn": schema.StringAttribute{
				MarkdownDescription: "Base DN to search from. Defaults to the provider `basedn`.",
				Optional:            true,
				Validators: []validator.String{
					validators.IsValidDN(),
				},
			},
			"scope": schema.StringAttribute{
				MarkdownDescription: "Search scope: `base`, `onelevel` or `subtree` (or `0`-`2`).",
				Optional:            true,
				Validators: []validator.String{
					validators.IsValidScope(),
				},
			},
			"attrs": schema.ListAttribute{
				MarkdownDescription: "Attributes to return. An empty list returns all attributes.",
				ElementType:         types.StringType,
				Optional:            true,
			},

			// Connection overrides
			"server": schema.StringAttribute{
				MarkdownDescription: "Directory server host name. Ignored when `targets` is set.",
				Optional:            true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"port": schema.Int64Attribute{
				MarkdownDescription: "Directory server port.",
				Optional:            true,
				Validators: []validator.Int64{
					int64validator.Between(1, 65535),
				},
			},
			"tls": schema.BoolAttribute{
				MarkdownDescription: "Upgrade the connection with StartTLS before binding.",
				Optional:            true,
			},
			"binddn": schema.StringAttribute{
				MarkdownDescription: "DN to bind as.",
				Optional:            true,
			},
			"bindpw": schema.StringAttribute{
				MarkdownDescription: "Password for `binddn`.",
				Optional:            true,
				Sensitive:           true,
			},
			"targets": schema.ListAttribute{
				MarkdownDescription: "Servers to run the search against, one after the other. " +
					"The first failure fails the whole read.",
				ElementType: types.StringType,
				Optional:    true,
				Validators: []validator.List{
					listvalidator.SizeAtLeast(1),
					listvalidator.UniqueValues(),
					listvalidator.ValueStringsAre(stringvalidator.LengthAtLeast(1)),
				},
			},

			// Output
			"id": schema.StringAttribute{
				MarkdownDescription: "Identifier for this search.",
				Computed:            true,
			},
			"results": schema.MapNestedAttribute{
				MarkdownDescription: "Search results keyed by target server.",
				Computed:            true,
				NestedObject: schema.NestedAttributeObject{
					Attributes: map[string]schema.Attribute{
						"count": schema.Int64Attribute{
							MarkdownDescription: "Number of entries returned.",
							Computed:            true,
						},
						"entries": schema.ListNestedAttribute{
							MarkdownDescription: "Entries in the order returned by the server.",
							Computed:            true,
							NestedObject: schema.NestedAttributeObject{
								Attributes: map[string]schema.Attribute{
									"dn": schema.StringAttribute{
										MarkdownDescription: "Distinguished name of the entry.",
										Computed:            true,
									},
									"attributes": schema.MapAttribute{
										MarkdownDescription: "Attribute values keyed by attribute name.",
										ElementType:         types.ListType{ElemType: types.StringType},
										Computed:            true,
									},
								},
							},
						},
						"time": schema.SingleNestedAttribute{
							MarkdownDescription: "Time spent in the search operation.",
							Computed:            true,
							Attributes: map[string]schema.Attribute{
								"human": schema.StringAttribute{
									MarkdownDescription: "Human readable duration, e.g. `12.3ms`.",
									Computed:            true,
								},
								"raw": schema.StringAttribute{
									MarkdownDescription: "Duration in seconds with microsecond precision.",
									Computed:            true,
								},
							},
						},
					},
				},
			},
		},
	}
}

func (d *SearchDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
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

	d.searcher = providerData.Searcher
}

func (d *SearchDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data SearchDataSourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	logCompletion := ldapclient.LogDataSourceOperation(ctx, "ldap_search", "read", map[string]any{
		"filter": data.Filter.ValueString(),
		"dn":     data.DN.ValueString(),
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

	if d.searcher == nil {
		resp.Diagnostics.AddError(
			"Provider Not Configured",
			"The LDAP provider has not been configured. Please report this issue to the provider developers.",
		)
		return
	}

	overrides := d.buildOverrides(ctx, &data, &resp.Diagnostics)
	if resp.Diagnostics.HasError() {
		return
	}

	var targets []string
	if !data.Targets.IsNull() && !data.Targets.IsUnknown() {
		resp.Diagnostics.Append(data.Targets.ElementsAs(ctx, &targets, false)...)
		if resp.Diagnostics.HasError() {
			return
		}
	}

	results, err := d.searcher.SearchTargets(ctx, overrides, targets...)
	if err != nil {
		addSearchErrorDiagnostic(&resp.Diagnostics, err)
		return
	}

	tflog.Debug(ctx, "LDAP search completed", map[string]any{
		"targets": len(results),
	})

	resultsValue, diags := searchResultsValue(ctx, results)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	data.Results = resultsValue
	data.ID = types.StringValue(searchID(&data, targets))

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// buildOverrides converts the configured arguments to an override layer.
// Arguments left unset stay nil and fall through to the provider.
func (d *SearchDataSource) buildOverrides(ctx context.Context, data *SearchDataSourceModel, diags *diag.Diagnostics) ldapclient.Options {
	var opts ldapclient.Options

	opts.Filter = stringPointer(data.Filter)
	opts.BaseDN = stringPointer(data.DN)
	opts.Server = stringPointer(data.Server)
	opts.BindDN = stringPointer(data.BindDN)
	opts.BindPW = stringPointer(data.BindPW)

	if !data.Port.IsNull() && !data.Port.IsUnknown() {
		port := int(data.Port.ValueInt64())
		opts.Port = &port
	}

	if !data.TLS.IsNull() && !data.TLS.IsUnknown() {
		tls := data.TLS.ValueBool()
		opts.TLS = &tls
	}

	if scope := stringPointer(data.Scope); scope != nil {
		parsed, err := ldapclient.ParseScope(*scope)
		if err != nil {
			diags.AddAttributeError(path.Root("scope"), "Invalid Search Scope", err.Error())
			return opts
		}
		opts.Scope = &parsed
	}

	if !data.Attrs.IsNull() && !data.Attrs.IsUnknown() {
		attrs := []string{}
		diags.Append(data.Attrs.ElementsAs(ctx, &attrs, false)...)
		opts.Attrs = attrs
	}

	return opts
}

func stringPointer(value types.String) *string {
	if value.IsNull() || value.IsUnknown() {
		return nil
	}
	s := value.ValueString()
	return &s
}

// searchResultsValue converts results to the framework value of the results
// attribute.
func searchResultsValue(ctx context.Context, results map[string]*ldapclient.SearchResult) (types.Map, diag.Diagnostics) {
	models := make(map[string]searchResultModel, len(results))

	for target, result := range results {
		model := searchResultModel{
			Count:   types.Int64Value(int64(result.Count)),
			Entries: make([]searchEntryModel, 0, len(result.Entries)),
			Time: searchTimeModel{
				Human: types.StringValue(result.Time.Human),
				Raw:   types.StringValue(result.Time.Raw),
			},
		}
		for _, entry := range result.Entries {
			model.Entries = append(model.Entries, searchEntryModel{
				DN:         types.StringValue(entry.DN),
				Attributes: entry.AttributeMap(),
			})
		}
		models[target] = model
	}

	return types.MapValueFrom(ctx, searchResultType, models)
}

// searchID derives a stable identifier from the search arguments.
func searchID(data *SearchDataSourceModel, targets []string) string {
	parts := []string{data.Filter.ValueString()}
	if !data.DN.IsNull() {
		parts = append(parts, data.DN.ValueString())
	}
	if len(targets) > 0 {
		sorted := slices.Clone(targets)
		slices.Sort(sorted)
		parts = append(parts, strings.Join(sorted, ","))
	}
	return strings.Join(parts, "|")
}

// addSearchErrorDiagnostic reports err with a summary matching its category.
func addSearchErrorDiagnostic(diags *diag.Diagnostics, err error) {
	summary := "Error Searching Directory"
	switch {
	case ldapclient.IsConfigError(err):
		summary = "Invalid Search Configuration"
	case ldapclient.IsConnectionError(err):
		summary = "Unable to Connect to Directory Server"
	case ldapclient.IsAuthError(err):
		summary = "Directory Authentication Failed"
	case ldapclient.IsSearchError(err):
		summary = "Directory Search Failed"
	}

	diags.AddError(summary, err.Error())
}
