package provider

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework-validators/int64validator"
	"github.com/hashicorp/terraform-plugin-framework-validators/listvalidator"
	"github.com/hashicorp/terraform-plugin-framework-validators/providervalidator"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/function"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/provider/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
	"github.com/isometry/terraform-provider-ldap/internal/provider/validators"
)

// Ensure LDAPProvider satisfies various provider interfaces.
var _ provider.Provider = &LDAPProvider{}
var _ provider.ProviderWithFunctions = &LDAPProvider{}
var _ provider.ProviderWithConfigValidators = &LDAPProvider{}

// LDAPProvider defines the provider implementation.
type LDAPProvider struct {
	// version is set to the provider version on release, "dev" when the
	// provider is built and ran locally, and "test" when running acceptance
	// testing.
	version string

	// searcherOptions are passed to every Searcher the provider creates.
	searcherOptions []ldapclient.SearcherOption
}

// LDAPProviderModel describes the provider data model.
type LDAPProviderModel struct {
	// Connection settings
	Server        types.String `tfsdk:"server"`
	Port          types.Int64  `tfsdk:"port"`
	TLS           types.Bool   `tfsdk:"tls"`
	TLSSkipVerify types.Bool   `tfsdk:"tls_skip_verify"`

	// Authentication settings
	BindDN types.String `tfsdk:"binddn"`
	BindPW types.String `tfsdk:"bindpw"`

	// Search defaults
	BaseDN   types.String `tfsdk:"basedn"`
	Attrs    types.List   `tfsdk:"attrs"`
	Scope    types.String `tfsdk:"scope"`
	PageSize types.Int64  `tfsdk:"page_size"`

	// Kerberos settings (optional)
	KerberosRealm  types.String `tfsdk:"kerberos_realm"`
	KerberosKeytab types.String `tfsdk:"kerberos_keytab"`
	KerberosConfig types.String `tfsdk:"kerberos_config"`
	KerberosCCache types.String `tfsdk:"kerberos_ccache"`
	KerberosSPN    types.String `tfsdk:"kerberos_spn"`
}

func (p *LDAPProvider) Metadata(ctx context.Context, req provider.MetadataRequest, resp *provider.MetadataResponse) {
	resp.TypeName = "ldap"
	resp.Version = p.version
}

func (p *LDAPProvider) Schema(ctx context.Context, req provider.SchemaRequest, resp *provider.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "The LDAP provider runs read-only searches against an LDAP directory and folds " +
			"`key=value` attributes into configuration data. Every setting here is a default that individual " +
			"searches may override. No connection is made until a data source is read.",
		Attributes: map[string]schema.Attribute{
			"server": schema.StringAttribute{
				MarkdownDescription: "Directory server host name. Defaults to `localhost`. " +
					"Can be set via the `LDAP_SERVER` environment variable.",
				Optional: true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"port": schema.Int64Attribute{
				MarkdownDescription: "Directory server port. Defaults to `389`. " +
					"Can be set via the `LDAP_PORT` environment variable.",
				Optional: true,
				Validators: []validator.Int64{
					int64validator.Between(1, 65535),
				},
			},
			"tls": schema.BoolAttribute{
				MarkdownDescription: "Upgrade the connection with StartTLS before binding. Defaults to `false`. " +
					"Can be set via the `LDAP_TLS` environment variable.",
				Optional: true,
			},
			"tls_skip_verify": schema.BoolAttribute{
				MarkdownDescription: "Skip TLS certificate verification. Not recommended for production. Defaults to `false`. " +
					"Can be set via the `LDAP_TLS_SKIP_VERIFY` environment variable.",
				Optional: true,
			},

			// Authentication settings
			"binddn": schema.StringAttribute{
				MarkdownDescription: "DN to bind as. Together with `bindpw` this selects a simple bind; " +
					"with neither set the bind is anonymous. With Kerberos this is the principal name. " +
					"Can be set via the `LDAP_BINDDN` environment variable.",
				Optional: true,
			},
			"bindpw": schema.StringAttribute{
				MarkdownDescription: "Password for `binddn`. " +
					"Can be set via the `LDAP_BINDPW` environment variable.",
				Optional:  true,
				Sensitive: true,
			},

			// Search defaults
			"basedn": schema.StringAttribute{
				MarkdownDescription: "Default base DN for searches (e.g., `dc=example,dc=com`). " +
					"Can be set via the `LDAP_BASEDN` environment variable.",
				Optional: true,
				Validators: []validator.String{
					validators.IsValidDN(),
				},
			},
			"attrs": schema.ListAttribute{
				MarkdownDescription: "Default attributes to request. Empty requests all attributes. " +
					"Can be set as a comma-separated list via the `LDAP_ATTRS` environment variable.",
				ElementType: types.StringType,
				Optional:    true,
				Validators: []validator.List{
					listvalidator.ValueStringsAre(stringvalidator.LengthAtLeast(1)),
				},
			},
			"scope": schema.StringAttribute{
				MarkdownDescription: "Default search scope: `base`, `onelevel` or `subtree` (or `0`-`2`). Defaults to `subtree`. " +
					"Can be set via the `LDAP_SCOPE` environment variable.",
				Optional: true,
				Validators: []validator.String{
					validators.IsValidScope(),
				},
			},
			"page_size": schema.Int64Attribute{
				MarkdownDescription: "Request results in pages of this size using the paged results control. " +
					"`0` (the default) disables paging. " +
					"Can be set via the `LDAP_PAGE_SIZE` environment variable.",
				Optional: true,
				Validators: []validator.Int64{
					int64validator.AtLeast(0),
				},
			},

			// Kerberos settings
			"kerberos_realm": schema.StringAttribute{
				MarkdownDescription: "Kerberos realm for GSSAPI authentication (e.g., `EXAMPLE.COM`). Setting a realm selects a Kerberos bind. " +
					"Can be set via the `LDAP_KERBEROS_REALM` environment variable.",
				Optional: true,
			},
			"kerberos_keytab": schema.StringAttribute{
				MarkdownDescription: "Path to Kerberos keytab file for authentication. " +
					"Can be set via the `LDAP_KERBEROS_KEYTAB` environment variable.",
				Optional: true,
			},
			"kerberos_config": schema.StringAttribute{
				MarkdownDescription: "Path to Kerberos configuration file. Defaults to `/etc/krb5.conf`. " +
					"Can be set via the `LDAP_KERBEROS_CONFIG` environment variable.",
				Optional: true,
			},
			"kerberos_ccache": schema.StringAttribute{
				MarkdownDescription: "Path to Kerberos credential cache file for authentication. " +
					"Can be set via the `LDAP_KERBEROS_CCACHE` environment variable.",
				Optional: true,
			},
			"kerberos_spn": schema.StringAttribute{
				MarkdownDescription: "Override Service Principal Name (SPN) for Kerberos authentication. " +
					"Defaults to `ldap/<server>`. " +
					"Can be set via the `LDAP_KERBEROS_SPN` environment variable.",
				Optional: true,
			},
		},
	}
}

// ConfigValidators implements provider.ProviderWithConfigValidators.
func (p *LDAPProvider) ConfigValidators(ctx context.Context) []provider.ConfigValidator {
	return []provider.ConfigValidator{
		// Explicit credential sources are mutually exclusive
		providervalidator.Conflicting(
			path.MatchRoot("kerberos_keytab"),
			path.MatchRoot("kerberos_ccache"),
		),
	}
}

func (p *LDAPProvider) Configure(ctx context.Context, req provider.ConfigureRequest, resp *provider.ConfigureResponse) {
	var data LDAPProviderModel

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	ctx = p.configureLogging(ctx)

	tflog.Info(ctx, "Configuring LDAP provider", map[string]any{
		"version": p.version,
	})

	static := p.buildStaticOptions(ctx, &data, &resp.Diagnostics)
	if resp.Diagnostics.HasError() {
		return
	}

	searcher := ldapclient.NewSearcher(static, p.searcherOptions...)

	tflog.Info(ctx, "LDAP provider configured successfully")

	providerData := ldapclient.NewProviderData(searcher)
	resp.DataSourceData = providerData
	resp.ResourceData = providerData
}

// configureLogging sets up logging configuration based on environment variables.
func (p *LDAPProvider) configureLogging(ctx context.Context) context.Context {
	ctx = tflog.SetField(ctx, "provider", "ldap")
	ctx = tflog.SetField(ctx, "provider_version", p.version)

	tflog.Debug(ctx, "LDAP provider logging configured")

	return ctx
}

// buildStaticOptions constructs the provider's option layer from provider
// config and environment variables. Settings given in neither are left
// unset so that built-in defaults apply.
func (p *LDAPProvider) buildStaticOptions(ctx context.Context, data *LDAPProviderModel, diags *diag.Diagnostics) ldapclient.Options {
	var opts ldapclient.Options

	opts.Server = p.getStringValue(data.Server, "LDAP_SERVER")
	opts.BindDN = p.getStringValue(data.BindDN, "LDAP_BINDDN")
	opts.BindPW = p.getStringValue(data.BindPW, "LDAP_BINDPW")
	opts.BaseDN = p.getStringValue(data.BaseDN, "LDAP_BASEDN")
	opts.KerberosRealm = p.getStringValue(data.KerberosRealm, "LDAP_KERBEROS_REALM")
	opts.KerberosKeytab = p.getStringValue(data.KerberosKeytab, "LDAP_KERBEROS_KEYTAB")
	opts.KerberosConfig = p.getStringValue(data.KerberosConfig, "LDAP_KERBEROS_CONFIG")
	opts.KerberosCCache = p.getStringValue(data.KerberosCCache, "LDAP_KERBEROS_CCACHE")
	opts.KerberosSPN = p.getStringValue(data.KerberosSPN, "LDAP_KERBEROS_SPN")

	opts.TLS = p.getBoolValue(data.TLS, "LDAP_TLS", diags)
	opts.TLSSkipVerify = p.getBoolValue(data.TLSSkipVerify, "LDAP_TLS_SKIP_VERIFY", diags)

	if port := p.getInt64Value(data.Port, "LDAP_PORT", diags); port != nil {
		value := int(*port)
		opts.Port = &value
	}
	if pageSize := p.getInt64Value(data.PageSize, "LDAP_PAGE_SIZE", diags); pageSize != nil {
		value := int(*pageSize)
		opts.PageSize = &value
	}

	if scope := p.getStringValue(data.Scope, "LDAP_SCOPE"); scope != nil {
		parsed, err := ldapclient.ParseScope(*scope)
		if err != nil {
			diags.AddAttributeError(path.Root("scope"), "Invalid Search Scope", err.Error())
		} else {
			opts.Scope = &parsed
		}
	}

	switch {
	case !data.Attrs.IsNull() && !data.Attrs.IsUnknown():
		var attrs []string
		diags.Append(data.Attrs.ElementsAs(ctx, &attrs, false)...)
		opts.Attrs = attrs
		if opts.Attrs == nil {
			opts.Attrs = []string{}
		}
	case os.Getenv("LDAP_ATTRS") != "":
		opts.Attrs = splitList(os.Getenv("LDAP_ATTRS"))
	}

	tflog.Debug(ctx, "Static search options resolved", map[string]any{
		"server_set": opts.Server != nil,
		"basedn_set": opts.BaseDN != nil,
		"binddn_set": opts.BindDN != nil,
		"kerberos":   opts.KerberosRealm != nil,
	})

	return opts
}

// Helper functions for configuration value resolution. A nil result means
// the setting was given neither in configuration nor in the environment.

func (p *LDAPProvider) getStringValue(configValue types.String, envVar string) *string {
	if !configValue.IsNull() && !configValue.IsUnknown() {
		value := configValue.ValueString()
		return &value
	}
	if envValue, ok := os.LookupEnv(envVar); ok && envValue != "" {
		return &envValue
	}
	return nil
}

func (p *LDAPProvider) getBoolValue(configValue types.Bool, envVar string, diags *diag.Diagnostics) *bool {
	if !configValue.IsNull() && !configValue.IsUnknown() {
		value := configValue.ValueBool()
		return &value
	}
	if envValue := os.Getenv(envVar); envValue != "" {
		parsed, err := strconv.ParseBool(envValue)
		if err != nil {
			diags.AddError("Invalid Environment Variable", fmt.Sprintf("%s must be a boolean: %s", envVar, err))
			return nil
		}
		return &parsed
	}
	return nil
}

func (p *LDAPProvider) getInt64Value(configValue types.Int64, envVar string, diags *diag.Diagnostics) *int64 {
	if !configValue.IsNull() && !configValue.IsUnknown() {
		value := configValue.ValueInt64()
		return &value
	}
	if envValue := os.Getenv(envVar); envValue != "" {
		parsed, err := strconv.ParseInt(envValue, 10, 64)
		if err != nil {
			diags.AddError("Invalid Environment Variable", fmt.Sprintf("%s must be an integer: %s", envVar, err))
			return nil
		}
		return &parsed
	}
	return nil
}

func splitList(value string) []string {
	var result []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	if result == nil {
		result = []string{}
	}
	return result
}

func (p *LDAPProvider) Resources(ctx context.Context) []func() resource.Resource {
	return nil
}

func (p *LDAPProvider) DataSources(ctx context.Context) []func() datasource.DataSource {
	return []func() datasource.DataSource{
		NewSearchDataSource,
		NewPillarDataSource,
	}
}

func (p *LDAPProvider) Functions(ctx context.Context) []func() function.Function {
	return []func() function.Function{
		NewFlattenFunction,
		NewNestFunction,
	}
}

func New(version string) func() provider.Provider {
	return func() provider.Provider {
		return &LDAPProvider{
			version: version,
		}
	}
}

// newWithSearcherOptions is New with extra searcher options, used to inject
// a dialer in tests.
func newWithSearcherOptions(version string, opts ...ldapclient.SearcherOption) func() provider.Provider {
	return func() provider.Provider {
		return &LDAPProvider{
			version:         version,
			searcherOptions: opts,
		}
	}
}
