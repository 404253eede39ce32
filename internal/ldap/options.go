package ldap

import (
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-ldap/ldap/v3"
	"github.com/mitchellh/mapstructure"
)

// Options is one layer of search configuration. Nil fields are unset and
// fall through to the layer below when layers are combined by Resolve.
type Options struct {
	Server         *string  `mapstructure:"server" default:"localhost"`
	Port           *int     `mapstructure:"port" default:"389"`
	TLS            *bool    `mapstructure:"tls" default:"false"`
	TLSSkipVerify  *bool    `mapstructure:"tls_skip_verify" default:"false"`
	BindDN         *string  `mapstructure:"binddn"`
	BindPW         *string  `mapstructure:"bindpw"`
	BaseDN         *string  `mapstructure:"basedn"`
	Filter         *string  `mapstructure:"filter"`
	Attrs          []string `mapstructure:"attrs" default:"[]"`
	Scope          *Scope   `mapstructure:"scope" default:"subtree"`
	PageSize       *int     `mapstructure:"page_size" default:"0"`
	KerberosRealm  *string  `mapstructure:"kerberos_realm"`
	KerberosKeytab *string  `mapstructure:"kerberos_keytab"`
	KerberosConfig *string  `mapstructure:"kerberos_config"`
	KerberosCCache *string  `mapstructure:"kerberos_ccache"`
	KerberosSPN    *string  `mapstructure:"kerberos_spn"`
}

// BuiltinDefaults returns the lowest-precedence layer: an anonymous,
// plain-text subtree search of localhost:389 requesting all attributes.
func BuiltinDefaults() Options {
	var opts Options
	if err := defaults.Set(&opts); err != nil {
		// The tags above are static; failing here is a programming error.
		panic(err)
	}
	return opts
}

// ParseOptions decodes a loosely typed mapping, such as a parsed YAML
// document or a Terraform dynamic value, into an Options layer. The key
// "dn" is accepted as an alias of "basedn". Attrs may be given as a list or
// a comma-separated string; scope may be numeric or named.
func ParseOptions(raw map[string]any) (Options, error) {
	var opts Options
	if len(raw) == 0 {
		return opts, nil
	}

	input := maps.Clone(raw)
	if dn, ok := input["dn"]; ok {
		if _, set := input["basedn"]; !set {
			input["basedn"] = dn
		}
		delete(input, "dn")
	}

	var metadata mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		Metadata:         &metadata,
		Result:           &opts,
	})
	if err != nil {
		return Options{}, NewConfigError("failed to create options decoder: %v", err)
	}

	if err := decoder.Decode(input); err != nil {
		return Options{}, NewConfigError("invalid search options: %v", err)
	}

	if len(metadata.Unused) > 0 {
		slices.Sort(metadata.Unused)
		return Options{}, NewConfigError("unknown search options: %s", strings.Join(metadata.Unused, ", "))
	}

	if opts.Attrs != nil {
		opts.Attrs = normalizeAttrs(opts.Attrs)
	}

	return opts, nil
}

// normalizeAttrs trims attribute names and drops empty entries, keeping a
// non-nil result so that an explicitly empty list still overrides.
func normalizeAttrs(attrs []string) []string {
	result := make([]string, 0, len(attrs))
	for _, attr := range attrs {
		if attr = strings.TrimSpace(attr); attr != "" {
			result = append(result, attr)
		}
	}
	return result
}

// Merge returns a new layer in which every field set in over replaces the
// corresponding field of o. Neither receiver nor argument is modified.
func (o Options) Merge(over Options) Options {
	merged := Options{
		Server:         pick(o.Server, over.Server),
		Port:           pick(o.Port, over.Port),
		TLS:            pick(o.TLS, over.TLS),
		TLSSkipVerify:  pick(o.TLSSkipVerify, over.TLSSkipVerify),
		BindDN:         pick(o.BindDN, over.BindDN),
		BindPW:         pick(o.BindPW, over.BindPW),
		BaseDN:         pick(o.BaseDN, over.BaseDN),
		Filter:         pick(o.Filter, over.Filter),
		Scope:          pick(o.Scope, over.Scope),
		PageSize:       pick(o.PageSize, over.PageSize),
		KerberosRealm:  pick(o.KerberosRealm, over.KerberosRealm),
		KerberosKeytab: pick(o.KerberosKeytab, over.KerberosKeytab),
		KerberosConfig: pick(o.KerberosConfig, over.KerberosConfig),
		KerberosCCache: pick(o.KerberosCCache, over.KerberosCCache),
		KerberosSPN:    pick(o.KerberosSPN, over.KerberosSPN),
		Attrs:          o.Attrs,
	}
	if over.Attrs != nil {
		merged.Attrs = over.Attrs
	}
	return merged
}

func pick[T any](base, over *T) *T {
	if over != nil {
		return over
	}
	return base
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// Resolve combines the three configuration layers field by field, with
// overrides taking precedence over static options and static options over
// base, and validates the result. Resolve is deterministic and does
// not modify its inputs.
func Resolve(base, static, overrides Options) (*SearchOptions, error) {
	merged := base.Merge(static).Merge(overrides)

	opts := &SearchOptions{
		Server:        strings.TrimSpace(deref(merged.Server)),
		Port:          deref(merged.Port),
		TLS:           deref(merged.TLS),
		TLSSkipVerify: deref(merged.TLSSkipVerify),
		BindDN:        deref(merged.BindDN),
		BindPW:        deref(merged.BindPW),
		BaseDN:        strings.TrimSpace(deref(merged.BaseDN)),
		Filter:        strings.TrimSpace(deref(merged.Filter)),
		Attrs:         slices.Clone(merged.Attrs),
		Scope:         deref(merged.Scope),
		PageSize:      deref(merged.PageSize),
		Kerberos: KerberosOptions{
			Realm:  deref(merged.KerberosRealm),
			Keytab: deref(merged.KerberosKeytab),
			Config: deref(merged.KerberosConfig),
			CCache: deref(merged.KerberosCCache),
			SPN:    deref(merged.KerberosSPN),
		},
	}

	// An unset scope in every layer means the LDAP default.
	if merged.Scope == nil {
		opts.Scope = ScopeSubtree
	}
	if opts.Attrs == nil {
		opts.Attrs = []string{}
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return opts, nil
}

// Validate checks that the resolved options describe a search that can be
// attempted.
func (o *SearchOptions) Validate() error {
	if o.Filter == "" {
		return NewConfigError("filter is required")
	}

	if o.BaseDN == "" {
		return NewConfigError("basedn is required")
	}

	if _, err := ldap.ParseDN(o.BaseDN); err != nil {
		return NewConfigError("invalid basedn %q: %v", o.BaseDN, err)
	}

	if o.Server == "" {
		return NewConfigError("server is required")
	}

	if o.Port < 1 || o.Port > 65535 {
		return NewConfigError("port %d is out of range (1-65535)", o.Port)
	}

	if o.PageSize < 0 || int64(o.PageSize) > math.MaxUint32 {
		return NewConfigError("page_size %d is out of range", o.PageSize)
	}

	if !o.Scope.Valid() {
		return NewConfigError("invalid search scope %d", int(o.Scope))
	}

	return nil
}
