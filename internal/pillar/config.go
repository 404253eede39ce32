package pillar

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/isometry/terraform-provider-ldap/internal/ldap"
)

// MalformedPolicy decides what happens to attribute values that are not of
// the form key=value.
type MalformedPolicy string

const (
	// MalformedSkip drops values without '='.
	MalformedSkip MalformedPolicy = "skip"
	// MalformedPassthrough stores the attribute's raw value list under the
	// attribute name whenever any of its values lacks '='.
	MalformedPassthrough MalformedPolicy = "passthrough"
)

// Reserved top-level keys of an aggregation config.
const (
	keySearchOrder  = "search_order"
	keyMalformed    = "malformed"
	keyKeyDelimiter = "key_delimiter"
	keyFlattenAttrs = "flatten_attrs"
)

// Definition is one named search in an aggregation config.
type Definition struct {
	Name         string
	Options      ldap.Options // Override layer for this search
	FlattenAttrs []string     // Nil means "the resolved attrs"
}

// Config is a parsed aggregation config.
type Config struct {
	SearchOrder  []string
	Definitions  map[string]Definition
	Malformed    MalformedPolicy
	KeyDelimiter string // Empty leaves keys flat
}

// LoadConfigFile reads and parses a YAML aggregation config.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, ldap.NewConfigError("failed to read config file %s: %v", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, ldap.NewConfigError("failed to parse config file %s: %v", path, err)
	}

	return ParseConfig(raw)
}

// ParseConfig builds a Config from a loosely typed mapping. Definitions that
// are named in search_order but absent are not an error here; Aggregate
// reports them when it reaches them.
func ParseConfig(raw map[string]any) (*Config, error) {
	if raw == nil {
		return nil, ldap.NewConfigError("%s is required", keySearchOrder)
	}

	order, err := stringList(raw[keySearchOrder])
	if err != nil {
		return nil, ldap.NewConfigError("invalid %s: %v", keySearchOrder, err)
	}
	if len(order) == 0 {
		return nil, ldap.NewConfigError("%s must name at least one search definition", keySearchOrder)
	}

	cfg := &Config{
		SearchOrder: order,
		Definitions: make(map[string]Definition, len(order)),
		Malformed:   MalformedSkip,
	}

	if value, ok := raw[keyMalformed]; ok && value != nil {
		policy, err := ParseMalformedPolicy(fmt.Sprint(value))
		if err != nil {
			return nil, err
		}
		cfg.Malformed = policy
	}

	if value, ok := raw[keyKeyDelimiter]; ok && value != nil {
		delimiter, ok := value.(string)
		if !ok {
			return nil, ldap.NewConfigError("%s must be a string", keyKeyDelimiter)
		}
		cfg.KeyDelimiter = delimiter
	}

	for _, name := range order {
		value, ok := raw[name]
		if !ok {
			continue
		}

		section, ok := value.(map[string]any)
		if !ok {
			return nil, ldap.NewConfigError("search definition %q must be a mapping", name)
		}

		def, err := ParseDefinition(name, section)
		if err != nil {
			return nil, err
		}
		cfg.Definitions[name] = def
	}

	return cfg, nil
}

// ParseDefinition builds a Definition from its config section.
func ParseDefinition(name string, section map[string]any) (Definition, error) {
	def := Definition{Name: name}

	options := maps.Clone(section)
	if value, ok := options[keyFlattenAttrs]; ok {
		attrs, err := stringList(value)
		if err != nil {
			return Definition{}, ldap.NewConfigError("search definition %q: invalid %s: %v", name, keyFlattenAttrs, err)
		}
		if attrs == nil {
			attrs = []string{}
		}
		def.FlattenAttrs = attrs
		delete(options, keyFlattenAttrs)
	}

	opts, err := ldap.ParseOptions(options)
	if err != nil {
		return Definition{}, fmt.Errorf("search definition %q: %w", name, err)
	}
	def.Options = opts

	return def, nil
}

// ParseMalformedPolicy accepts "skip" or "passthrough", case-insensitively.
func ParseMalformedPolicy(value string) (MalformedPolicy, error) {
	switch policy := MalformedPolicy(strings.ToLower(strings.TrimSpace(value))); policy {
	case MalformedSkip, MalformedPassthrough:
		return policy, nil
	default:
		return "", ldap.NewConfigError("%s must be %q or %q, got %q", keyMalformed, MalformedSkip, MalformedPassthrough, value)
	}
}

// stringList accepts a list of strings or a single comma-separated string.
func stringList(value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		var result []string
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				result = append(result, item)
			}
		}
		return result, nil
	case []string:
		return v, nil
	case []any:
		result := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d must be a string, got %T", i, item)
			}
			result = append(result, s)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("expected a list of strings, got %T", value)
	}
}
