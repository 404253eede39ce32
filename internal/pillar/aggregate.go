// Package pillar merges the results of ordered LDAP searches into a single
// configuration mapping.
package pillar

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-ldap/internal/ldap"
)

// AggregationError reports the search definition that stopped an
// aggregation run.
type AggregationError struct {
	Source string // Name of the failing search definition
	Cause  error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("search definition %q failed: %v", e.Source, e.Cause)
}

func (e *AggregationError) Unwrap() error {
	return e.Cause
}

// Searcher resolves and runs a single search.
type Searcher interface {
	Resolve(overrides ldap.Options) (*ldap.SearchOptions, error)
	Execute(ctx context.Context, opts *ldap.SearchOptions) (*ldap.SearchResult, error)
}

// Aggregator folds the flattened results of an ordered list of searches
// into one mapping.
type Aggregator struct {
	searcher Searcher
}

// NewAggregator creates an Aggregator that runs searches with searcher.
func NewAggregator(searcher Searcher) *Aggregator {
	return &Aggregator{searcher: searcher}
}

// Aggregate runs every definition named in cfg.SearchOrder, one at a time
// and in order, and merges their flattened attributes. A key produced by a
// later definition replaces the same key from an earlier one. Any failure
// stops the run; the error is an *AggregationError naming the definition
// and no partial result is returned.
func (a *Aggregator) Aggregate(ctx context.Context, cfg *Config) (map[string]any, error) {
	if cfg == nil {
		return nil, ldap.NewConfigError("aggregation config cannot be nil")
	}

	data := make(map[string]any)

	for position, name := range cfg.SearchOrder {
		if err := ctx.Err(); err != nil {
			return nil, &AggregationError{Source: name, Cause: err}
		}

		def, ok := cfg.Definitions[name]
		if !ok {
			return nil, &AggregationError{
				Source: name,
				Cause:  ldap.NewConfigError("search definition %q is not defined", name),
			}
		}

		contribution, err := a.run(ctx, def, cfg.Malformed)
		if err != nil {
			return nil, &AggregationError{Source: name, Cause: err}
		}

		tflog.SubsystemDebug(ctx, ldap.SubsystemLDAP, "Search definition merged", map[string]any{
			"definition": name,
			"position":   position,
			"keys":       len(contribution),
		})

		maps.Copy(data, contribution)
	}

	if cfg.KeyDelimiter != "" {
		return Nest(data, cfg.KeyDelimiter), nil
	}

	return data, nil
}

// run executes one definition and returns its contribution.
func (a *Aggregator) run(ctx context.Context, def Definition, policy MalformedPolicy) (map[string]any, error) {
	opts, err := a.searcher.Resolve(def.Options)
	if err != nil {
		return nil, err
	}

	result, err := a.searcher.Execute(ctx, opts)
	if err != nil {
		return nil, err
	}

	flattenAttrs := def.FlattenAttrs
	if flattenAttrs == nil {
		flattenAttrs = opts.Attrs
	}

	return Fold(result.Entries, flattenAttrs, policy), nil
}

// Fold flattens the named attributes of every entry into one mapping.
// Entries are visited in order and, within an entry, attributes in the
// order given, so later values replace earlier ones. Attribute names match
// case-insensitively and absent attributes are ignored. An empty
// flattenAttrs folds every attribute of each entry.
func Fold(entries []ldap.Entry, flattenAttrs []string, policy MalformedPolicy) map[string]any {
	data := make(map[string]any)

	for _, entry := range entries {
		for _, attr := range selectAttributes(entry, flattenAttrs) {
			for key, value := range ldap.KeyValues(attr.Values) {
				data[key] = value
			}

			if policy == MalformedPassthrough && len(ldap.Malformed(attr.Values)) > 0 {
				data[attr.Name] = slices.Clone(attr.Values)
			}
		}
	}

	return data
}

func selectAttributes(entry ldap.Entry, names []string) []ldap.Attribute {
	if len(names) == 0 {
		return entry.Attributes
	}

	selected := make([]ldap.Attribute, 0, len(names))
	for _, name := range names {
		if !entry.Has(name) {
			continue
		}
		selected = append(selected, ldap.Attribute{Name: name, Values: entry.Values(name)})
	}
	return selected
}
