package ldap

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Searcher resolves per-call options against its default and static layers
// and runs the resulting search.
type Searcher struct {
	client   *Client
	defaults Options
	static   Options
}

// SearcherOption configures a Searcher.
type SearcherOption func(*Searcher)

// WithClient sets the client used to run searches.
func WithClient(client *Client) SearcherOption {
	return func(s *Searcher) {
		if client != nil {
			s.client = client
		}
	}
}

// WithDefaults replaces the built-in default layer.
func WithDefaults(defaults Options) SearcherOption {
	return func(s *Searcher) {
		s.defaults = defaults
	}
}

// NewSearcher creates a Searcher over the given static options.
func NewSearcher(static Options, opts ...SearcherOption) *Searcher {
	s := &Searcher{
		client:   NewClient(),
		defaults: BuiltinDefaults(),
		static:   static,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve applies overrides over the searcher's static and default layers.
func (s *Searcher) Resolve(overrides Options) (*SearchOptions, error) {
	return Resolve(s.defaults, s.static, overrides)
}

// Execute runs a search with already resolved options.
func (s *Searcher) Execute(ctx context.Context, opts *SearchOptions) (*SearchResult, error) {
	return s.client.Search(ctx, opts)
}

// Search resolves overrides and runs the search.
func (s *Searcher) Search(ctx context.Context, overrides Options) (*SearchResult, error) {
	opts, err := s.Resolve(overrides)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, opts)
}

// SearchTargets runs the same search against each target server in turn and
// returns the results keyed by target. With no targets the resolved server
// is searched and used as the key. The first failure aborts the remaining
// targets and no partial results are returned.
func (s *Searcher) SearchTargets(ctx context.Context, overrides Options, targets ...string) (map[string]*SearchResult, error) {
	if len(targets) == 0 {
		opts, err := s.Resolve(overrides)
		if err != nil {
			return nil, err
		}

		result, err := s.Execute(ctx, opts)
		if err != nil {
			return nil, err
		}

		return map[string]*SearchResult{opts.Server: result}, nil
	}

	results := make(map[string]*SearchResult, len(targets))
	for _, target := range targets {
		targeted := overrides
		targeted.Server = &target

		result, err := s.Search(ctx, targeted)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", target, err)
		}

		tflog.SubsystemTrace(ctx, SubsystemLDAP, "Target searched", map[string]any{
			"target":      target,
			"entry_count": result.Count,
		})

		results[target] = result
	}

	return results, nil
}
