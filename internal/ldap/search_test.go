package ldap

import (
	"context"
	"errors"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearcher_Search(t *testing.T) {
	conn := &fakeConn{
		entries: []*ldap.Entry{
			hostEntry("cn=web01,ou=hosts,dc=example,dc=com", map[string][]string{"cn": {"web01"}}),
		},
	}
	var dialed []*SearchOptions

	searcher := NewSearcher(
		Options{Server: ptr("ldap.example.com"), BaseDN: ptr("dc=example,dc=com")},
		WithClient(NewClient(WithDialer(dialerFor(conn, &dialed)))),
	)

	result, err := searcher.Search(context.Background(), Options{Filter: ptr("(cn=web01)")})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)

	require.Len(t, dialed, 1)
	assert.Equal(t, "ldap.example.com", dialed[0].Server)
	assert.Equal(t, 389, dialed[0].Port)
	assert.Equal(t, "dc=example,dc=com", dialed[0].BaseDN)
}

func TestSearcher_Search_InvalidOptions(t *testing.T) {
	var dialed []*SearchOptions
	searcher := NewSearcher(Options{}, WithClient(NewClient(WithDialer(dialerFor(&fakeConn{}, &dialed)))))

	_, err := searcher.Search(context.Background(), Options{Filter: ptr("(cn=*)")})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.Empty(t, dialed, "invalid options must not open a connection")
}

func TestSearcher_WithDefaults(t *testing.T) {
	searcher := NewSearcher(Options{}, WithDefaults(Options{
		Server: ptr("dc1.example.com"),
		Port:   ptr(3268),
		BaseDN: ptr("dc=example,dc=com"),
	}))

	opts, err := searcher.Resolve(Options{Filter: ptr("(cn=*)")})
	require.NoError(t, err)
	assert.Equal(t, "dc1.example.com:3268", opts.Address())
	assert.Equal(t, ScopeSubtree, opts.Scope)
}

func TestSearcher_SearchTargets(t *testing.T) {
	static := Options{Server: ptr("ldap.example.com"), BaseDN: ptr("dc=example,dc=com")}
	overrides := Options{Filter: ptr("(cn=*)")}

	t.Run("no targets keys by server", func(t *testing.T) {
		searcher := NewSearcher(static, WithClient(NewClient(WithDialer(dialerFor(&fakeConn{}, nil)))))

		results, err := searcher.SearchTargets(context.Background(), overrides)
		require.NoError(t, err)
		assert.Len(t, results, 1)
		assert.Contains(t, results, "ldap.example.com")
	})

	t.Run("each target searched", func(t *testing.T) {
		var dialed []*SearchOptions
		searcher := NewSearcher(static, WithClient(NewClient(WithDialer(dialerFor(&fakeConn{}, &dialed)))))

		results, err := searcher.SearchTargets(context.Background(), overrides, "dc1.example.com", "dc2.example.com")
		require.NoError(t, err)
		assert.Len(t, results, 2)
		assert.Contains(t, results, "dc1.example.com")
		assert.Contains(t, results, "dc2.example.com")

		require.Len(t, dialed, 2)
		assert.Equal(t, "dc1.example.com", dialed[0].Server)
		assert.Equal(t, "dc2.example.com", dialed[1].Server)
		assert.Nil(t, overrides.Server)
	})

	t.Run("first failure aborts", func(t *testing.T) {
		var dialed []string
		dial := func(_ context.Context, opts *SearchOptions) (Conn, error) {
			dialed = append(dialed, opts.Server)
			if opts.Server == "dc2.example.com" {
				return nil, errors.New("connection refused")
			}
			return &fakeConn{}, nil
		}
		searcher := NewSearcher(static, WithClient(NewClient(WithDialer(dial))))

		results, err := searcher.SearchTargets(context.Background(), overrides,
			"dc1.example.com", "dc2.example.com", "dc3.example.com")
		require.Error(t, err)
		assert.Nil(t, results)
		assert.True(t, IsConnectionError(err))
		assert.Contains(t, err.Error(), "target dc2.example.com")
		assert.Equal(t, []string{"dc1.example.com", "dc2.example.com"}, dialed)
	})
}
