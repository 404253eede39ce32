package ldap

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Conn is the subset of *ldap.Conn needed to run one search.
type Conn interface {
	StartTLS(config *tls.Config) error
	Bind(username, password string) error
	UnauthenticatedBind(username string) error
	GSSAPIBind(client ldap.GSSAPIClient, servicePrincipal, authzid string) error
	Search(searchRequest *ldap.SearchRequest) (*ldap.SearchResult, error)
	SearchWithPaging(searchRequest *ldap.SearchRequest, pagingSize uint32) (*ldap.SearchResult, error)
	Close() error
}

var _ Conn = (*ldap.Conn)(nil)

// Dialer opens a plain connection to the server named in opts.
type Dialer func(ctx context.Context, opts *SearchOptions) (Conn, error)

// DialLDAP is the default Dialer. It connects to ldap://server:port.
func DialLDAP(ctx context.Context, opts *SearchOptions) (Conn, error) {
	dialer := &net.Dialer{Timeout: ldap.DefaultTimeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	conn, err := ldap.DialURL(opts.URL(), ldap.DialWithDialer(dialer))
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Client runs single searches, one connection per search.
type Client struct {
	dial Dialer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithDialer replaces the function used to open connections.
func WithDialer(dial Dialer) ClientOption {
	return func(c *Client) {
		if dial != nil {
			c.dial = dial
		}
	}
}

// NewClient creates a new search client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{dial: DialLDAP}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search connects to the server in opts, upgrades the connection with
// StartTLS when requested, binds and runs the search. The connection is
// closed before Search returns, on every path. Failures are reported as
// *LDAPError in the connection, authentication or search category; nothing
// is retried.
func (c *Client) Search(ctx context.Context, opts *SearchOptions) (*SearchResult, error) {
	if opts == nil {
		return nil, NewConfigError("search options cannot be nil")
	}

	var result *SearchResult
	err := LogOperation(ctx, SubsystemLDAP, "search", opts.LogFields(), func() error {
		conn, err := c.connect(ctx, opts)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := conn.Close(); closeErr != nil {
				tflog.SubsystemDebug(ctx, SubsystemLDAP, "Error closing connection", map[string]any{
					"server": opts.Address(),
					"error":  closeErr.Error(),
				})
			}
		}()

		if err := c.bind(ctx, conn, opts); err != nil {
			return err
		}

		result, err = c.search(ctx, conn, opts)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// connect dials the server and applies StartTLS. On error no connection is
// left open.
func (c *Client) connect(ctx context.Context, opts *SearchOptions) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewConnectionError("dial", opts.Address(), err)
	}

	conn, err := c.dial(ctx, opts)
	if err != nil {
		LogConnectionEvent(ctx, "connection_failed", map[string]any{
			"server": opts.Address(),
			"error":  err.Error(),
		})
		return nil, NewConnectionError("dial", opts.Address(), err)
	}

	LogConnectionEvent(ctx, "connection_established", map[string]any{"server": opts.Address()})

	if !opts.TLS {
		return conn, nil
	}

	tlsConfig := &tls.Config{
		ServerName:         opts.Server,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: opts.TLSSkipVerify, // #nosec G402 -- opt-in via tls_skip_verify
	}

	if err := conn.StartTLS(tlsConfig); err != nil {
		_ = conn.Close()
		LogConnectionEvent(ctx, "tls_failed", map[string]any{
			"server": opts.Address(),
			"error":  err.Error(),
		})
		return nil, NewConnectionError("starttls", opts.Address(), err)
	}

	LogConnectionEvent(ctx, "tls_established", map[string]any{
		"server":      opts.Address(),
		"skip_verify": opts.TLSSkipVerify,
	})

	return conn, nil
}

// bind authenticates conn according to opts.AuthMethod.
func (c *Client) bind(ctx context.Context, conn Conn, opts *SearchOptions) error {
	method := opts.AuthMethod()

	var err error
	switch method {
	case AuthMethodKerberos:
		err = kerberosBind(ctx, conn, opts)
	case AuthMethodSimpleBind:
		err = conn.Bind(opts.BindDN, opts.BindPW)
	default:
		err = conn.UnauthenticatedBind("")
	}

	fields := map[string]any{
		"server":      opts.Address(),
		"auth_method": method.String(),
		"bind_dn":     opts.BindDN,
	}

	if err != nil {
		fields["error"] = err.Error()
		LogConnectionEvent(ctx, "bind_failed", fields)
		return classifyBindError(opts.Address(), opts.BindDN, err)
	}

	LogConnectionEvent(ctx, "bind_success", fields)
	return nil
}

// search runs the query. Only the search round trip is timed.
func (c *Client) search(ctx context.Context, conn Conn, opts *SearchOptions) (*SearchResult, error) {
	req := ldap.NewSearchRequest(
		opts.BaseDN,
		int(opts.Scope),
		ldap.NeverDerefAliases,
		0, // No size limit
		0, // No time limit
		false,
		opts.Filter,
		opts.Attrs,
		nil,
	)

	var (
		res *ldap.SearchResult
		err error
	)

	start := time.Now()
	if opts.PageSize > 0 {
		res, err = conn.SearchWithPaging(req, uint32(opts.PageSize)) // #nosec G115 -- bounded by Validate
	} else {
		res, err = conn.Search(req)
	}
	elapsed := time.Since(start)

	if err != nil {
		LogLDAPError(ctx, SubsystemLDAP, "search", err, opts.LogFields())
		return nil, classifySearchError(opts.Address(), opts.BaseDN, err)
	}

	var entries []*ldap.Entry
	if res != nil {
		entries = res.Entries
	}
	result := newSearchResult(entries, elapsed)

	tflog.SubsystemDebug(ctx, SubsystemLDAP, "Search completed", map[string]any{
		"base_dn":     opts.BaseDN,
		"entry_count": result.Count,
		"elapsed":     result.Time.Human,
	})

	return result, nil
}
