package provider

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-framework/providerserver"
	"github.com/hashicorp/terraform-plugin-go/tfprotov6"
	"github.com/hashicorp/terraform-plugin-go/tftypes"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
)

// testAccProtoV6ProviderFactories is used to instantiate a provider during acceptance testing.
// The factory function is called for each Terraform CLI command to create a provider
// server that the CLI can connect to and interact with.
var testAccProtoV6ProviderFactories = map[string]func() (tfprotov6.ProviderServer, error){
	"ldap": providerserver.NewProtocol6WithError(New("test")()),
}

// Environment variables for acceptance tests.
const (
	EnvTestServer = "LDAP_TEST_SERVER"
	EnvTestPort   = "LDAP_TEST_PORT"
	EnvTestBindDN = "LDAP_TEST_BINDDN"
	EnvTestBindPW = "LDAP_TEST_BINDPW"
	EnvTestBaseDN = "LDAP_TEST_BASEDN"
)

// testAccPreCheck skips acceptance tests that need a directory server when
// none is configured.
func testAccPreCheck(t *testing.T) {
	for _, env := range []string{EnvTestServer, EnvTestBaseDN} {
		if os.Getenv(env) == "" {
			t.Skipf("Skipping test: %s must be set", env)
		}
	}
}

// testAccProviderConfig generates provider configuration from the test
// environment.
func testAccProviderConfig() string {
	var config strings.Builder
	config.WriteString("provider \"ldap\" {\n")
	fmt.Fprintf(&config, "  server = %q\n", os.Getenv(EnvTestServer))
	fmt.Fprintf(&config, "  basedn = %q\n", os.Getenv(EnvTestBaseDN))
	if port := os.Getenv(EnvTestPort); port != "" {
		fmt.Fprintf(&config, "  port = %s\n", port)
	}
	if binddn := os.Getenv(EnvTestBindDN); binddn != "" {
		fmt.Fprintf(&config, "  binddn = %q\n", binddn)
		fmt.Fprintf(&config, "  bindpw = %q\n", os.Getenv(EnvTestBindPW))
	}
	config.WriteString("}\n")
	return config.String()
}

// fakeConn serves canned entries keyed by search filter.
type fakeConn struct {
	entries   map[string][]*ldap.Entry
	searchErr error
	filters   *[]string
}

func (f *fakeConn) StartTLS(*tls.Config) error { return nil }

func (f *fakeConn) Bind(string, string) error { return nil }

func (f *fakeConn) UnauthenticatedBind(string) error { return nil }

func (f *fakeConn) GSSAPIBind(ldap.GSSAPIClient, string, string) error { return nil }

func (f *fakeConn) Close() error { return nil }

func (f *fakeConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	if f.filters != nil {
		*f.filters = append(*f.filters, req.Filter)
	}
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return &ldap.SearchResult{Entries: f.entries[req.Filter]}, nil
}

func (f *fakeConn) SearchWithPaging(req *ldap.SearchRequest, _ uint32) (*ldap.SearchResult, error) {
	return f.Search(req)
}

// testDialer dials fake connections; servers listed in unreachable fail.
type testDialer struct {
	entries     map[string][]*ldap.Entry
	unreachable map[string]bool
	searchErr   error
	dialed      []string
	filters     []string
}

func (d *testDialer) dial(_ context.Context, opts *ldapclient.SearchOptions) (ldapclient.Conn, error) {
	d.dialed = append(d.dialed, opts.Server)
	if d.unreachable[opts.Server] {
		return nil, fmt.Errorf("dial tcp %s: connection refused", opts.Address())
	}
	return &fakeConn{entries: d.entries, searchErr: d.searchErr, filters: &d.filters}, nil
}

// providerData builds the data handed to data sources by a provider
// configured with static.
func (d *testDialer) providerData(static ldapclient.Options) *ldapclient.ProviderData {
	client := ldapclient.NewClient(ldapclient.WithDialer(d.dial))
	return ldapclient.NewProviderData(ldapclient.NewSearcher(static, ldapclient.WithClient(client)))
}

// objectValue builds a value of the object type typ, leaving every attribute
// not in values null.
func objectValue(t *testing.T, typ tftypes.Type, values map[string]tftypes.Value) tftypes.Value {
	t.Helper()

	object, ok := typ.(tftypes.Object)
	if !ok {
		t.Fatalf("expected object type, got %T", typ)
	}

	attrs := make(map[string]tftypes.Value, len(object.AttributeTypes))
	for name, attrType := range object.AttributeTypes {
		if value, ok := values[name]; ok {
			attrs[name] = value
			continue
		}
		attrs[name] = tftypes.NewValue(attrType, nil)
	}

	return tftypes.NewValue(object, attrs)
}

func stringValue(s string) tftypes.Value {
	return tftypes.NewValue(tftypes.String, s)
}

func stringListValue(values ...string) tftypes.Value {
	elements := make([]tftypes.Value, len(values))
	for i, v := range values {
		elements[i] = stringValue(v)
	}
	return tftypes.NewValue(tftypes.List{ElementType: tftypes.String}, elements)
}

func strPtr(s string) *string {
	return &s
}
