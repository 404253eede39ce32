package ldap

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
)

const defaultKrb5Conf = "/etc/krb5.conf"

// kerberosCredentials is the Kerberos identity derived from search options.
type kerberosCredentials struct {
	Principal string
	Realm     string
	Password  string
	Keytab    string
	CCache    string
	Krb5Conf  string
}

// newKerberosCredentials derives the Kerberos identity from opts. The bind
// DN doubles as the principal name and may carry its own realm, as in
// user@EXAMPLE.COM.
func newKerberosCredentials(opts *SearchOptions) kerberosCredentials {
	creds := kerberosCredentials{
		Principal: opts.BindDN,
		Realm:     opts.Kerberos.Realm,
		Password:  opts.BindPW,
		Keytab:    opts.Kerberos.Keytab,
		CCache:    opts.Kerberos.CCache,
		Krb5Conf:  opts.Kerberos.Config,
	}

	if creds.Krb5Conf == "" {
		creds.Krb5Conf = defaultKrb5Conf
	}

	if user, realm, ok := strings.Cut(creds.Principal, "@"); ok && user != "" && realm != "" {
		creds.Principal = user
		if creds.Realm == "" {
			creds.Realm = realm
		}
	}

	return creds
}

// kerberosBind performs a GSSAPI bind on conn.
func kerberosBind(ctx context.Context, conn Conn, opts *SearchOptions) error {
	creds := newKerberosCredentials(opts)

	client, err := createGSSAPIClient(ctx, creds)
	if err != nil {
		LogKerberosEvent(ctx, "client_creation_failed", map[string]any{
			"realm":     creds.Realm,
			"principal": creds.Principal,
			"error":     err.Error(),
		})
		return fmt.Errorf("failed to create GSSAPI client: %w", err)
	}

	spn := servicePrincipal(opts)
	if err := conn.GSSAPIBind(client, spn, ""); err != nil {
		return fmt.Errorf("GSSAPI bind as %s failed: %w", spn, err)
	}

	return nil
}

// createGSSAPIClient creates a GSSAPI client from the first usable source.
// Priority order: explicit ccache, default ccache, explicit keytab,
// default keytab, password.
func createGSSAPIClient(ctx context.Context, creds kerberosCredentials) (ldap.GSSAPIClient, error) {
	if !fileExists(creds.Krb5Conf) {
		return nil, fmt.Errorf("kerberos configuration file not found at %s: "+
			"create it or set kerberos_config", creds.Krb5Conf)
	}

	selected := func(source, path string) {
		LogKerberosEvent(ctx, "credentials_selected", map[string]any{
			"source": source,
			"path":   path,
			"realm":  creds.Realm,
		})
	}

	if fileExists(creds.CCache) {
		selected("ccache", creds.CCache)
		return gssapi.NewClientFromCCache(creds.CCache, creds.Krb5Conf, krb5client.DisablePAFXFAST(true))
	}

	if defaultCCache := getDefaultCCachePath(); fileExists(defaultCCache) {
		selected("default_ccache", defaultCCache)
		return gssapi.NewClientFromCCache(defaultCCache, creds.Krb5Conf, krb5client.DisablePAFXFAST(true))
	}

	if creds.Principal == "" {
		LogKerberosEvent(ctx, "credentials_unavailable", map[string]any{"realm": creds.Realm})
		return nil, fmt.Errorf("no credential cache found and binddn is empty: " +
			"set binddn to the Kerberos principal")
	}

	if fileExists(creds.Keytab) {
		selected("keytab", creds.Keytab)
		return gssapi.NewClientWithKeytab(creds.Principal, creds.Realm, creds.Keytab, creds.Krb5Conf, krb5client.DisablePAFXFAST(true))
	}

	if defaultKeytab := getDefaultKeytabPath(); fileExists(defaultKeytab) {
		selected("default_keytab", defaultKeytab)
		return gssapi.NewClientWithKeytab(creds.Principal, creds.Realm, defaultKeytab, creds.Krb5Conf, krb5client.DisablePAFXFAST(true))
	}

	if creds.Password != "" {
		selected("password", "")
		return gssapi.NewClientWithPassword(creds.Principal, creds.Realm, creds.Password, creds.Krb5Conf, krb5client.DisablePAFXFAST(true))
	}

	LogKerberosEvent(ctx, "credentials_unavailable", map[string]any{
		"realm":     creds.Realm,
		"principal": creds.Principal,
	})
	return nil, fmt.Errorf("no suitable credentials found for Kerberos authentication: " +
		"provide kerberos_ccache, kerberos_keytab or bindpw")
}

// servicePrincipal returns the SPN of the directory server, ldap/<server>
// unless overridden.
func servicePrincipal(opts *SearchOptions) string {
	if opts.Kerberos.SPN != "" {
		return opts.Kerberos.SPN
	}
	return "ldap/" + opts.Server
}

// getDefaultCCachePath returns the default credential cache location.
func getDefaultCCachePath() string {
	if ccache := os.Getenv("KRB5CCNAME"); ccache != "" {
		return strings.TrimPrefix(ccache, "FILE:")
	}
	return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
}

// getDefaultKeytabPath returns the default keytab location.
func getDefaultKeytabPath() string {
	if keytab := os.Getenv("KRB5_KTNAME"); keytab != "" {
		return strings.TrimPrefix(keytab, "FILE:")
	}
	return "/etc/krb5.keytab"
}

// fileExists checks if a file exists and is readable.
func fileExists(path string) bool {
	if path == "" {
		return false
	}
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	_ = file.Close()
	return true
}
