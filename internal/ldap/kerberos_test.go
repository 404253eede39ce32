package ldap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKerberosCredentials(t *testing.T) {
	tests := []struct {
		name          string
		opts          *SearchOptions
		wantPrincipal string
		wantRealm     string
		wantKrb5Conf  string
	}{
		{
			name: "plain principal",
			opts: &SearchOptions{
				BindDN:   "svc-ldap",
				BindPW:   "secret",
				Kerberos: KerberosOptions{Realm: "EXAMPLE.COM"},
			},
			wantPrincipal: "svc-ldap",
			wantRealm:     "EXAMPLE.COM",
			wantKrb5Conf:  "/etc/krb5.conf",
		},
		{
			name: "principal carries realm",
			opts: &SearchOptions{
				BindDN:   "svc-ldap@CORP.EXAMPLE.COM",
				Kerberos: KerberosOptions{Realm: "EXAMPLE.COM", Config: "/opt/krb5.conf"},
			},
			wantPrincipal: "svc-ldap",
			wantRealm:     "EXAMPLE.COM",
			wantKrb5Conf:  "/opt/krb5.conf",
		},
		{
			name: "realm taken from principal",
			opts: &SearchOptions{
				BindDN: "svc-ldap@CORP.EXAMPLE.COM",
			},
			wantPrincipal: "svc-ldap",
			wantRealm:     "CORP.EXAMPLE.COM",
			wantKrb5Conf:  "/etc/krb5.conf",
		},
		{
			name: "trailing at sign is kept",
			opts: &SearchOptions{
				BindDN:   "svc-ldap@",
				Kerberos: KerberosOptions{Realm: "EXAMPLE.COM"},
			},
			wantPrincipal: "svc-ldap@",
			wantRealm:     "EXAMPLE.COM",
			wantKrb5Conf:  "/etc/krb5.conf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := newKerberosCredentials(tt.opts)

			assert.Equal(t, tt.wantPrincipal, creds.Principal)
			assert.Equal(t, tt.wantRealm, creds.Realm)
			assert.Equal(t, tt.wantKrb5Conf, creds.Krb5Conf)
			assert.Equal(t, tt.opts.BindPW, creds.Password)
		})
	}
}

func TestServicePrincipal(t *testing.T) {
	tests := []struct {
		name string
		opts *SearchOptions
		want string
	}{
		{
			name: "derived from server",
			opts: &SearchOptions{Server: "dc1.example.com"},
			want: "ldap/dc1.example.com",
		},
		{
			name: "explicit override",
			opts: &SearchOptions{
				Server:   "ldap.example.com",
				Kerberos: KerberosOptions{SPN: "ldap/dc1.example.com@EXAMPLE.COM"},
			},
			want: "ldap/dc1.example.com@EXAMPLE.COM",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, servicePrincipal(tt.opts))
		})
	}
}

func TestCreateGSSAPIClient_MissingConfig(t *testing.T) {
	creds := kerberosCredentials{
		Principal: "svc-ldap",
		Realm:     "EXAMPLE.COM",
		Password:  "secret",
		Krb5Conf:  filepath.Join(t.TempDir(), "krb5.conf"),
	}

	client, err := createGSSAPIClient(context.Background(), creds)
	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "kerberos configuration file not found")
}

func TestCreateGSSAPIClient_NoCredentials(t *testing.T) {
	tempDir := t.TempDir()
	krb5Conf := filepath.Join(tempDir, "krb5.conf")
	require.NoError(t, os.WriteFile(krb5Conf, []byte("[libdefaults]\n  default_realm = EXAMPLE.COM\n"), 0o600))

	t.Setenv("KRB5CCNAME", filepath.Join(tempDir, "missing-ccache"))
	t.Setenv("KRB5_KTNAME", filepath.Join(tempDir, "missing-keytab"))

	tests := []struct {
		name    string
		creds   kerberosCredentials
		wantErr string
	}{
		{
			name:    "no principal",
			creds:   kerberosCredentials{Realm: "EXAMPLE.COM", Krb5Conf: krb5Conf},
			wantErr: "binddn is empty",
		},
		{
			name:    "principal without secrets",
			creds:   kerberosCredentials{Principal: "svc-ldap", Realm: "EXAMPLE.COM", Krb5Conf: krb5Conf},
			wantErr: "no suitable credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := createGSSAPIClient(context.Background(), tt.creds)
			require.Error(t, err)
			assert.Nil(t, client)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestKerberosBind_ClientFailure(t *testing.T) {
	conn := &fakeConn{}
	opts := &SearchOptions{
		Server:   "dc1.example.com",
		Kerberos: KerberosOptions{Realm: "EXAMPLE.COM", Config: filepath.Join(t.TempDir(), "krb5.conf")},
	}

	err := kerberosBind(context.Background(), conn, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create GSSAPI client")
	assert.Zero(t, conn.gssapiBinds, "bind must not be attempted without a client")
}

func TestGetDefaultCCachePath(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected string
	}{
		{
			name:     "environment variable with FILE prefix",
			envValue: "FILE:/tmp/custom_ccache",
			expected: "/tmp/custom_ccache",
		},
		{
			name:     "environment variable without prefix",
			envValue: "/custom/path/ccache",
			expected: "/custom/path/ccache",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("KRB5CCNAME", tt.envValue)
			assert.Equal(t, tt.expected, getDefaultCCachePath())
		})
	}

	t.Run("no environment variable", func(t *testing.T) {
		t.Setenv("KRB5CCNAME", "")
		assert.Contains(t, getDefaultCCachePath(), "/tmp/krb5cc_")
	})
}

func TestGetDefaultKeytabPath(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected string
	}{
		{
			name:     "no environment variable",
			envValue: "",
			expected: "/etc/krb5.keytab",
		},
		{
			name:     "environment variable with FILE prefix",
			envValue: "FILE:/custom/path/keytab",
			expected: "/custom/path/keytab",
		},
		{
			name:     "environment variable without prefix",
			envValue: "/custom/keytab.kt",
			expected: "/custom/keytab.kt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("KRB5_KTNAME", tt.envValue)
			assert.Equal(t, tt.expected, getDefaultKeytabPath())
		})
	}
}

func TestFileExists(t *testing.T) {
	tempDir := t.TempDir()
	existingFile := filepath.Join(tempDir, "existing.txt")
	require.NoError(t, os.WriteFile(existingFile, nil, 0o600))

	assert.True(t, fileExists(existingFile))
	assert.False(t, fileExists(filepath.Join(tempDir, "missing.txt")))
	assert.False(t, fileExists(""))
}
