package ldap

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLDAPError(t *testing.T) {
	tests := []struct {
		name       string
		operation  string
		err        error
		wantNil    bool
		wantCode   uint16
		wantServer string
	}{
		{
			name:      "nil error",
			operation: "search",
			err:       nil,
			wantNil:   true,
		},
		{
			name:       "ldap error",
			operation:  "bind",
			err:        ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("bad password")),
			wantCode:   ldap.LDAPResultInvalidCredentials,
			wantServer: "bad password",
		},
		{
			name:      "generic error",
			operation: "dial",
			err:       errors.New("connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewLDAPError(tt.operation, ErrorCategorySearch, tt.err)

			if tt.wantNil {
				assert.Nil(t, result)
				return
			}

			require.NotNil(t, result)
			assert.Equal(t, tt.operation, result.Operation)
			assert.Equal(t, tt.err, result.Cause)
			assert.Equal(t, tt.wantCode, result.LDAPCode)
			assert.Equal(t, tt.wantServer, result.ServerMsg)
		})
	}
}

func TestLDAPError_Error(t *testing.T) {
	tests := []struct {
		name    string
		ldapErr *LDAPError
		want    string
	}{
		{
			name: "basic error",
			ldapErr: &LDAPError{
				Operation: "search",
				Message:   "operation failed",
			},
			want: "LDAP search failed - operation failed",
		},
		{
			name: "error with code",
			ldapErr: &LDAPError{
				Operation: "bind",
				LDAPCode:  ldap.LDAPResultInvalidCredentials,
				Message:   "Invalid Credentials",
			},
			want: "LDAP bind failed (code 49) - Invalid Credentials",
		},
		{
			name: "error with server message and DN",
			ldapErr: &LDAPError{
				Operation: "search",
				LDAPCode:  ldap.LDAPResultNoSuchObject,
				Message:   "No Such Object",
				ServerMsg: "0000208D: NameErr",
				DN:        "ou=missing,dc=example,dc=com",
			},
			want: "LDAP search failed (code 32) - No Such Object - server: 0000208D: NameErr - DN: ou=missing,dc=example,dc=com",
		},
		{
			name:    "config error",
			ldapErr: NewConfigError("filter is required"),
			want:    "LDAP resolve failed - filter is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ldapErr.Error())
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name         string
		err          error
		isConfig     bool
		isConnection bool
		isAuth       bool
		isSearch     bool
		category     ErrorCategory
	}{
		{
			name:     "config",
			err:      NewConfigError("basedn is required"),
			isConfig: true,
			category: ErrorCategoryConfig,
		},
		{
			name:         "connection",
			err:          NewConnectionError("dial", "localhost:389", cause),
			isConnection: true,
			category:     ErrorCategoryConnection,
		},
		{
			name:     "auth",
			err:      NewAuthError("cn=admin,dc=example,dc=com", cause),
			isAuth:   true,
			category: ErrorCategoryAuthentication,
		},
		{
			name:     "search",
			err:      NewSearchError("dc=example,dc=com", cause),
			isSearch: true,
			category: ErrorCategorySearch,
		},
		{
			name:     "wrapped search",
			err:      fmt.Errorf("target ldap1: %w", NewSearchError("dc=example,dc=com", cause)),
			isSearch: true,
			category: ErrorCategorySearch,
		},
		{
			name:     "plain error",
			err:      cause,
			category: ErrorCategoryUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.isConfig, IsConfigError(tt.err))
			assert.Equal(t, tt.isConnection, IsConnectionError(tt.err))
			assert.Equal(t, tt.isAuth, IsAuthError(tt.err))
			assert.Equal(t, tt.isSearch, IsSearchError(tt.err))
			assert.Equal(t, tt.category, GetErrorCategory(tt.err))
		})
	}
}

func TestClassifyErrors(t *testing.T) {
	networkErr := ldap.NewError(ldap.ErrorNetwork, errors.New("connection reset"))
	rejected := ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("invalid credentials"))
	filterErr := ldap.NewError(ldap.ErrorFilterCompile, errors.New("unexpected end of filter"))

	t.Run("bind rejected is auth", func(t *testing.T) {
		err := classifyBindError("localhost:389", "cn=admin", rejected)
		assert.True(t, IsAuthError(err))
		assert.Equal(t, "cn=admin", err.DN)
	})

	t.Run("bind network failure is connection", func(t *testing.T) {
		assert.True(t, IsConnectionError(classifyBindError("localhost:389", "cn=admin", networkErr)))
	})

	t.Run("filter compile error is search", func(t *testing.T) {
		err := classifySearchError("localhost:389", "dc=example,dc=com", filterErr)
		assert.True(t, IsSearchError(err))
		assert.Equal(t, uint16(ldap.ErrorFilterCompile), err.LDAPCode)
	})

	t.Run("search network failure is connection", func(t *testing.T) {
		assert.True(t, IsConnectionError(classifySearchError("localhost:389", "dc=example,dc=com", networkErr)))
	})
}

func TestLDAPError_Unwrap(t *testing.T) {
	cause := ldap.NewError(ldap.LDAPResultNoSuchObject, errors.New("no such object"))
	err := NewSearchError("dc=example,dc=com", cause)

	var ldapErr *ldap.Error
	require.ErrorAs(t, err, &ldapErr)
	assert.Equal(t, uint16(ldap.LDAPResultNoSuchObject), ldapErr.ResultCode)
	assert.ErrorIs(t, err, cause)
}
