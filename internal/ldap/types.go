package ldap

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// Scope is the breadth of a directory search below the base DN.
type Scope int

const (
	ScopeBase     Scope = ldap.ScopeBaseObject   // Only the base entry
	ScopeOneLevel Scope = ldap.ScopeSingleLevel  // Immediate children of the base entry
	ScopeSubtree  Scope = ldap.ScopeWholeSubtree // The base entry and all descendants
)

var scopeNames = map[string]Scope{
	"base":         ScopeBase,
	"baseobject":   ScopeBase,
	"one":          ScopeOneLevel,
	"onelevel":     ScopeOneLevel,
	"singlelevel":  ScopeOneLevel,
	"sub":          ScopeSubtree,
	"subtree":      ScopeSubtree,
	"wholesubtree": ScopeSubtree,
}

// ParseScope accepts the numeric scopes 0-2 or their names, case-insensitively.
func ParseScope(value string) (Scope, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))

	if scope, ok := scopeNames[normalized]; ok {
		return scope, nil
	}

	if n, err := strconv.Atoi(normalized); err == nil && Scope(n).Valid() {
		return Scope(n), nil
	}

	return 0, fmt.Errorf("unknown search scope %q: must be one of base, onelevel, subtree or 0-2", value)
}

// Valid reports whether s is one of the three LDAP search scopes.
func (s Scope) Valid() bool {
	return s >= ScopeBase && s <= ScopeSubtree
}

// String returns the canonical name of the scope.
func (s Scope) String() string {
	switch s {
	case ScopeBase:
		return "base"
	case ScopeOneLevel:
		return "onelevel"
	case ScopeSubtree:
		return "subtree"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Scope) UnmarshalText(text []byte) error {
	scope, err := ParseScope(string(text))
	if err != nil {
		return err
	}
	*s = scope
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (s Scope) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid search scope %d", int(s))
	}
	return []byte(s.String()), nil
}

// AuthMethod defines authentication method types.
type AuthMethod int

const (
	AuthMethodAnonymous  AuthMethod = iota // Unauthenticated bind
	AuthMethodSimpleBind                   // DN/password authentication
	AuthMethodKerberos                     // GSSAPI/Kerberos authentication
)

// String returns string representation of authentication method.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodAnonymous:
		return "anonymous"
	case AuthMethodSimpleBind:
		return "simple"
	case AuthMethodKerberos:
		return "kerberos"
	default:
		return "unknown"
	}
}

// KerberosOptions configures GSSAPI binds. Kerberos is used when Realm is set.
type KerberosOptions struct {
	Realm  string // Kerberos realm, e.g. EXAMPLE.COM
	Keytab string // Path to a keytab file
	Config string // Path to krb5.conf
	CCache string // Path to a credential cache
	SPN    string // Service principal, defaults to ldap/<server>
}

// SearchOptions is the fully resolved configuration for one search.
type SearchOptions struct {
	Server        string
	Port          int
	TLS           bool
	TLSSkipVerify bool
	BindDN        string
	BindPW        string
	BaseDN        string
	Filter        string
	Attrs         []string // Empty requests all attributes
	Scope         Scope
	PageSize      int // Zero disables the paged results control
	Kerberos      KerberosOptions
}

// Address returns the host:port pair of the server.
func (o *SearchOptions) Address() string {
	return net.JoinHostPort(o.Server, strconv.Itoa(o.Port))
}

// URL returns the ldap:// URL used to dial the server.
func (o *SearchOptions) URL() string {
	return "ldap://" + o.Address()
}

// AuthMethod determines the bind performed after connecting.
func (o *SearchOptions) AuthMethod() AuthMethod {
	if o.Kerberos.Realm != "" {
		return AuthMethodKerberos
	}

	// Both halves are required: a DN with an empty password is an
	// unauthenticated bind on most servers.
	if o.BindDN != "" && o.BindPW != "" {
		return AuthMethodSimpleBind
	}

	return AuthMethodAnonymous
}

// LogFields returns the options as tflog fields, without credentials.
func (o *SearchOptions) LogFields() map[string]any {
	return map[string]any{
		"server":      o.Server,
		"port":        o.Port,
		"tls":         o.TLS,
		"base_dn":     o.BaseDN,
		"filter":      o.Filter,
		"scope":       o.Scope.String(),
		"attributes":  o.Attrs,
		"auth_method": o.AuthMethod().String(),
	}
}
