/*
Package ldap provides read-only LDAP searches for the Terraform LDAP provider.

# Architecture Overview

The package is organized into a few core components:

  - Options: Layered search configuration (built-in defaults, provider
    configuration, per-call overrides) resolved field by field
  - Client: One connection per search with optional StartTLS and an
    anonymous, simple or Kerberos bind
  - Searcher: Resolution plus execution, optionally fanned out over
    several target servers
  - Flatten: Conversion of multi-valued key=value attributes to mappings

# Option Resolution

Each Options layer uses nil to mean "unset", so a value supplied in a
higher layer always wins, even when it is the zero value:

	defaults := ldap.BuiltinDefaults()
	static, _ := ldap.ParseOptions(map[string]any{"server": "dc1.example.com"})
	filter := "(cn=web01)"
	opts, err := ldap.Resolve(defaults, static, ldap.Options{Filter: &filter})

Resolution fails with a config error when the filter or base DN is missing.

# Errors

All failures are *LDAPError values with one of four categories: config,
connection, authentication or search. Use IsConfigError, IsConnectionError,
IsAuthError and IsSearchError to tell them apart.

# Active Directory Attributes

objectSid and objectGUID are returned by Active Directory as raw bytes and
are rendered in their usual string forms.
*/
package ldap
