package ldap

import (
	"context"
	"errors"
	"maps"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Subsystem names used for tflog output.
const (
	SubsystemLDAP     = "ldap"
	SubsystemProvider = "provider"
)

// LogOperation is a helper function to log an operation with timing.
func LogOperation(ctx context.Context, subsystem, operation string, fields map[string]any, fn func() error) error {
	start := time.Now()

	entryFields := SanitizeFields(fields)
	entryFields["operation"] = operation

	tflog.SubsystemDebug(ctx, subsystem, "Starting operation", entryFields)

	err := fn()

	exitFields := maps.Clone(entryFields)
	exitFields["duration_ms"] = time.Since(start).Milliseconds()

	if err != nil {
		exitFields["error"] = err.Error()
		exitFields["error_category"] = string(GetErrorCategory(err))
		tflog.SubsystemError(ctx, subsystem, "Operation failed", exitFields)
	} else {
		tflog.SubsystemDebug(ctx, subsystem, "Operation completed successfully", exitFields)
	}

	return err
}

// LogLDAPError logs LDAP-specific error information.
func LogLDAPError(ctx context.Context, subsystem string, operation string, err error, fields map[string]any) {
	logFields := SanitizeFields(fields)
	logFields["operation"] = operation
	logFields["error"] = err.Error()

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		logFields["ldap_result_code"] = ldapErr.ResultCode
		if ldapErr.MatchedDN != "" {
			logFields["ldap_matched_dn"] = ldapErr.MatchedDN
		}
		if ldapErr.Err != nil {
			logFields["ldap_diagnostic_message"] = ldapErr.Err.Error()
		}
	}

	tflog.SubsystemError(ctx, subsystem, "LDAP operation failed", logFields)
}

// LogConnectionEvent logs connection lifecycle events.
func LogConnectionEvent(ctx context.Context, event string, fields map[string]any) {
	logFields := SanitizeFields(fields)
	logFields["event"] = event

	switch event {
	case "connection_established", "tls_established", "bind_success":
		tflog.SubsystemDebug(ctx, SubsystemLDAP, "Connection event", logFields)
	case "connection_failed", "tls_failed", "bind_failed":
		tflog.SubsystemError(ctx, SubsystemLDAP, "Connection event", logFields)
	default:
		tflog.SubsystemTrace(ctx, SubsystemLDAP, "Connection event", logFields)
	}
}

// LogKerberosEvent logs Kerberos-specific events.
func LogKerberosEvent(ctx context.Context, event string, fields map[string]any) {
	logFields := SanitizeFields(fields)
	logFields["event"] = event

	switch event {
	case "credentials_selected":
		tflog.SubsystemDebug(ctx, SubsystemLDAP, "Kerberos event", logFields)
	case "credentials_unavailable", "client_creation_failed":
		tflog.SubsystemError(ctx, SubsystemLDAP, "Kerberos event", logFields)
	default:
		tflog.SubsystemTrace(ctx, SubsystemLDAP, "Kerberos event", logFields)
	}
}

var sensitiveKeys = map[string]bool{
	"password":    true,
	"passwd":      true,
	"bindpw":      true,
	"secret":      true,
	"token":       true,
	"private_key": true,
	"credential":  true,
	"credentials": true,
}

// SanitizeFields returns a copy of fields with sensitive values redacted.
// A nil input yields an empty, writable map.
func SanitizeFields(fields map[string]any) map[string]any {
	sanitized := make(map[string]any, len(fields))

	for k, v := range fields {
		if sensitiveKeys[strings.ToLower(k)] {
			sanitized[k] = "[REDACTED]"
			continue
		}
		if str, ok := v.(string); ok && containsSensitivePattern(str) {
			sanitized[k] = "[REDACTED]"
			continue
		}
		sanitized[k] = v
	}

	return sanitized
}

// containsSensitivePattern checks if a string looks like it embeds a secret.
func containsSensitivePattern(s string) bool {
	lower := strings.ToLower(s)
	for _, pattern := range []string{"password=", "passwd=", "bindpw=", "secret=", "token="} {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// LogDataSourceOperation provides standardized entry/exit logging for Terraform data source operations.
func LogDataSourceOperation(ctx context.Context, dataSource, operation string, fields map[string]any) func(error) {
	start := time.Now()

	entryFields := SanitizeFields(fields)
	entryFields["data_source"] = dataSource
	entryFields["operation"] = operation

	tflog.SubsystemDebug(ctx, SubsystemProvider, "Starting data source operation", entryFields)

	return func(err error) {
		exitFields := maps.Clone(entryFields)
		exitFields["duration_ms"] = time.Since(start).Milliseconds()
		exitFields["has_error"] = err != nil

		if err != nil {
			exitFields["error"] = err.Error()
			tflog.SubsystemError(ctx, SubsystemProvider, "Data source operation failed", exitFields)
		} else {
			tflog.SubsystemDebug(ctx, SubsystemProvider, "Data source operation completed", exitFields)
		}
	}
}
