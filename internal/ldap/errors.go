package ldap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// ErrorCategory represents the kind of failure behind an LDAPError.
type ErrorCategory string

const (
	ErrorCategoryConfig         ErrorCategory = "config"
	ErrorCategoryConnection     ErrorCategory = "connection"
	ErrorCategoryAuthentication ErrorCategory = "authentication"
	ErrorCategorySearch         ErrorCategory = "search"
	ErrorCategoryUnknown        ErrorCategory = "unknown"
)

// LDAPError provides enhanced error information for search operations.
type LDAPError struct {
	Operation string        // The operation that failed (resolve, dial, starttls, bind, search)
	Category  ErrorCategory // Error category
	LDAPCode  uint16        // LDAP result code, zero when not reported by the server
	Message   string        // Human-readable message
	ServerMsg string        // Server-provided message
	DN        string        // DN involved in the operation (if applicable)
	Cause     error         // Underlying error
}

func (e *LDAPError) Error() string {
	var parts []string

	if e.LDAPCode > 0 {
		parts = append(parts, fmt.Sprintf("LDAP %s failed (code %d)", e.Operation, e.LDAPCode))
	} else {
		parts = append(parts, fmt.Sprintf("LDAP %s failed", e.Operation))
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.ServerMsg != "" && e.ServerMsg != e.Message {
		parts = append(parts, fmt.Sprintf("server: %s", e.ServerMsg))
	}

	if e.DN != "" {
		parts = append(parts, fmt.Sprintf("DN: %s", e.DN))
	}

	return strings.Join(parts, " - ")
}

func (e *LDAPError) Unwrap() error {
	return e.Cause
}

// GetCategory returns the error category.
func (e *LDAPError) GetCategory() ErrorCategory {
	return e.Category
}

// GetLDAPCode returns the LDAP result code.
func (e *LDAPError) GetLDAPCode() uint16 {
	return e.LDAPCode
}

// NewLDAPError wraps err for the given operation and category, pulling the
// result code and diagnostic message out of go-ldap errors.
func NewLDAPError(operation string, category ErrorCategory, err error) *LDAPError {
	if err == nil {
		return nil
	}

	ldapErr := &LDAPError{
		Operation: operation,
		Category:  category,
		Cause:     err,
	}

	var resultErr *ldap.Error
	if errors.As(err, &resultErr) {
		ldapErr.LDAPCode = resultErr.ResultCode
		ldapErr.Message = resultCodeMessage(resultErr.ResultCode)
		if resultErr.Err != nil {
			ldapErr.ServerMsg = resultErr.Err.Error()
		}
	} else {
		ldapErr.Message = err.Error()
	}

	return ldapErr
}

// NewConfigError reports a missing or invalid search option.
func NewConfigError(format string, args ...any) *LDAPError {
	return &LDAPError{
		Operation: "resolve",
		Category:  ErrorCategoryConfig,
		Message:   fmt.Sprintf(format, args...),
	}
}

// NewConnectionError reports a network or TLS failure talking to address.
func NewConnectionError(operation, address string, err error) *LDAPError {
	ldapErr := NewLDAPError(operation, ErrorCategoryConnection, err)
	if ldapErr != nil && address != "" {
		ldapErr.Message = fmt.Sprintf("%s: %s", address, ldapErr.Message)
	}
	return ldapErr
}

// NewAuthError reports a rejected bind for the given identity.
func NewAuthError(bindDN string, err error) *LDAPError {
	ldapErr := NewLDAPError("bind", ErrorCategoryAuthentication, err)
	if ldapErr != nil {
		ldapErr.DN = bindDN
	}
	return ldapErr
}

// NewSearchError reports a malformed filter or a server-side rejection.
func NewSearchError(baseDN string, err error) *LDAPError {
	ldapErr := NewLDAPError("search", ErrorCategorySearch, err)
	if ldapErr != nil {
		ldapErr.DN = baseDN
	}
	return ldapErr
}

// classifyBindError separates transport failures during bind from rejections.
func classifyBindError(address, bindDN string, err error) *LDAPError {
	if isNetworkError(err) {
		return NewConnectionError("bind", address, err)
	}
	return NewAuthError(bindDN, err)
}

// classifySearchError separates transport failures during search from
// filter and server-side errors.
func classifySearchError(address, baseDN string, err error) *LDAPError {
	if isNetworkError(err) {
		return NewConnectionError("search", address, err)
	}
	return NewSearchError(baseDN, err)
}

func isNetworkError(err error) bool {
	return ldap.IsErrorWithCode(err, ldap.ErrorNetwork) ||
		ldap.IsErrorWithCode(err, ldap.LDAPResultServerDown) ||
		ldap.IsErrorWithCode(err, ldap.LDAPResultConnectError) ||
		ldap.IsErrorWithCode(err, ldap.LDAPResultUnavailable)
}

// resultCodeMessage returns go-ldap's description of an LDAP result code.
func resultCodeMessage(code uint16) string {
	if msg, ok := ldap.LDAPResultCodeMap[code]; ok {
		return msg
	}
	return fmt.Sprintf("Unknown LDAP error (code %d)", code)
}

// GetErrorCategory returns the category of an error, looking through wrapping.
func GetErrorCategory(err error) ErrorCategory {
	var ldapErr *LDAPError
	if errors.As(err, &ldapErr) {
		return ldapErr.GetCategory()
	}
	return ErrorCategoryUnknown
}

// IsConfigError checks if an error reports a missing or invalid option.
func IsConfigError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryConfig
}

// IsConnectionError checks if an error reports a network or TLS failure.
func IsConnectionError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryConnection
}

// IsAuthError checks if an error reports a rejected bind.
func IsAuthError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryAuthentication
}

// IsSearchError checks if an error reports a malformed filter or a rejected query.
func IsSearchError(err error) bool {
	return GetErrorCategory(err) == ErrorCategorySearch
}
