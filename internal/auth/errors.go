package auth

import "fmt"

// Error classifies an authentication failure. Every class maps to HTTP 401;
// the message is the only part a caller can distinguish. Messages are written
// for operators and legitimate clients, never leaking which stored credential
// almost matched.
type Error struct {
	Kind    ErrorKind
	Message string
	// Err carries the underlying cause for logging. It is never serialized
	// into the HTTP response.
	Err error
}

// ErrorKind enumerates the authentication failure classes.
type ErrorKind int

const (
	// KindConfiguration means the service itself is misconfigured (missing
	// issuer URL). Logged at error level at startup and per request.
	KindConfiguration ErrorKind = iota
	// KindCredentialMissing means neither credential header was present.
	KindCredentialMissing
	// KindCredentialInvalid covers a non-matching or expired API key and any
	// JWT signature/claims failure. Deliberately does not say which.
	KindCredentialInvalid
	// KindIdentityProviderUnreachable means the JWKS endpoint could not be
	// fetched.
	KindIdentityProviderUnreachable
	// KindOrganizationContextMissing means the JWT path was taken without an
	// X-Organization-Id header where the guard requires one.
	KindOrganizationContextMissing
	// KindOrganizationAccessDenied means the authenticated user holds no
	// active membership in the named organization.
	KindOrganizationAccessDenied
)

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// The guard's rejection messages. MsgAuthRequired is load-bearing: clients
// match on it, so it must not change.
const (
	MsgAuthRequired      = "Authentication required: Provide either X-API-Key or Bearer JWT token"
	MsgInvalidAPIKey     = "Invalid API key"
	MsgInvalidToken      = "Invalid or expired token. Please re-authenticate."
	MsgIdPUnreachable    = "Unable to reach identity provider. Check issuer URL configuration and connectivity."
	MsgConfiguration     = "Authentication is not configured: issuer URL is missing"
	MsgOrgHeaderRequired = "X-Organization-Id header is required"
)

// ErrAuthRequired is returned when a request carries no credential at all.
func ErrAuthRequired() *Error {
	return &Error{Kind: KindCredentialMissing, Message: MsgAuthRequired}
}

// ErrInvalidAPIKey is returned for a non-matching or expired API key. Both
// cases share one message so a caller cannot probe which keys exist.
func ErrInvalidAPIKey() *Error {
	return &Error{Kind: KindCredentialInvalid, Message: MsgInvalidAPIKey}
}

// ErrInvalidToken is returned for any JWT verification failure, including the
// exhausted key-rotation retry.
func ErrInvalidToken(cause error) *Error {
	return &Error{Kind: KindCredentialInvalid, Message: MsgInvalidToken, Err: cause}
}

// ErrIdPUnreachable is returned when the JWKS endpoint cannot be reached.
func ErrIdPUnreachable(cause error) *Error {
	return &Error{Kind: KindIdentityProviderUnreachable, Message: MsgIdPUnreachable, Err: cause}
}

// ErrConfiguration is returned when the issuer URL is not configured.
func ErrConfiguration() *Error {
	return &Error{Kind: KindConfiguration, Message: MsgConfiguration}
}

// ErrOrgHeaderRequired is returned by the hybrid guard's JWT path when the
// X-Organization-Id header is absent.
func ErrOrgHeaderRequired() *Error {
	return &Error{Kind: KindOrganizationContextMissing, Message: MsgOrgHeaderRequired}
}

// ErrOrgAccessDenied is returned when the user has no active membership in the
// organization. The organization id is included for operator debuggability;
// the caller already supplied it, so echoing it back leaks nothing.
func ErrOrgAccessDenied(orgID string) *Error {
	return &Error{
		Kind:    KindOrganizationAccessDenied,
		Message: fmt.Sprintf("You do not have access to organization %s", orgID),
	}
}
