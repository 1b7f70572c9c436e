package auth

// Auth types attached to requests.
const (
	AuthTypeAPIKey = "api-key"
	AuthTypeJWT    = "jwt"
)

// Identity is the request-scoped result of a successful authentication. It is
// attached to the request context by the guard and read by handlers; it is
// never persisted.
type Identity struct {
	OrganizationID string `json:"organizationId,omitempty"`
	UserID         string `json:"userId,omitempty"`
	UserEmail      string `json:"userEmail,omitempty"`
	AuthType       string `json:"authType"`
	IsAPIKey       bool   `json:"isApiKey"`
}
