// internal/common/auth/identity.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kalikascan-admin/internal/common/config"
	"kalikascan-admin/internal/common/errors"
	commonhttp "kalikascan-admin/internal/common/http"
)

// IdentityClient provides methods to interact with the identity provider for
// token verification and user management.
type IdentityClient struct {
	baseURL    string
	project    string
	serviceKey string
	httpClient *commonhttp.Client
}

// Principal is the verified caller identity attached to a request.
type Principal struct {
	UID        string `json:"uid"`
	Email      string `json:"email,omitempty"`
	Admin      bool   `json:"admin"`
	SuperAdmin bool   `json:"superAdmin"`
}

// verifyResponse holds the response from the token verification endpoint.
type verifyResponse struct {
	Active bool   `json:"active"`
	UID    string `json:"uid"`
	Email  string `json:"email"`
	Exp    int64  `json:"exp"`
	Claims struct {
		Admin      bool `json:"admin"`
		SuperAdmin bool `json:"superAdmin"`
	} `json:"claims"`
}

// IdentityUser represents a user account at the identity provider.
type IdentityUser struct {
	UID         string `json:"uid,omitempty"`
	Email       string `json:"email"`
	Password    string `json:"password,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Disabled    bool   `json:"disabled"`
}

// NewIdentityClient creates a new instance of IdentityClient.
func NewIdentityClient(cfg config.AuthConfig) *IdentityClient {
	timeout := time.Duration(cfg.Identity.VerifyTimeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &IdentityClient{
		baseURL:    strings.TrimSuffix(cfg.Identity.URL, "/"),
		project:    cfg.Identity.Project,
		serviceKey: cfg.Identity.ServiceKey,
		httpClient: commonhttp.NewClient(timeout),
	}
}

// ExtractBearerToken pulls the token out of an Authorization header value.
// Returns empty string when the header is missing or not a bearer scheme.
func ExtractBearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// VerifyToken verifies a bearer token with the identity provider and returns
// the caller's Principal. Any failure, including provider outage or timeout,
// is reported as an authentication failure.
func (c *IdentityClient) VerifyToken(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, errors.NewUnauthenticatedError("missing bearer token")
	}

	verifyURL := fmt.Sprintf("%s/v1/projects/%s/tokens:verify", c.baseURL, c.project)

	payload, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return nil, errors.NewUnauthenticatedError("failed to build verification request")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", verifyURL, strings.NewReader(string(payload)))
	if err != nil {
		return nil, errors.NewUnauthenticatedError("failed to build verification request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewUnauthenticatedError("token verification unavailable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewUnauthenticatedError(fmt.Sprintf("token verification returned status %d", resp.StatusCode))
	}

	var verify verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&verify); err != nil {
		return nil, errors.NewUnauthenticatedError("failed to decode verification response")
	}

	if !verify.Active || verify.UID == "" {
		return nil, errors.NewUnauthenticatedError("token is expired, revoked, or malformed")
	}
	if verify.Exp > 0 && time.Unix(verify.Exp, 0).Before(time.Now()) {
		return nil, errors.NewUnauthenticatedError("token is expired")
	}

	return &Principal{
		UID:        verify.UID,
		Email:      verify.Email,
		Admin:      verify.Claims.Admin,
		SuperAdmin: verify.Claims.SuperAdmin,
	}, nil
}

// RequireAdmin verifies the Authorization header and checks the admin claim.
// The Forbidden outcome is only reachable after authentication succeeds.
func (c *IdentityClient) RequireAdmin(ctx context.Context, authorizationHeader string) (*Principal, error) {
	token := ExtractBearerToken(authorizationHeader)
	principal, err := c.VerifyToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !principal.Admin {
		return nil, errors.NewForbiddenError("admin")
	}
	return principal, nil
}

// CreateUser creates a new account at the identity provider.
func (c *IdentityClient) CreateUser(ctx context.Context, user *IdentityUser) (*IdentityUser, error) {
	userURL := fmt.Sprintf("%s/v1/projects/%s/users", c.baseURL, c.project)

	jsonData, err := json.Marshal(user)
	if err != nil {
		return nil, &errors.StandardError{
			Code:      "SERIALIZATION_ERROR",
			Message:   "Failed to serialize user data",
			Details:   err.Error(),
			Retryable: false,
			Timestamp: time.Now().UTC(),
		}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", userURL, strings.NewReader(string(jsonData)))
	if err != nil {
		return nil, &errors.StandardError{
			Code:      "HTTP_REQUEST_ERROR",
			Message:   "Failed to create HTTP request",
			Details:   err.Error(),
			Retryable: false,
			Timestamp: time.Now().UTC(),
		}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &errors.StandardError{
			Code:      "NETWORK_ERROR",
			Message:   "Failed to send request to identity provider",
			Details:   err.Error(),
			Retryable: true,
			Timestamp: time.Now().UTC(),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errors.StandardError{
			Code:      "IO_ERROR",
			Message:   "Failed to read identity provider response",
			Details:   err.Error(),
			Retryable: true,
			Timestamp: time.Now().UTC(),
		}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &errors.StandardError{
			Code:      "IDENTITY_API_ERROR",
			Message:   "Identity provider error during user creation",
			Details:   string(body),
			Retryable: isTransientHTTPError(resp.StatusCode),
			Timestamp: time.Now().UTC(),
		}
	}

	var created IdentityUser
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, &errors.StandardError{
			Code:      "DESERIALIZATION_ERROR",
			Message:   "Failed to decode created user",
			Details:   err.Error(),
			Retryable: false,
			Timestamp: time.Now().UTC(),
		}
	}
	created.Password = ""

	return &created, nil
}

// SetDisabled enables or disables sign-in for an account.
func (c *IdentityClient) SetDisabled(ctx context.Context, uid string, disabled bool) error {
	return c.patchUser(ctx, uid, map[string]interface{}{"disabled": disabled})
}

// SetAdminClaim grants or revokes the admin claim on an account.
func (c *IdentityClient) SetAdminClaim(ctx context.Context, uid string, admin bool) error {
	return c.patchUser(ctx, uid, map[string]interface{}{
		"customClaims": map[string]interface{}{"admin": admin},
	})
}

func (c *IdentityClient) patchUser(ctx context.Context, uid string, patch map[string]interface{}) error {
	userURL := fmt.Sprintf("%s/v1/projects/%s/users/%s", c.baseURL, c.project, uid)

	jsonData, err := json.Marshal(patch)
	if err != nil {
		return &errors.StandardError{
			Code:      "SERIALIZATION_ERROR",
			Message:   "Failed to serialize user patch",
			Details:   err.Error(),
			Retryable: false,
			Timestamp: time.Now().UTC(),
		}
	}

	req, err := http.NewRequestWithContext(ctx, "PATCH", userURL, strings.NewReader(string(jsonData)))
	if err != nil {
		return &errors.StandardError{
			Code:      "HTTP_REQUEST_ERROR",
			Message:   "Failed to create HTTP request",
			Details:   err.Error(),
			Retryable: false,
			Timestamp: time.Now().UTC(),
		}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &errors.StandardError{
			Code:      "NETWORK_ERROR",
			Message:   "Failed to send request to identity provider",
			Details:   err.Error(),
			Retryable: true,
			Timestamp: time.Now().UTC(),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errors.NewNotFoundError("user", uid)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return &errors.StandardError{
			Code:      "IDENTITY_API_ERROR",
			Message:   "Identity provider error during user update",
			Details:   string(body),
			Retryable: isTransientHTTPError(resp.StatusCode),
			Timestamp: time.Now().UTC(),
		}
	}

	return nil
}

// isTransientHTTPError returns true if the HTTP status code indicates a potentially transient error.
func isTransientHTTPError(statusCode int) bool {
	switch statusCode {
	case http.StatusInternalServerError, // 500
		http.StatusBadGateway,         // 502
		http.StatusServiceUnavailable, // 503
		http.StatusGatewayTimeout:     // 504
		return true
	default:
		return false
	}
}
