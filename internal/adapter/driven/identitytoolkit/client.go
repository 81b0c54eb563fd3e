// Package identitytoolkit implements the identity provider port against the
// Firebase Authentication REST API.
package identitytoolkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/firechat/internal/domain/model"
	"github.com/ericfisherdev/firechat/internal/domain/port/driven"
)

const (
	// DefaultAccountsURL is the identity toolkit accounts endpoint.
	DefaultAccountsURL = "https://identitytoolkit.googleapis.com/v1/"
	// DefaultTokenURL is the secure token endpoint used for refresh.
	DefaultTokenURL = "https://securetoken.googleapis.com/v1/token"
)

// Compile-time interface satisfaction check.
var _ driven.IdentityProvider = (*Client)(nil)

// Codes that mean the email/password pair was rejected.
var invalidLoginCodes = map[string]bool{
	"EMAIL_NOT_FOUND":           true,
	"INVALID_PASSWORD":          true,
	"INVALID_LOGIN_CREDENTIALS": true,
	"INVALID_EMAIL":             true,
	"USER_DISABLED":             true,
}

// APIError is an error response from the identity service. Code is the
// service's error code, e.g. "EMAIL_EXISTS".
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" && e.Message != e.Code {
		return fmt.Sprintf("identity service: %s (%s)", e.Code, e.Message)
	}
	return "identity service: " + e.Code
}

// Is reports rejected credentials as driven.ErrInvalidLogin.
func (e *APIError) Is(target error) bool {
	return target == driven.ErrInvalidLogin && invalidLoginCodes[e.Code]
}

// Client talks to the identity toolkit and secure token endpoints.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	accountsURL string
	tokenURL    string
	now         func() time.Time
}

// NewClient creates a Client against the production endpoints.
func NewClient(apiKey string) *Client {
	return NewClientWithHTTPClient(&http.Client{Timeout: 30 * time.Second}, apiKey, DefaultAccountsURL, DefaultTokenURL)
}

// NewClientWithHTTPClient creates a Client with a custom HTTP client and base
// URLs. Used by tests to point at an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, apiKey, accountsURL, tokenURL string) *Client {
	if !strings.HasSuffix(accountsURL, "/") {
		accountsURL += "/"
	}
	return &Client{
		httpClient:  httpClient,
		apiKey:      apiKey,
		accountsURL: accountsURL,
		tokenURL:    tokenURL,
		now:         time.Now,
	}
}

type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type accountResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type tokenResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

type lookupResponse struct {
	Users []struct {
		LocalID string `json:"localId"`
		Email   string `json:"email"`
	} `json:"users"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignIn authenticates an existing account.
func (c *Client) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	return c.passwordCall(ctx, "accounts:signInWithPassword", email, password)
}

// SignUp creates an account and signs it in.
func (c *Client) SignUp(ctx context.Context, email, password string) (*model.Session, error) {
	return c.passwordCall(ctx, "accounts:signUp", email, password)
}

func (c *Client) passwordCall(ctx context.Context, method, email, password string) (*model.Session, error) {
	body, err := json.Marshal(passwordRequest{Email: email, Password: password, ReturnSecureToken: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling %s request: %w", method, err)
	}

	var resp accountResponse
	if err := c.do(ctx, c.accountsURL+method, "application/json", bytes.NewReader(body), &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	return &model.Session{
		UID:          resp.LocalID,
		Email:        resp.Email,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    c.expiry(resp.ExpiresIn),
	}, nil
}

// Refresh exchanges a refresh token for fresh tokens, then looks up the
// account email, which the token endpoint does not return.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*model.Session, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	var tok tokenResponse
	if err := c.do(ctx, c.tokenURL, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), &tok); err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	body, err := json.Marshal(map[string]string{"idToken": tok.IDToken})
	if err != nil {
		return nil, fmt.Errorf("marshaling lookup request: %w", err)
	}
	var lookup lookupResponse
	if err := c.do(ctx, c.accountsURL+"accounts:lookup", "application/json", bytes.NewReader(body), &lookup); err != nil {
		return nil, fmt.Errorf("accounts:lookup: %w", err)
	}
	if len(lookup.Users) == 0 {
		return nil, fmt.Errorf("accounts:lookup: no user for refreshed token")
	}

	return &model.Session{
		UID:          tok.UserID,
		Email:        lookup.Users[0].Email,
		IDToken:      tok.IDToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    c.expiry(tok.ExpiresIn),
	}, nil
}

func (c *Client) do(ctx context.Context, endpoint, contentType string, body io.Reader, out any) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("parsing endpoint: %w", err)
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// decodeError turns a non-200 response into an *APIError. Service messages
// look like "CODE" or "CODE : detail".
func decodeError(resp *http.Response) error {
	var er errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&er); err != nil || er.Error.Message == "" {
		return &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
	}

	code, detail, _ := strings.Cut(er.Error.Message, " : ")
	apiErr := &APIError{Status: resp.StatusCode, Code: strings.TrimSpace(code), Message: strings.TrimSpace(detail)}
	if apiErr.Message == "" {
		apiErr.Message = apiErr.Code
	}
	return apiErr
}

func (c *Client) expiry(expiresIn string) time.Time {
	secs, err := strconv.Atoi(expiresIn)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return c.now().Add(time.Duration(secs) * time.Second)
}

// IsCode reports whether err is an *APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
