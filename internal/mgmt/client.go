package mgmt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

var (
	ErrUnavailable = errors.New("management api unavailable")
	ErrNotFound    = errors.New("management resource not found")
	ErrRejected    = errors.New("management request rejected")
)

const defaultTimeout = 5 * time.Second

// TokenProvider supplies a management API access token per request.
type TokenProvider func(ctx context.Context) (string, error)

// Identity is one federated identity attached to a user record.
type Identity struct {
	Provider   string `json:"provider"`
	UserID     string `json:"user_id"`
	Connection string `json:"connection"`
	IsSocial   bool   `json:"isSocial"`
}

// User is the subset of the management user record the actions read.
type User struct {
	UserID        string         `json:"user_id"`
	Email         string         `json:"email"`
	EmailVerified bool           `json:"email_verified"`
	Identities    []Identity     `json:"identities"`
	AppMetadata   map[string]any `json:"app_metadata"`
}

// DeviceCredential is one registered credential (public key, refresh token
// binding, passkey) on a user.
type DeviceCredential struct {
	ID         string `json:"id"`
	DeviceName string `json:"device_name"`
	Type       string `json:"type"`
}

// Client talks to https://<domain>/api/v2.
type Client struct {
	domain string
	http   *http.Client
	token  TokenProvider
}

func New(domain string, httpClient *http.Client, token TokenProvider) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		domain: domain,
		http:   httpClient,
		token:  token,
	}
}

func (c *Client) url(path string) string {
	return "https://" + c.domain + "/api/v2" + path
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode body: %v", ErrRejected, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}

// GetUser fetches one user by id.
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateAppMetadata patches app_metadata on a user.
func (c *Client) UpdateAppMetadata(ctx context.Context, userID string, metadata map[string]any) error {
	body := map[string]any{"app_metadata": metadata}
	return c.do(ctx, http.MethodPatch, "/users/"+url.PathEscape(userID), body, nil)
}

// MarkEmailVerified flips email_verified on a user record.
func (c *Client) MarkEmailVerified(ctx context.Context, userID string) error {
	body := map[string]any{"email_verified": true}
	return c.do(ctx, http.MethodPatch, "/users/"+url.PathEscape(userID), body, nil)
}

// DeleteUser removes a user record.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(userID), nil, nil)
}

// LinkIdentity attaches the identity named by provider and secondaryUserID to
// the primary user. The secondary identity stops being a standalone login.
func (c *Client) LinkIdentity(ctx context.Context, primaryUserID, provider, secondaryUserID string) error {
	body := map[string]string{
		"provider": provider,
		"user_id":  secondaryUserID,
	}
	return c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(primaryUserID)+"/identities", body, nil)
}

// UnlinkIdentity detaches an identity from the primary user.
func (c *Client) UnlinkIdentity(ctx context.Context, primaryUserID, provider, secondaryUserID string) error {
	path := "/users/" + url.PathEscape(primaryUserID) + "/identities/" + url.PathEscape(provider) + "/" + url.PathEscape(secondaryUserID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// UsersByEmail lists every user carrying the given email.
func (c *Client) UsersByEmail(ctx context.Context, email string) ([]User, error) {
	var users []User
	path := "/users-by-email?email=" + url.QueryEscape(email)
	if err := c.do(ctx, http.MethodGet, path, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ListDeviceCredentials returns the registered credentials for a user.
func (c *Client) ListDeviceCredentials(ctx context.Context, userID string) ([]DeviceCredential, error) {
	var creds []DeviceCredential
	path := "/device-credentials?user_id=" + url.QueryEscape(userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &creds); err != nil {
		return nil, err
	}
	return creds, nil
}

// DeleteDeviceCredential revokes one registered credential.
func (c *Client) DeleteDeviceCredential(ctx context.Context, credentialID string) error {
	return c.do(ctx, http.MethodDelete, "/device-credentials/"+url.PathEscape(credentialID), nil, nil)
}
