// Package guardian wraps the external Guardian Service, which owns role,
// permission and policy data. The client can run disabled: listing operations
// then degrade to empty results so the rest of the service keeps functioning,
// while operations that need an authoritative answer fail loudly.
package guardian

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

	"go.uber.org/zap"
)

// accessTokenCookie matches the cookie the identity API authenticates with;
// the same token is forwarded so Guardian sees the caller's identity.
const accessTokenCookie = "access_token"

// ErrDisabled is returned by operations that cannot be served without a
// running Guardian Service.
var ErrDisabled = errors.New("Guardian Service is disabled")

// ErrNotFound is returned when Guardian reports the role does not exist.
var ErrNotFound = errors.New("role not found")

// ErrConflict is returned when Guardian reports the role is already assigned.
var ErrConflict = errors.New("role already assigned")

// FetchError indicates no authoritative answer could be obtained from an
// enabled Guardian: network failure, non-200 status, or a response shape the
// client does not recognize. It is distinct from a legitimately empty list.
type FetchError struct {
	Resource string
	Err      error
}

func (e *FetchError) Error() string {
	return "Error fetching " + e.Resource
}

func (e *FetchError) Unwrap() error { return e.Err }

// Record is an opaque Guardian payload, passed through uninterpreted.
type Record = map[string]any

type Config struct {
	Enabled bool
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

// New creates a Guardian client. The enabled/disabled mode is fixed for the
// client's lifetime.
func New(cfg Config, log *zap.Logger) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

// Enabled reports whether the client talks to a real Guardian Service.
func (c *Client) Enabled() bool { return c.cfg.Enabled }

// ListRoles returns all roles assigned to the user. Disabled mode yields an
// empty list, not an error.
func (c *Client) ListRoles(ctx context.Context, userID, token string) ([]Record, error) {
	return c.list(ctx, "/user-roles", "roles", userID, token)
}

// ListPermissions returns the user's effective permissions.
func (c *Client) ListPermissions(ctx context.Context, userID, token string) ([]Record, error) {
	return c.list(ctx, "/user-permissions", "permissions", userID, token)
}

// ListPolicies returns the policies attached to the user's roles.
func (c *Client) ListPolicies(ctx context.Context, userID, token string) ([]Record, error) {
	return c.list(ctx, "/user-policies", "policies", userID, token)
}

func (c *Client) list(ctx context.Context, path, key, userID, token string) ([]Record, error) {
	if !c.cfg.Enabled {
		c.log.Debug("guardian disabled, returning empty list", zap.String("resource", key))
		return []Record{}, nil
	}

	u := fmt.Sprintf("%s%s?user_id=%s", c.cfg.BaseURL, path, url.QueryEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{Resource: key, Err: err}
	}
	forwardToken(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("guardian request failed", zap.String("resource", key), zap.Error(err))
		return nil, &FetchError{Resource: key, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Resource: key, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Error("guardian returned non-200",
			zap.String("resource", key),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return nil, &FetchError{Resource: key, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	records, err := normalize(body, key)
	if err != nil {
		c.log.Warn("unexpected guardian response shape",
			zap.String("resource", key), zap.ByteString("body", body))
		return nil, &FetchError{Resource: key, Err: err}
	}
	return records, nil
}

// normalize accepts the two shapes Guardian is known to emit: a bare array of
// records, or an object wrapping the array under the resource key. Anything
// else is an error, deliberately distinct from an empty list.
func normalize(data []byte, key string) ([]Record, error) {
	var list []Record
	if err := json.Unmarshal(data, &list); err == nil {
		if list == nil {
			list = []Record{}
		}
		return list, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err == nil {
		if raw, ok := obj[key]; ok {
			if err := json.Unmarshal(raw, &list); err == nil {
				if list == nil {
					list = []Record{}
				}
				return list, nil
			}
		}
	}

	return nil, fmt.Errorf("unexpected %s response shape", key)
}

// AssignRole assigns a role to a user. Requires an enabled Guardian.
func (c *Client) AssignRole(ctx context.Context, userID, roleID, token string) (Record, error) {
	if !c.cfg.Enabled {
		return nil, ErrDisabled
	}

	payload, err := json.Marshal(map[string]string{"user_id": userID, "role_id": roleID})
	if err != nil {
		return nil, fmt.Errorf("marshal assign payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/user-roles", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build assign request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	forwardToken(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("guardian assign failed", zap.String("role_id", roleID), zap.Error(err))
		return nil, &FetchError{Resource: "roles", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
	case http.StatusConflict:
		return nil, ErrConflict
	case http.StatusBadRequest:
		return nil, fmt.Errorf("invalid role or request data")
	default:
		c.log.Error("guardian assign returned error",
			zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return nil, &FetchError{Resource: "roles", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var record Record
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, &FetchError{Resource: "roles", Err: err}
	}
	return record, nil
}

// GetRole fetches a single role by id. Requires an enabled Guardian.
func (c *Client) GetRole(ctx context.Context, roleID, token string) (Record, error) {
	if !c.cfg.Enabled {
		return nil, ErrDisabled
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/roles/"+url.PathEscape(roleID), nil)
	if err != nil {
		return nil, fmt.Errorf("build role request: %w", err)
	}
	forwardToken(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("guardian get role failed", zap.String("role_id", roleID), zap.Error(err))
		return nil, &FetchError{Resource: "roles", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		c.log.Error("guardian get role returned error",
			zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return nil, &FetchError{Resource: "roles", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var record Record
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, &FetchError{Resource: "roles", Err: err}
	}
	return record, nil
}

// RevokeRole removes a role assignment from a user. Requires an enabled
// Guardian.
func (c *Client) RevokeRole(ctx context.Context, userID, roleID, token string) error {
	if !c.cfg.Enabled {
		return ErrDisabled
	}

	u := fmt.Sprintf("%s/user-roles/%s?user_id=%s",
		c.cfg.BaseURL, url.PathEscape(roleID), url.QueryEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("build revoke request: %w", err)
	}
	forwardToken(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("guardian revoke failed", zap.String("role_id", roleID), zap.Error(err))
		return &FetchError{Resource: "roles", Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	default:
		body, _ := io.ReadAll(resp.Body)
		c.log.Error("guardian revoke returned error",
			zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return &FetchError{Resource: "roles", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
}

func forwardToken(req *http.Request, token string) {
	if token != "" {
		req.AddCookie(&http.Cookie{Name: accessTokenCookie, Value: token})
	}
}
