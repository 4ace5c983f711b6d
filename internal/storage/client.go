// Package storage wraps the external Storage Service, which holds versioned
// binary attachments (logos, avatars). Attachments live at a stable logical
// path per owner; re-uploading creates a new version server-side and keeps
// the same file id, so the owning entity's reference never changes across a
// replace.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
)

// accessTokenCookie is the identity API's auth cookie, forwarded on every
// Storage Service call.
const accessTokenCookie = "access_token"

// ErrDisabled is returned by Upload when the Storage Service is turned off.
// Download and Delete intentionally report absence instead, so callers that
// only check "has attachment" see a missing file, not internal wiring.
var ErrDisabled = errors.New("Storage Service disabled")

// ErrNotFound is returned when the requested attachment does not exist.
var ErrNotFound = errors.New("attachment not found")

// ValidationError rejects an attachment before any network call.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// ServiceError indicates the Storage Service failed or answered with a shape
// the client does not recognize.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// OwnerKind selects the bucket namespace. Distinct kinds never collide even
// when owner ids coincide.
type OwnerKind string

const (
	OwnerUsers     OwnerKind = "users"
	OwnerCompanies OwnerKind = "companies"
	OwnerCustomers OwnerKind = "customers"
)

// pathPrefix returns the logical-path directory for the owner kind.
func (k OwnerKind) pathPrefix() string {
	if k == OwnerUsers {
		return "avatars"
	}
	return "logos"
}

type Config struct {
	Enabled  bool
	BaseURL  string
	Timeout  time.Duration
	MaxBytes int64
}

type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

func (c *Client) Enabled() bool { return c.cfg.Enabled }

// MaxBytes returns the configured upload size limit.
func (c *Client) MaxBytes() int64 { return c.cfg.MaxBytes }

// LogicalPath returns the stable path an owner's attachment lives at. The
// extension is normalized; the true format travels in the Content-Type the
// Storage Service returns on download.
func LogicalPath(kind OwnerKind, ownerID string) string {
	if kind == OwnerUsers {
		return fmt.Sprintf("avatars/%s.jpg", ownerID)
	}
	return fmt.Sprintf("logos/%s.png", ownerID)
}

// Validate rejects empty or oversized attachments locally, before the remote
// service is ever contacted.
func (c *Client) Validate(data []byte) error {
	if len(data) == 0 {
		return &ValidationError{msg: "Attachment file is empty"}
	}
	if c.cfg.MaxBytes > 0 && int64(len(data)) > c.cfg.MaxBytes {
		return &ValidationError{msg: fmt.Sprintf(
			"Attachment too large: %d bytes (max %d)", len(data), c.cfg.MaxBytes)}
	}
	return nil
}

// Upload stores an attachment for the owner and returns its file id.
// Re-uploading for the same owner returns the same file id; the Storage
// Service tracks a new version internally.
func (c *Client) Upload(ctx context.Context, kind OwnerKind, ownerID, filename, contentType string, data []byte, token string) (string, error) {
	if !c.cfg.Enabled {
		return "", ErrDisabled
	}
	if err := c.Validate(data); err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if filename == "" {
		filename = path.Base(LogicalPath(kind, ownerID))
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("bucket_type", string(kind)); err != nil {
		return "", fmt.Errorf("write form field: %w", err)
	}
	if err := w.WriteField("bucket_id", ownerID); err != nil {
		return "", fmt.Errorf("write form field: %w", err)
	}
	if err := w.WriteField("logical_path", LogicalPath(kind, ownerID)); err != nil {
		return "", fmt.Errorf("write form field: %w", err)
	}
	part, err := createFilePart(w, filename, contentType)
	if err != nil {
		return "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/upload/proxy", &buf)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	forwardToken(req, token)

	c.log.Info("uploading attachment",
		zap.String("bucket", string(kind)),
		zap.String("owner_id", ownerID),
		zap.Int("bytes", len(data)))

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("storage upload failed", zap.String("owner_id", ownerID), zap.Error(err))
		return "", &ServiceError{Op: "upload", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.log.Error("storage upload returned error",
			zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return "", &ServiceError{Op: "upload", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	fileID, err := extractFileID(body)
	if err != nil {
		return "", &ServiceError{Op: "upload", Err: err}
	}
	return fileID, nil
}

// extractFileID reads file_id from the response root or from a data wrapper.
func extractFileID(body []byte) (string, error) {
	var result struct {
		FileID string `json:"file_id"`
		Data   struct {
			FileID string `json:"file_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if result.FileID != "" {
		return result.FileID, nil
	}
	if result.Data.FileID != "" {
		return result.Data.FileID, nil
	}
	return "", fmt.Errorf("upload response missing file_id")
}

// Download fetches the latest version of the owner's attachment. A disabled
// Storage Service looks like absence.
func (c *Client) Download(ctx context.Context, kind OwnerKind, ownerID, token string) ([]byte, string, error) {
	if !c.cfg.Enabled {
		return nil, "", ErrNotFound
	}

	q := url.Values{}
	q.Set("bucket_type", string(kind))
	q.Set("bucket_id", ownerID)
	q.Set("logical_path", LogicalPath(kind, ownerID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/download/proxy?"+q.Encode(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("build download request: %w", err)
	}
	forwardToken(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("storage download failed", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, "", &ServiceError{Op: "download", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, "", ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.log.Error("storage download returned error",
			zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return nil, "", &ServiceError{Op: "download", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &ServiceError{Op: "download", Err: err}
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

// Metadata fetches the attachment's metadata, optionally with its full
// version history.
func (c *Client) Metadata(ctx context.Context, kind OwnerKind, ownerID string, includeVersions bool, token string) (map[string]any, error) {
	if !c.cfg.Enabled {
		return nil, ErrNotFound
	}

	q := url.Values{}
	q.Set("bucket", string(kind))
	q.Set("id", ownerID)
	q.Set("logical_path", LogicalPath(kind, ownerID))
	if includeVersions {
		q.Set("include_versions", "true")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/metadata?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build metadata request: %w", err)
	}
	forwardToken(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ServiceError{Op: "metadata", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, &ServiceError{Op: "metadata", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var meta map[string]any
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, &ServiceError{Op: "metadata", Err: err}
	}
	return meta, nil
}

// Delete asks the Storage Service to remove the object. An already-absent
// object (404) counts as success so the operation is idempotent.
func (c *Client) Delete(ctx context.Context, fileID, token string) error {
	if !c.cfg.Enabled {
		return ErrDisabled
	}
	if fileID == "" {
		return nil
	}

	payload, err := json.Marshal(map[string]any{"file_id": fileID, "physical": true})
	if err != nil {
		return fmt.Errorf("marshal delete payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.cfg.BaseURL+"/delete", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	forwardToken(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("storage delete failed", zap.String("file_id", fileID), zap.Error(err))
		return &ServiceError{Op: "delete", Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		body, _ := io.ReadAll(resp.Body)
		c.log.Warn("storage delete returned error",
			zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return &ServiceError{Op: "delete", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
}

// createFilePart writes a form file part with an explicit content type, which
// mime/multipart's CreateFormFile does not allow.
func createFilePart(w *multipart.Writer, filename, contentType string) (io.Writer, error) {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(
		`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	h.Set("Content-Type", contentType)
	return w.CreatePart(h)
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

func forwardToken(req *http.Request, token string) {
	if token != "" {
		req.AddCookie(&http.Cookie{Name: accessTokenCookie, Value: token})
	}
}
