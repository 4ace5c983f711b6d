package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"identity-service/internal/apperr"
	"identity-service/internal/auth"
	"identity-service/internal/guardian"
	"identity-service/internal/model"
	"identity-service/internal/storage"
	"identity-service/internal/store"
)

const testSecret = "test-secret"

// --- fakes ---

type fakeCompanyStore struct {
	companies map[string]*model.Company
}

func (f *fakeCompanyStore) GetByID(_ context.Context, id string) (*model.Company, error) {
	c, ok := f.companies[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeCompanyStore) List(_ context.Context) ([]*model.Company, error) {
	out := []*model.Company{}
	for _, c := range f.companies {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCompanyStore) Create(_ context.Context, c *model.Company) error {
	if c.ID == "" {
		c.ID = fmt.Sprintf("company-%d", len(f.companies)+1)
	}
	f.companies[c.ID] = c
	return nil
}

func (f *fakeCompanyStore) Update(_ context.Context, c *model.Company) error {
	if _, ok := f.companies[c.ID]; !ok {
		return store.ErrNotFound
	}
	f.companies[c.ID] = c
	return nil
}

func (f *fakeCompanyStore) Delete(_ context.Context, id string) error {
	if _, ok := f.companies[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.companies, id)
	return nil
}

func (f *fakeCompanyStore) SetLogo(_ context.Context, id string, fileID *string) error {
	c, ok := f.companies[id]
	if !ok {
		return store.ErrNotFound
	}
	c.LogoFileID = fileID
	return nil
}

type fakeCustomerStore struct {
	customers map[string]*model.Customer
	taken     map[string]bool // emails treated as unique
}

func (f *fakeCustomerStore) GetByID(_ context.Context, id string) (*model.Customer, error) {
	c, ok := f.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeCustomerStore) ListByCompany(_ context.Context, companyID string) ([]*model.Customer, error) {
	out := []*model.Customer{}
	for _, c := range f.customers {
		if c.CompanyID == companyID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCustomerStore) Create(_ context.Context, c *model.Customer) error {
	if c.Email != nil && f.taken[*c.Email] {
		return store.ErrAlreadyExists
	}
	if c.ID == "" {
		c.ID = fmt.Sprintf("customer-%d", len(f.customers)+1)
	}
	f.customers[c.ID] = c
	return nil
}

func (f *fakeCustomerStore) Update(_ context.Context, c *model.Customer) error {
	if _, ok := f.customers[c.ID]; !ok {
		return store.ErrNotFound
	}
	f.customers[c.ID] = c
	return nil
}

func (f *fakeCustomerStore) Delete(_ context.Context, id string) error {
	if _, ok := f.customers[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.customers, id)
	return nil
}

func (f *fakeCustomerStore) SetLogo(_ context.Context, id string, fileID *string) error {
	c, ok := f.customers[id]
	if !ok {
		return store.ErrNotFound
	}
	c.LogoFileID = fileID
	return nil
}

type fakeUserStore struct {
	users map[string]*model.User
	taken map[string]bool
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) ListByCompany(_ context.Context, companyID string) ([]*model.User, error) {
	out := []*model.User{}
	for _, u := range f.users {
		if u.CompanyID == companyID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserStore) Create(_ context.Context, u *model.User) error {
	if f.taken[u.Email] {
		return store.ErrAlreadyExists
	}
	if u.ID == "" {
		u.ID = fmt.Sprintf("user-%d", len(f.users)+1)
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserStore) Update(_ context.Context, u *model.User) error {
	if _, ok := f.users[u.ID]; !ok {
		return store.ErrNotFound
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserStore) Delete(_ context.Context, id string) error {
	if _, ok := f.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUserStore) SetAvatar(_ context.Context, id string, fileID *string) error {
	u, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.AvatarFileID = fileID
	return nil
}

// fakeAttachmentStore stands in for the Storage Service client. Upload calls
// are counted so tests can assert local rejections never reach it.
type fakeAttachmentStore struct {
	enabled  bool
	maxBytes int64
	objects  map[string][]byte // keyed by file id
	uploads  int
	deletes  int
	failNext error
}

func attachmentKey(kind storage.OwnerKind, ownerID string) string {
	return "f-" + string(kind) + "-" + ownerID
}

func (f *fakeAttachmentStore) Enabled() bool   { return f.enabled }
func (f *fakeAttachmentStore) MaxBytes() int64 { return f.maxBytes }

func (f *fakeAttachmentStore) Upload(_ context.Context, kind storage.OwnerKind, ownerID, _, _ string, data []byte, _ string) (string, error) {
	f.uploads++
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return "", err
	}
	id := attachmentKey(kind, ownerID)
	f.objects[id] = data
	return id, nil
}

func (f *fakeAttachmentStore) Download(_ context.Context, kind storage.OwnerKind, ownerID, _ string) ([]byte, string, error) {
	data, ok := f.objects[attachmentKey(kind, ownerID)]
	if !ok {
		return nil, "", storage.ErrNotFound
	}
	return data, "image/png", nil
}

func (f *fakeAttachmentStore) Metadata(_ context.Context, kind storage.OwnerKind, ownerID string, _ bool, _ string) (map[string]any, error) {
	if _, ok := f.objects[attachmentKey(kind, ownerID)]; !ok {
		return nil, storage.ErrNotFound
	}
	return map[string]any{"file_id": attachmentKey(kind, ownerID)}, nil
}

func (f *fakeAttachmentStore) Delete(_ context.Context, fileID, _ string) error {
	f.deletes++
	delete(f.objects, fileID)
	return nil
}

type fakeGuardian struct {
	roles       []guardian.Record
	permissions []guardian.Record
	policies    []guardian.Record
	err         error
	assigned    map[string][]string // userID -> roleIDs
}

func (f *fakeGuardian) ListRoles(_ context.Context, _, _ string) ([]guardian.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.roles, nil
}

func (f *fakeGuardian) ListPermissions(_ context.Context, _, _ string) ([]guardian.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.permissions, nil
}

func (f *fakeGuardian) ListPolicies(_ context.Context, _, _ string) ([]guardian.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.policies, nil
}

func (f *fakeGuardian) AssignRole(_ context.Context, userID, roleID, _ string) (guardian.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, r := range f.assigned[userID] {
		if r == roleID {
			return nil, guardian.ErrConflict
		}
	}
	f.assigned[userID] = append(f.assigned[userID], roleID)
	return guardian.Record{"user_id": userID, "role_id": roleID}, nil
}

func (f *fakeGuardian) GetRole(_ context.Context, roleID, _ string) (guardian.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	if roleID == "missing" {
		return nil, guardian.ErrNotFound
	}
	return guardian.Record{"id": roleID}, nil
}

func (f *fakeGuardian) RevokeRole(_ context.Context, userID, roleID, _ string) error {
	if f.err != nil {
		return f.err
	}
	for i, r := range f.assigned[userID] {
		if r == roleID {
			f.assigned[userID] = append(f.assigned[userID][:i], f.assigned[userID][i+1:]...)
			return nil
		}
	}
	return guardian.ErrNotFound
}

// --- test app wiring ---

type testEnv struct {
	app       *fiber.App
	companies *fakeCompanyStore
	customers *fakeCustomerStore
	users     *fakeUserStore
	files     *fakeAttachmentStore
	guardian  *fakeGuardian
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		companies: &fakeCompanyStore{companies: map[string]*model.Company{
			"c1": {ID: "c1", Name: "Acme"},
			"c2": {ID: "c2", Name: "Globex"},
		}},
		customers: &fakeCustomerStore{
			customers: map[string]*model.Customer{
				"cust1": {ID: "cust1", CompanyID: "c1", Name: "First"},
				"cust2": {ID: "cust2", CompanyID: "c2", Name: "Other"},
			},
			taken: map[string]bool{"dup@example.com": true},
		},
		users: &fakeUserStore{
			users: map[string]*model.User{
				"u1": {ID: "u1", CompanyID: "c1", Email: "u1@example.com", IsActive: true},
				"u2": {ID: "u2", CompanyID: "c2", Email: "u2@example.com", IsActive: true},
			},
			taken: map[string]bool{"dup@example.com": true},
		},
		files: &fakeAttachmentStore{
			enabled:  true,
			maxBytes: 64,
			objects:  map[string][]byte{},
		},
		guardian: &fakeGuardian{assigned: map[string][]string{}},
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var appErr *apperr.AppError
			if errors.As(err, &appErr) {
				return c.Status(appErr.Status).JSON(apperr.ErrorResponse{Error: appErr})
			}
			return c.Status(500).JSON(apperr.ErrorResponse{
				Error: &apperr.AppError{Code: "INTERNAL_ERROR", Status: 500, Message: err.Error()},
			})
		},
	})

	log := zap.NewNop()
	attachments := NewAttachments(env.files, log)
	RegisterRoutes(app, Handlers{
		Companies: NewCompanyHandler(env.companies, attachments, log),
		Customers: NewCustomerHandler(env.customers, attachments, log),
		Users:     NewUserHandler(env.users, attachments, log),
		Roles:     NewRoleHandler(env.users, env.guardian, log),
	}, auth.Middleware(testSecret))

	env.app = app
	return env
}

// request performs an authenticated request as a user of company companyID.
// An empty companyID sends the request without a token.
func (e *testEnv) request(t *testing.T, method, path, companyID string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if companyID != "" {
		token, err := auth.GenerateAccessToken("caller", companyID, testSecret)
		if err != nil {
			t.Fatalf("generate token: %v", err)
		}
		req.AddCookie(&http.Cookie{Name: auth.AccessTokenCookie, Value: token})
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func (e *testEnv) getJSON(t *testing.T, path, companyID string) *http.Response {
	return e.request(t, "GET", path, companyID, nil, "")
}

func (e *testEnv) postJSON(t *testing.T, path, companyID, body string) *http.Response {
	return e.request(t, "POST", path, companyID, bytes.NewReader([]byte(body)), "application/json")
}

func (e *testEnv) putJSON(t *testing.T, path, companyID, body string) *http.Response {
	return e.request(t, "PUT", path, companyID, bytes.NewReader([]byte(body)), "application/json")
}

func (e *testEnv) del(t *testing.T, path, companyID string) *http.Response {
	return e.request(t, "DELETE", path, companyID, nil, "")
}

// multipartFile builds a multipart body with a single file part.
func multipartFile(t *testing.T, field, filename string, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func decodeError(t *testing.T, resp *http.Response) *apperr.AppError {
	t.Helper()
	body, _ := io.ReadAll(resp.Body)
	var errResp apperr.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		t.Fatalf("parse error response %q: %v", body, err)
	}
	if errResp.Error == nil {
		t.Fatalf("response has no error envelope: %s", body)
	}
	return errResp.Error
}
