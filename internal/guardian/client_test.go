package guardian

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T, enabled bool, baseURL string) *Client {
	t.Helper()
	return New(Config{
		Enabled: enabled,
		BaseURL: baseURL,
		Timeout: 2 * time.Second,
	}, zap.NewNop())
}

func TestListRoles_DisabledReturnsEmptyList(t *testing.T) {
	c := newTestClient(t, false, "http://guardian.invalid")

	roles, err := c.ListRoles(context.Background(), "u1", "tok")
	if err != nil {
		t.Fatalf("disabled list must not error, got %v", err)
	}
	if roles == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(roles) != 0 {
		t.Fatalf("expected no roles, got %d", len(roles))
	}
}

func TestAssignRole_DisabledErrors(t *testing.T) {
	c := newTestClient(t, false, "http://guardian.invalid")

	_, err := c.AssignRole(context.Background(), "u1", "r1", "tok")
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	if err.Error() != "Guardian Service is disabled" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestGetRole_DisabledErrors(t *testing.T) {
	c := newTestClient(t, false, "http://guardian.invalid")

	if _, err := c.GetRole(context.Background(), "r1", "tok"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestListRoles_BareArrayResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("user_id"); got != "u1" {
			t.Errorf("expected user_id=u1, got %q", got)
		}
		cookie, err := r.Cookie("access_token")
		if err != nil || cookie.Value != "tok" {
			t.Error("expected forwarded access_token cookie")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"r1","name":"admin"},{"id":"r2","name":"viewer"}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, true, srv.URL)
	roles, err := c.ListRoles(context.Background(), "u1", "tok")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("expected 2 roles, got %d", len(roles))
	}
	if roles[0]["name"] != "admin" {
		t.Fatalf("unexpected first role: %v", roles[0])
	}
}

func TestListRoles_WrappedObjectResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"roles":[{"id":"r1"}],"total":1}`))
	}))
	defer srv.Close()

	c := newTestClient(t, true, srv.URL)
	roles, err := c.ListRoles(context.Background(), "u1", "tok")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(roles) != 1 || roles[0]["id"] != "r1" {
		t.Fatalf("unexpected roles: %v", roles)
	}
}

// A shape the client does not recognize must surface as a fetch error, not be
// silently coerced into an empty list.
func TestListRoles_UnexpectedShapeErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"unexpected":"shape"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, true, srv.URL)
	_, err := c.ListRoles(context.Background(), "u1", "tok")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fetchErr.Error() != "Error fetching roles" {
		t.Fatalf("unexpected message: %q", fetchErr.Error())
	}
}

func TestListPermissions_FetchErrorNamesResource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, true, srv.URL)
	_, err := c.ListPermissions(context.Background(), "u1", "tok")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fetchErr.Error() != "Error fetching permissions" {
		t.Fatalf("unexpected message: %q", fetchErr.Error())
	}
}

func TestListRoles_NetworkErrorIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := newTestClient(t, true, srv.URL)
	_, err := c.ListRoles(context.Background(), "u1", "tok")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
}

func TestAssignRole_Conflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := newTestClient(t, true, srv.URL)
	_, err := c.AssignRole(context.Background(), "u1", "r1", "tok")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestAssignRole_Created(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/user-roles" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"ur1","user_id":"u1","role_id":"r1"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, true, srv.URL)
	record, err := c.AssignRole(context.Background(), "u1", "r1", "tok")
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if record["id"] != "ur1" {
		t.Fatalf("unexpected record: %v", record)
	}
}

func TestGetRole_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, true, srv.URL)
	if _, err := c.GetRole(context.Background(), "missing", "tok"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRevokeRole_NoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		if got := r.URL.Query().Get("user_id"); got != "u1" {
			t.Errorf("expected user_id=u1, got %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(t, true, srv.URL)
	if err := c.RevokeRole(context.Background(), "u1", "r1", "tok"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
}
