package api

import (
	"encoding/json"
	"io"
	"testing"
)

func TestCompanies_UpdateOtherCompanyDenied(t *testing.T) {
	env := newTestEnv(t)

	resp := env.putJSON(t, "/api/companies/c2", "c1", `{"name":"Hijack"}`)
	if resp.StatusCode != 403 {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	if got := decodeError(t, resp).Message; got != "Access denied: cannot manage other company" {
		t.Fatalf("unexpected message: %q", got)
	}
	if env.companies.companies["c2"].Name != "Globex" {
		t.Fatal("cross-company update must not modify the record")
	}
}

func TestCompanies_DeleteOtherCompanyDenied(t *testing.T) {
	env := newTestEnv(t)

	resp := env.del(t, "/api/companies/c2", "c1")
	if resp.StatusCode != 403 {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	if got := decodeError(t, resp).Message; got != "Access denied: cannot delete other company" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestCompanies_UpdateOwn(t *testing.T) {
	env := newTestEnv(t)

	resp := env.putJSON(t, "/api/companies/c1", "c1", `{"name":"Acme Corp"}`)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if env.companies.companies["c1"].Name != "Acme Corp" {
		t.Fatalf("expected name updated, got %q", env.companies.companies["c1"].Name)
	}
}

func TestCompanies_GetUnknownIs404(t *testing.T) {
	env := newTestEnv(t)

	resp := env.getJSON(t, "/api/companies/ghost", "c1")
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if got := decodeError(t, resp).Message; got != "Company not found" {
		t.Fatalf("unexpected message: %q", got)
	}
}

// Reading another company's record is allowed; only writes are restricted to
// the company itself.
func TestCompanies_GetOtherCompanyAllowed(t *testing.T) {
	env := newTestEnv(t)

	resp := env.getJSON(t, "/api/companies/c2", "c1")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var got struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if got.Data.ID != "c2" {
		t.Fatalf("unexpected company: %+v", got.Data)
	}
}
