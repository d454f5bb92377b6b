package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"covenant/api/internal/auth"
	"covenant/api/internal/catalog"
	"covenant/api/internal/store"

	"go.uber.org/zap"
)

func newTestServer(fake *fakeStore) *httptest.Server {
	svc, _, _ := newTestService(fake)
	httpServer := NewHTTPServer(svc, "*", zap.NewNop())
	return httptest.NewServer(httpServer.Handler())
}

func issueTestToken(t *testing.T, fake *fakeStore, userID, role, department string) string {
	t.Helper()
	fake.users[userID] = store.User{ID: userID, DisplayName: userID, Role: role, Department: department}
	token, err := auth.IssueToken([]byte("test-secret"), userID, userID, role, department, "jti-"+userID, time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(newFakeStore())
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestDocumentsRequireAuth(t *testing.T) {
	server := newTestServer(newFakeStore())
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/documents")
	if err != nil {
		t.Fatalf("GET /api/documents: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestGetDocumentWithBearerToken(t *testing.T) {
	fake := newFakeStore()
	name := "Apache License 2.0"
	seedLicense(t, fake, "doc1", "owner", "DeptX", catalog.License{ID: "doc1", FullName: &name})
	token := issueTestToken(t, fake, "uma", "user", "DeptU")

	server := newTestServer(fake)
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/documents/doc1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/documents/doc1: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var view map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if view["docType"] != catalog.TypeLicense {
		t.Errorf("docType = %v, want license", view["docType"])
	}
	if view["revision"] != float64(1) {
		t.Errorf("revision = %v, want 1", view["revision"])
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	server := newTestServer(newFakeStore())
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/nope")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
