package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"milktrack/internal/auth"
	"milktrack/internal/dashboard"
	"milktrack/internal/services"
	"milktrack/internal/store"
	"milktrack/internal/store/memory"
)

type fakeUserStore struct {
	byEmail map[string]auth.User
	byID    map[string]auth.User
	nextID  int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byEmail: map[string]auth.User{}, byID: map[string]auth.User{}}
}

func (f *fakeUserStore) CreateUser(_ context.Context, email, passwordHash, displayName string) (auth.User, error) {
	if _, ok := f.byEmail[email]; ok {
		return auth.User{}, auth.ErrUserExists
	}
	f.nextID++
	now := time.Now().UTC()
	u := auth.User{
		UID:          fmt.Sprintf("user-%d", f.nextID),
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.byEmail[email] = u
	f.byID[u.UID] = u
	return u, nil
}

func (f *fakeUserStore) UserByEmail(_ context.Context, email string) (auth.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUserStore) UserByID(_ context.Context, uid string) (auth.User, error) {
	u, ok := f.byID[uid]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUserStore) UpdateProfile(_ context.Context, uid string, upd auth.ProfileUpdate) (auth.User, error) {
	u, ok := f.byID[uid]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	if upd.DisplayName != nil {
		u.DisplayName = *upd.DisplayName
	}
	if upd.PhotoURL != nil {
		u.PhotoURL = *upd.PhotoURL
	}
	u.UpdatedAt = time.Now().UTC()
	f.byID[uid] = u
	f.byEmail[u.Email] = u
	return u, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	st := memory.New()
	entrySvc := services.NewEntryService(st, nil)
	dash := dashboard.NewManager(st)
	entrySvc.OnChange(func(ch store.Change) {
		_ = dash.HandleChange(context.Background(), ch)
	})
	authSvc := auth.NewService(newFakeUserStore(), []byte("test-secret-value"), time.Hour)

	srv := NewServer(":0", authSvc, entrySvc, dash)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	return srv
}

// signup registers and logs in a fresh user, returning its bearer token.
func signup(t *testing.T, srv *Server, email string) string {
	t.Helper()

	body := fmt.Sprintf(`{"email":%q,"password":"supersecret","displayName":"Tester"}`, email)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("register status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(fmt.Sprintf(`{"email":%q,"password":"supersecret"}`, email)))
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", rr.Code, rr.Body.String())
	}

	var resp loginResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected a token in login response")
	}
	return resp.Token
}

func doJSON(srv *Server, method, path, token, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestIndexAndHealth(t *testing.T) {
	srv := newTestServer(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("index status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Milk Bottle Tracker") {
		t.Fatalf("index body missing heading")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != 200 {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	srv.Handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options=%q", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options=%q", got)
	}
}

func TestAuthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	// Weak password is rejected
	rr := doJSON(srv, http.MethodPost, "/api/auth/register", "",
		`{"email":"weak@example.com","password":"short"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for weak password, got %d", rr.Code)
	}

	token := signup(t, srv, "milk@example.com")

	// Duplicate registration conflicts
	rr = doJSON(srv, http.MethodPost, "/api/auth/register", "",
		`{"email":"milk@example.com","password":"supersecret"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", rr.Code)
	}

	// Wrong password is unauthorized
	rr = doJSON(srv, http.MethodPost, "/api/auth/login", "",
		`{"email":"milk@example.com","password":"wrongpass"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rr.Code)
	}

	// Profile round trip
	rr = doJSON(srv, http.MethodGet, "/api/profile", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("profile status=%d body=%s", rr.Code, rr.Body.String())
	}
	var profile auth.Profile
	if err := json.Unmarshal(rr.Body.Bytes(), &profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if profile.Email != "milk@example.com" || profile.DisplayName != "Tester" {
		t.Fatalf("unexpected profile %+v", profile)
	}

	rr = doJSON(srv, http.MethodPatch, "/api/profile", token, `{"displayName":"Renamed"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("profile update status=%d body=%s", rr.Code, rr.Body.String())
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &profile); err != nil {
		t.Fatalf("decode updated profile: %v", err)
	}
	if profile.DisplayName != "Renamed" {
		t.Fatalf("expected updated display name, got %q", profile.DisplayName)
	}
}

func TestEntriesRequireAuth(t *testing.T) {
	srv := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/entries"},
		{http.MethodPost, "/api/entries"},
		{http.MethodGet, "/api/stats"},
		{http.MethodGet, "/api/export/excel"},
	} {
		rr := doJSON(srv, tc.method, tc.path, "", "")
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s without token: expected 401, got %d", tc.method, tc.path, rr.Code)
		}
	}

	rr := doJSON(srv, http.MethodGet, "/api/entries", "not-a-token", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rr.Code)
	}
}

func TestEntryLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := signup(t, srv, "milk@example.com")

	// Invalid bottle count is rejected at the boundary
	rr := doJSON(srv, http.MethodPost, "/api/entries", token, `{"bottles":0}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for zero bottles, got %d body=%s", rr.Code, rr.Body.String())
	}

	// Create applies the pricing rule and defaults status to completed
	rr = doJSON(srv, http.MethodPost, "/api/entries", token,
		`{"bottles":4,"timestamp":"2024-05-10T07:30:00Z"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var created entryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created entry: %v", err)
	}
	if created.Bottles != 4 || created.Amount != 100 || created.Status != "completed" {
		t.Fatalf("unexpected created entry %+v", created)
	}

	// List returns it
	rr = doJSON(srv, http.MethodGet, "/api/entries", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	var listed []entryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Fatalf("unexpected list %+v", listed)
	}

	// Update bottles recomputes the amount
	rr = doJSON(srv, http.MethodPatch, "/api/entries/"+created.ID, token, `{"bottles":6}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	var updated entryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode updated entry: %v", err)
	}
	if updated.Bottles != 6 || updated.Amount != 150 {
		t.Fatalf("expected recomputed amount 150, got %+v", updated)
	}

	// Delete removes it permanently
	rr = doJSON(srv, http.MethodDelete, "/api/entries/"+created.ID, token, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	rr = doJSON(srv, http.MethodDelete, "/api/entries/"+created.ID, token, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for second delete, got %d", rr.Code)
	}
}

func TestOwnerIsolation(t *testing.T) {
	srv := newTestServer(t)
	tokenA := signup(t, srv, "a@example.com")
	tokenB := signup(t, srv, "b@example.com")

	rr := doJSON(srv, http.MethodPost, "/api/entries", tokenA,
		`{"bottles":2,"timestamp":"2024-05-10T07:30:00Z"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d", rr.Code)
	}
	var created entryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created entry: %v", err)
	}

	// B cannot see or delete A's entry
	rr = doJSON(srv, http.MethodGet, "/api/entries", tokenB, "")
	if body := strings.TrimSpace(rr.Body.String()); body != "[]" {
		t.Fatalf("expected empty list for other owner, got %s", body)
	}
	rr = doJSON(srv, http.MethodDelete, "/api/entries/"+created.ID, tokenB, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 deleting another owner's entry, got %d", rr.Code)
	}
}

func TestStatsAndSeries(t *testing.T) {
	srv := newTestServer(t)
	token := signup(t, srv, "milk@example.com")

	now := time.Now().UTC().Truncate(time.Hour)
	for _, bottles := range []int{3, 5} {
		body := fmt.Sprintf(`{"bottles":%d,"timestamp":%q}`, bottles, now.Format(time.RFC3339))
		rr := doJSON(srv, http.MethodPost, "/api/entries", token, body)
		if rr.Code != http.StatusCreated {
			t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
		}
	}

	rr := doJSON(srv, http.MethodGet, "/api/stats", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("stats status=%d", rr.Code)
	}
	var stats statsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalEntries != 2 || stats.TotalBottles != 8 || stats.TotalRevenue != 200 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.AvgPerDay != 4 {
		t.Fatalf("expected avg 4, got %d", stats.AvgPerDay)
	}

	rr = doJSON(srv, http.MethodGet, "/api/series", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("series status=%d", rr.Code)
	}
	var snap snapshotResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode series: %v", err)
	}
	if len(snap.Series) != 7 {
		t.Fatalf("expected 7 series points, got %d", len(snap.Series))
	}
	total := 0
	for _, p := range snap.Series {
		total += p.Bottles
	}
	if total != 8 {
		t.Fatalf("expected all 8 bottles inside the window, got %d", total)
	}
}

func TestExportEndpoints(t *testing.T) {
	srv := newTestServer(t)
	token := signup(t, srv, "milk@example.com")

	rr := doJSON(srv, http.MethodPost, "/api/entries", token,
		`{"bottles":2,"timestamp":"2024-05-10T07:30:00Z"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d", rr.Code)
	}

	rr = doJSON(srv, http.MethodGet, "/api/export/excel", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("excel export status=%d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != excelContentType {
		t.Fatalf("excel Content-Type=%q", got)
	}
	if got := rr.Header().Get("Content-Disposition"); !strings.Contains(got, "milk-tracker-") ||
		!strings.Contains(got, ".xlsx") {
		t.Fatalf("excel Content-Disposition=%q", got)
	}
	if rr.Body.Len() == 0 {
		t.Fatal("expected non-empty workbook body")
	}

	rr = doJSON(srv, http.MethodGet, "/api/export/pdf", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("pdf export status=%d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != pdfContentType {
		t.Fatalf("pdf Content-Type=%q", got)
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF")) {
		t.Fatal("expected PDF magic prefix")
	}
	if got := rr.Header().Get("Content-Disposition"); !strings.Contains(got, "milk-tracker-report-") {
		t.Fatalf("pdf Content-Disposition=%q", got)
	}
}
