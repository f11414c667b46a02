package web

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/courierimport/internal/config"
	"github.com/JonMunkholm/courierimport/internal/core"
	_ "github.com/JonMunkholm/courierimport/internal/core/tables"
	"github.com/JonMunkholm/courierimport/internal/store"
)

const sitesCSV = "Nom;Type;Adresse;Ville\n" +
	"Clinique Pasteur;Laboratoire;12 rue X;Toulouse\n" +
	"Point Relais Capitole;Point de collecte;1 place du Capitole;Toulouse\n"

func testConfig() *config.Config {
	return &config.Config{
		Import: config.ImportConfig{
			MaxFileSize:     1 << 20,
			MaxConcurrent:   2,
			MaxWaitTime:     50 * time.Millisecond,
			BatchSize:       500,
			AllowUpdates:    true,
			IdentifierField: "id",
		},
		History: config.HistoryConfig{Enabled: true, RetentionDays: 90, PruneInterval: time.Hour},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	svc, err := core.NewService(s, cfg)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	srv := NewServer(svc, cfg)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv, s
}

// uploadRequest builds a multipart POST with one file and form fields.
func uploadRequest(t *testing.T, path, fileName string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(data)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("Content-Security-Policy"); got != "" {
		t.Errorf("CSP set while disabled: %q", got)
	}
}

func TestCORS(t *testing.T) {
	cfg := testConfig()
	cfg.Security.AllowedOrigins = []string{"https://dashboard.example.fr"}
	srv, _ := newTestServer(t, cfg)

	req := httptest.NewRequest(http.MethodOptions, "/api/import/sites", nil)
	req.Header.Set("Origin", "https://dashboard.example.fr")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := serve(srv, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://dashboard.example.fr" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/tables", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = serve(srv, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin allowed: %q", got)
	}
}

func TestListTables(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/tables", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	tables := decode[[]tableResponse](t, rec)

	byKey := make(map[string]tableResponse)
	for _, tbl := range tables {
		byKey[tbl.Key] = tbl
	}
	if _, ok := byKey["sites"]; !ok {
		t.Errorf("sites missing from %v", tables)
	}
	if got := byKey["users"].IdentifierField; got != core.FieldEmail {
		t.Errorf("users identifier = %q, want email", got)
	}
}

func TestImportFile(t *testing.T) {
	srv, s := newTestServer(t, testConfig())

	rec := serve(srv, uploadRequest(t, "/api/import/sites", "sites.csv", []byte(sitesCSV), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	res := decode[core.TableResult](t, rec)
	if res.Inserted != 2 {
		t.Errorf("Inserted = %d, want 2", res.Inserted)
	}
	if got := s.Count("sites"); got != 2 {
		t.Errorf("store has %d sites, want 2", got)
	}

	// The same file again changes nothing.
	rec = serve(srv, uploadRequest(t, "/api/import/sites", "sites.csv", []byte(sitesCSV), nil))
	res = decode[core.TableResult](t, rec)
	if res.Inserted != 0 || res.Unchanged != 2 {
		t.Errorf("reimport = %+v, want 2 unchanged", res)
	}
}

func TestImportFile_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		fileName   string
		data       string
		fields     map[string]string
		wantStatus int
		wantCode   string
	}{
		{"unknown table", "/api/import/invoices", "x.csv", sitesCSV, nil, http.StatusNotFound, "IMP003"},
		{"no file", "/api/import/sites", "", "", nil, http.StatusBadRequest, "FILE004"},
		{"bad option", "/api/import/sites", "sites.csv", sitesCSV, map[string]string{"allowUpdates": "maybe"}, http.StatusBadRequest, "IMP005"},
		{"bad identifier", "/api/import/sites", "sites.csv", sitesCSV, map[string]string{"identifierField": "shoeSize"}, http.StatusBadRequest, "IMP005"},
		{"unsupported format", "/api/import/sites", "sites.xlsx", sitesCSV, nil, http.StatusUnprocessableEntity, "FILE006"},
		{"too few columns", "/api/import/sites", "sites.csv", "Nom\nClinique\n", nil, http.StatusUnprocessableEntity, "FILE002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, testConfig())

			rec := serve(srv, uploadRequest(t, tt.path, tt.fileName, []byte(tt.data), tt.fields))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := decode[ErrorResponse](t, rec).Code; got != tt.wantCode {
				t.Errorf("code = %s, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestImportFile_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Import.MaxFileSize = 64
	srv, _ := newTestServer(t, cfg)

	rec := serve(srv, uploadRequest(t, "/api/import/sites", "sites.csv", []byte(sitesCSV), nil))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec).Code; got != "FILE001" {
		t.Errorf("code = %s, want FILE001", got)
	}
}

func TestImportFile_HTMX(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	req := uploadRequest(t, "/api/import/sites", "sites.csv", []byte(sitesCSV), nil)
	req.Header.Set("HX-Request", "true")
	rec := serve(srv, req)

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("Content-Type = %q, want text/html", ct)
	}
	if !strings.Contains(rec.Body.String(), "<dt>Inserted</dt><dd>2</dd>") {
		t.Errorf("fragment = %s", rec.Body.String())
	}

	req = uploadRequest(t, "/api/import/nope", "sites.csv", []byte(sitesCSV), nil)
	req.Header.Set("HX-Request", "true")
	rec = serve(srv, req)
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "IMP003") {
		t.Errorf("error fragment = %d %s", rec.Code, rec.Body.String())
	}
}

func TestImportBundle(t *testing.T) {
	srv, s := newTestServer(t, testConfig())

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"sites.csv": sitesCSV,
		"README.md": "not a table",
	} {
		w, _ := zw.Create(name)
		w.Write([]byte(content))
	}
	zw.Close()

	rec := serve(srv, uploadRequest(t, "/api/import", "export.zip", buf.Bytes(), map[string]string{"clearTarget": "true"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	run := decode[core.RunResult](t, rec)
	if run.RunID == "" {
		t.Error("RunID is empty")
	}
	if len(run.Files) != 1 || run.Files[0].Inserted != 2 {
		t.Errorf("Files = %+v, want one file with 2 inserts", run.Files)
	}
	if len(run.Skipped) != 1 {
		t.Errorf("Skipped = %+v, want README.md", run.Skipped)
	}
	if got := s.Count("sites"); got != 2 {
		t.Errorf("store has %d sites, want 2", got)
	}
}

func TestImportBundle_NotAZip(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	rec := serve(srv, uploadRequest(t, "/api/import", "export.zip", []byte("plain text"), nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec).Code; got != "FILE003" {
		t.Errorf("code = %s, want FILE003", got)
	}
}

func TestPreview_DoesNotWrite(t *testing.T) {
	srv, s := newTestServer(t, testConfig())

	rec := serve(srv, uploadRequest(t, "/api/preview/sites", "sites.csv", []byte(sitesCSV), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	preview := decode[core.PreviewResponse](t, rec)
	if preview.Summary.Inserts != 2 {
		t.Errorf("Inserts = %d, want 2", preview.Summary.Inserts)
	}
	if got := s.Count("sites"); got != 0 {
		t.Errorf("preview wrote %d sites", got)
	}
}

func TestSuggest(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	rec := serve(srv, uploadRequest(t, "/api/suggest", "export.csv",
		[]byte("Prénom;Nom de famille;Email;Rôle\nJean;Dupont;jean@example.fr;coursier\n"), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	matches := decode[[]core.TableMatch](t, rec)
	if len(matches) == 0 || matches[0].Table.Key != "users" {
		t.Errorf("matches = %+v, want users first", matches)
	}
}

func TestDownloadTemplate(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/template/sites?delimiter=comma", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "sites.csv") {
		t.Errorf("Content-Disposition = %q", got)
	}
	line := strings.TrimSpace(rec.Body.String())
	if !strings.HasPrefix(line, "Nom,") {
		t.Errorf("template = %q, want comma separated starting with Nom", line)
	}

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/api/template/sites?delimiter=pipe", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad delimiter status = %d, want 400", rec.Code)
	}
	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/api/template/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown table status = %d, want 404", rec.Code)
	}
}

func TestHistory(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	req := uploadRequest(t, "/api/import/sites", "sites.csv", []byte(sitesCSV), nil)
	req.Header.Set("User-Agent", "history-test")
	serve(srv, req)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/history?table=sites&since=2000-01-01", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	entries := decode[[]core.HistoryEntry](t, rec)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if e := entries[0]; e.Inserted != 2 || e.Actor.Source != "http" || e.Actor.UserAgent != "history-test" {
		t.Errorf("entry = %+v", e)
	}

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/api/history?since=yesterday", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad since status = %d, want 400", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	status := decode[core.RunLimiterStatus](t, rec)
	if status.MaxConcurrent != 2 || status.Active != 0 {
		t.Errorf("status = %+v", status)
	}
}

func TestImportRequiresAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	srv, _ := newTestServer(t, cfg)

	rec := serve(srv, uploadRequest(t, "/api/import/sites", "sites.csv", []byte(sitesCSV), nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	req := uploadRequest(t, "/api/import/sites", "sites.csv", []byte(sitesCSV), nil)
	req.Header.Set("X-API-Key", "secret")
	if rec := serve(srv, req); rec.Code != http.StatusOK {
		t.Errorf("with key status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// Read-only routes stay open.
	if rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/tables", nil)); rec.Code != http.StatusOK {
		t.Errorf("tables status = %d, want 200", rec.Code)
	}
}

func TestImportRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, ImportLimit: 1}
	srv, _ := newTestServer(t, cfg)

	if rec := serve(srv, uploadRequest(t, "/api/preview/sites", "sites.csv", []byte(sitesCSV), nil)); rec.Code != http.StatusOK {
		t.Fatalf("first status = %d", rec.Code)
	}
	rec := serve(srv, uploadRequest(t, "/api/preview/sites", "sites.csv", []byte(sitesCSV), nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing")
	}
}

func TestRateLimiterAllow(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	rl := srv.newRateLimiter(2, time.Minute)

	for i, want := range []bool{true, true, false} {
		if got := rl.allow("10.0.0.1"); got != want {
			t.Errorf("request %d: allow = %v, want %v", i+1, got, want)
		}
	}
	if !rl.allow("10.0.0.2") {
		t.Error("other client limited")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrTableBusy, http.StatusConflict},
		{core.ErrTooManyRuns, http.StatusServiceUnavailable},
		{&core.StructuralError{Err: core.ErrEmptyFile}, http.StatusUnprocessableEntity},
		{&core.CommitError{Table: "sites", Err: errors.New("connection reset")}, http.StatusBadGateway},
		{errNoFile, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
