package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/api/option"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
	"github.com/iunoo/bot-autoinput-npwpktp/internal/infrastructure/resilience"
)

func testOptions(server *httptest.Server) []option.ClientOption {
	return []option.ClientOption{
		option.WithEndpoint(server.URL + "/"),
		option.WithHTTPClient(server.Client()),
	}
}

func TestSheetStoreFindRows(t *testing.T) {
	var ranges []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/values:batchGet") {
			http.NotFound(w, r)
			return
		}
		ranges = r.URL.Query()["ranges"]
		_, _ = w.Write([]byte(`{"valueRanges":[
			{"range":"'Sheet BJ'!F1:F2","values":[["NPWP 15"],["012345678901234"]]},
			{"range":"'Sheet BJ'!G1:G2","values":[["NIK"],[" 3201010101900001 "]]},
			{"range":"'Sheet BJ'!H1:H1","values":[]}
		]}`))
	}))
	defer server.Close()

	store, err := NewSheetStore(context.Background(), "sheet-1", nil, testOptions(server)...)
	if err != nil {
		t.Fatalf("NewSheetStore() error = %v", err)
	}

	found, err := store.FindRows(context.Background(), "Sheet BJ", []string{"F", "G", "H"}, []string{"3201010101900001"})
	if err != nil {
		t.Fatalf("FindRows() error = %v", err)
	}
	if !found {
		t.Fatalf("expected duplicate to be found")
	}
	if len(ranges) != 3 || ranges[0] != "'Sheet BJ'!F:F" {
		t.Fatalf("unexpected ranges %v", ranges)
	}

	found, err = store.FindRows(context.Background(), "Sheet BJ", []string{"F", "G", "H"}, []string{"9999999999999999"})
	if err != nil || found {
		t.Fatalf("FindRows() = %v, %v; want false, nil", found, err)
	}
}

func TestSheetStoreAppendRow(t *testing.T) {
	var body struct {
		Values [][]string `json:"values"`
	}
	var inputOption string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, ":append") {
			http.NotFound(w, r)
			return
		}
		inputOption = r.URL.Query().Get("valueInputOption")
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"updates":{"updatedCells":10}}`))
	}))
	defer server.Close()

	store, err := NewSheetStore(context.Background(), "sheet-1", nil, testOptions(server)...)
	if err != nil {
		t.Fatalf("NewSheetStore() error = %v", err)
	}
	row := []string{"KTP", "Toko Jaya", "", "", "", "", "3201010101900001", "", "Budi", ""}
	if err := store.AppendRow(context.Background(), "Sheet BJ", row); err != nil {
		t.Fatalf("AppendRow() error = %v", err)
	}
	if inputOption != "USER_ENTERED" {
		t.Fatalf("unexpected valueInputOption %q", inputOption)
	}
	if len(body.Values) != 1 || body.Values[0][1] != "Toko Jaya" || body.Values[0][8] != "Budi" {
		t.Fatalf("unexpected appended values %v", body.Values)
	}
}

func TestSheetStoreMapsPermissionDenied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"The caller does not have permission"}}`))
	}))
	defer server.Close()

	store, err := NewSheetStore(context.Background(), "sheet-1", nil, testOptions(server)...)
	if err != nil {
		t.Fatalf("NewSheetStore() error = %v", err)
	}
	err = store.AppendRow(context.Background(), "Sheet BJ", []string{"KTP"})
	if !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestSheetStoreRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"code":503,"message":"backend"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"valueRanges":[]}`))
	}))
	defer server.Close()

	store, err := NewSheetStore(context.Background(), "sheet-1", retryingExecutor(), testOptions(server)...)
	if err != nil {
		t.Fatalf("NewSheetStore() error = %v", err)
	}
	if _, err := store.FindRows(context.Background(), "S", []string{"F"}, []string{"1"}); err != nil {
		t.Fatalf("FindRows() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func retryingExecutor() *resilience.Executor {
	cfg := resilience.DefaultConfig()
	cfg.RetryInitialBackoff = time.Millisecond
	cfg.RetryMaxBackoff = time.Millisecond
	cfg.BreakerEnabled = false
	return resilience.NewExecutor(cfg)
}

func TestSheetStoreDoesNotRetryAppend(t *testing.T) {
	var appends atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if appends.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"code":503,"message":"backend"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"updates":{"updatedCells":10}}`))
	}))
	defer server.Close()

	store, err := NewSheetStore(context.Background(), "sheet-1", retryingExecutor(), testOptions(server)...)
	if err != nil {
		t.Fatalf("NewSheetStore() error = %v", err)
	}
	err = store.AppendRow(context.Background(), "Sheet BJ", []string{"KTP"})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	if appends.Load() != 1 {
		t.Fatalf("expected a single append request, got %d", appends.Load())
	}
}

func TestDriveStoreDoesNotRetryUpload(t *testing.T) {
	var uploads atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uploads.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"code":500,"message":"backend"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"file-2"}`))
	}))
	defer server.Close()

	store, err := NewDriveStore(context.Background(), retryingExecutor(), testOptions(server)...)
	if err != nil {
		t.Fatalf("NewDriveStore() error = %v", err)
	}
	_, err = store.UploadFile(context.Background(), "folder-1", "Budi - KTP.jpg", []byte{0xff}, "image/jpeg")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	if uploads.Load() != 1 {
		t.Fatalf("expected a single upload request, got %d", uploads.Load())
	}
}

func TestDriveStoreCreatesMissingFolderAndUploads(t *testing.T) {
	var query, uploadType string
	var created int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/files") {
			http.NotFound(w, r)
			return
		}
		switch {
		case r.Method == http.MethodGet:
			query = r.URL.Query().Get("q")
			_, _ = w.Write([]byte(`{"files":[]}`))
		case r.URL.Query().Get("uploadType") != "":
			uploadType = r.URL.Query().Get("uploadType")
			_, _ = w.Write([]byte(`{"id":"file-9"}`))
		default:
			created++
			var meta map[string]any
			_ = json.NewDecoder(r.Body).Decode(&meta)
			if meta["mimeType"] != folderMIMEType {
				t.Errorf("unexpected folder metadata %v", meta)
			}
			_, _ = w.Write([]byte(`{"id":"folder-new"}`))
		}
	}))
	defer server.Close()

	store, err := NewDriveStore(context.Background(), nil, testOptions(server)...)
	if err != nil {
		t.Fatalf("NewDriveStore() error = %v", err)
	}

	folderID, err := store.FindOrCreateSubfolder(context.Background(), "parent-1", "Sudah diinput")
	if err != nil {
		t.Fatalf("FindOrCreateSubfolder() error = %v", err)
	}
	if folderID != "folder-new" || created != 1 {
		t.Fatalf("unexpected folder %q created=%d", folderID, created)
	}
	if !strings.Contains(query, "'parent-1' in parents") || !strings.Contains(query, "name = 'Sudah diinput'") {
		t.Fatalf("unexpected query %q", query)
	}

	fileID, err := store.UploadFile(context.Background(), folderID, "Budi - KTP.jpg", []byte{0xff, 0xd8}, "image/jpeg")
	if err != nil {
		t.Fatalf("UploadFile() error = %v", err)
	}
	if fileID != "file-9" || uploadType == "" {
		t.Fatalf("unexpected upload result id=%q uploadType=%q", fileID, uploadType)
	}
}

func TestDriveStoreFindsExistingFolder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"files":[{"id":"folder-1","name":"PDF"}]}`))
	}))
	defer server.Close()

	store, err := NewDriveStore(context.Background(), nil, testOptions(server)...)
	if err != nil {
		t.Fatalf("NewDriveStore() error = %v", err)
	}
	folderID, err := store.FindOrCreateSubfolder(context.Background(), "parent-1", "PDF")
	if err != nil || folderID != "folder-1" {
		t.Fatalf("FindOrCreateSubfolder() = %q, %v", folderID, err)
	}
}

func TestEscapeQuery(t *testing.T) {
	if got := escapeQuery(`Toko O'Neil\x`); got != `Toko O\'Neil\\x` {
		t.Fatalf("escapeQuery() = %q", got)
	}
}
