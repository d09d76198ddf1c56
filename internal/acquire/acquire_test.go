package acquire

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBackend(t *testing.T) {
	if BackendPlain.String() != "plain" || BackendRows.String() != "rows" {
		t.Error("backend names wrong")
	}
	if BackendPlain.Alternate() != BackendRows || BackendRows.Alternate() != BackendPlain {
		t.Error("Alternate() must flip the backend")
	}
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		source string
		want   Kind
	}{
		{"https://example.org/paper.pdf", KindURL},
		{"http://example.org/paper.pdf", KindURL},
		{"HTTPS://EXAMPLE.ORG/X.PDF", KindURL},
		{"extracted.txt", KindTextFile},
		{"/data/Extracted.TXT", KindTextFile},
		{"thesis.pdf", KindPDFFile},
		{"/abs/path/thesis.pdf", KindPDFFile},
		{"no-extension", KindPDFFile},
	}
	for _, tt := range tests {
		if got := DetectKind(tt.source); got != tt.want {
			t.Errorf("DetectKind(%q) = %v, want %v", tt.source, got, tt.want)
		}
	}
}

func TestLooksLikePDF(t *testing.T) {
	if !looksLikePDF("application/pdf", nil) {
		t.Error("content type should be enough")
	}
	if !looksLikePDF("application/octet-stream", []byte("%PDF-1.7 rest")) {
		t.Error("magic bytes should be enough")
	}
	if looksLikePDF("text/html", []byte("<html>")) {
		t.Error("html is not a pdf")
	}
}

func TestFetchPDF(t *testing.T) {
	body := []byte("%PDF-1.4 fake content")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != defaultUserAgent {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(body)
	}))
	defer srv.Close()

	c := NewClient(WithRateLimit(100))
	got, err := c.FetchPDF(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchPDF() error = %v", err)
	}
	if string(got) != string(body) {
		t.Errorf("body mismatch")
	}
}

func TestFetchPDF_NotPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>paywall</html>"))
	}))
	defer srv.Close()

	c := NewClient(WithRateLimit(100))
	_, err := c.FetchPDF(context.Background(), srv.URL)
	if !errors.Is(err, ErrNotPDF) {
		t.Errorf("error = %v, want ErrNotPDF", err)
	}
}

func TestFetchPDF_NotFoundDoesNotRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(WithRateLimit(100), WithMaxAttempts(3))
	if _, err := c.FetchPDF(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 404")
	}
	if calls != 1 {
		t.Errorf("server called %d times, want 1 (4xx is unrecoverable)", calls)
	}
}

func TestFetchPDF_RetriesServerErrors(t *testing.T) {
	calls := 0
	body := []byte("%PDF-1.4 ok")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(body)
	}))
	defer srv.Close()

	c := NewClient(WithRateLimit(100), WithMaxAttempts(5))
	c.retryDelay = time.Millisecond
	got, err := c.FetchPDF(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchPDF() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("server called %d times, want 3", calls)
	}
	if string(got) != string(body) {
		t.Error("body mismatch after retries")
	}
}

func TestLoad_TextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs.txt")
	content := "References\nSmith, J. (2001). A title.\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	c := NewClient()
	pages, err := c.Load(context.Background(), path, BackendPlain)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(pages) != 1 || pages[0] != content {
		t.Errorf("pages = %q", pages)
	}
}

func TestLoad_EmptyTextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(path, []byte("  \n "), 0644); err != nil {
		t.Fatal(err)
	}

	c := NewClient()
	_, err := c.Load(context.Background(), path, BackendPlain)
	if !errors.Is(err, ErrUnreadable) {
		t.Errorf("error = %v, want ErrUnreadable", err)
	}
}

func TestValidatePDF_Garbage(t *testing.T) {
	if _, err := ValidatePDF([]byte("not a pdf at all")); err == nil {
		t.Error("expected error for non-PDF bytes")
	}
}
