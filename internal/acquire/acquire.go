// Package acquire obtains the raw document text: it downloads PDFs over
// HTTP with rate limiting and retries, validates them, and extracts
// per-page text with either of two extraction backends.
package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/time/rate"
)

// ErrUnreadable signals that the document yielded no extractable text.
var ErrUnreadable = errors.New("acquire: document contains no extractable text")

// ErrNotPDF signals that a fetched resource is not a PDF.
var ErrNotPDF = errors.New("acquire: resource is not a PDF")

const defaultUserAgent = "Mozilla/5.0"

// Backend selects the PDF text-extraction strategy. The plain backend
// streams the page's text content in content order; the row backend
// reconstructs physical rows from glyph positions, which preserves line
// boundaries better in multi-column layouts.
type Backend int

const (
	BackendPlain Backend = iota
	BackendRows
)

func (b Backend) String() string {
	if b == BackendRows {
		return "rows"
	}
	return "plain"
}

// Alternate returns the other backend, used when a first extraction
// produces an implausible reference section.
func (b Backend) Alternate() Backend {
	if b == BackendRows {
		return BackendPlain
	}
	return BackendRows
}

// Client downloads PDF documents with rate limiting and bounded retries.
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	userAgent   string
	maxAttempts uint
	retryDelay  time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit sets the request rate limit in requests per second.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// WithUserAgent overrides the User-Agent header. Repositories commonly
// refuse non-browser agents, so the default mimics one.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// WithMaxAttempts sets the retry budget per download.
func WithMaxAttempts(n uint) ClientOption {
	return func(c *Client) { c.maxAttempts = n }
}

// NewClient returns a Client with conservative defaults: two requests
// per second, three attempts, a one-minute request timeout.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(2), 1),
		userAgent:   defaultUserAgent,
		maxAttempts: 3,
		retryDelay:  1 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPDF downloads the PDF at url, retrying transient failures.
// Responses that are not PDFs fail with ErrNotPDF without retrying.
func (c *Client) FetchPDF(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var data []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("User-Agent", c.userAgent)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				err := fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
				if resp.StatusCode >= 400 && resp.StatusCode < 500 {
					return retry.Unrecoverable(err)
				}
				return err
			}

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			if !looksLikePDF(resp.Header.Get("Content-Type"), body) {
				return retry.Unrecoverable(fmt.Errorf("%w: %s", ErrNotPDF, url))
			}
			data = body
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.maxAttempts),
		retry.Delay(c.retryDelay),
	)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// looksLikePDF accepts a PDF content type or a body starting with the
// PDF magic; repositories frequently mislabel PDFs as octet streams.
func looksLikePDF(contentType string, body []byte) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "application/pdf") {
		return true
	}
	return bytes.HasPrefix(body, []byte("%PDF-"))
}

// ValidatePDF checks structural integrity and returns the page count.
func ValidatePDF(data []byte) (int, error) {
	pageCount, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return 0, fmt.Errorf("validating pdf: %w", err)
	}
	if pageCount == 0 {
		return 0, ErrUnreadable
	}
	return pageCount, nil
}

// ExtractPages returns the text of every page using the chosen backend.
func ExtractPages(data []byte, backend Backend) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}

	total := reader.NumPage()
	pages := make([]string, 0, total)
	sawText := false
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		var text string
		switch backend {
		case BackendRows:
			text = extractRows(page)
		default:
			if t, err := page.GetPlainText(nil); err == nil {
				text = t
			}
		}
		if strings.TrimSpace(text) != "" {
			sawText = true
		}
		pages = append(pages, text)
	}
	if !sawText {
		return nil, ErrUnreadable
	}
	return pages, nil
}

// extractRows rebuilds physical lines from positioned text rows. Rows
// come back top-to-bottom; words within a row join with single spaces.
func extractRows(page pdf.Page) string {
	rows, err := page.GetTextByRow()
	if err != nil {
		return ""
	}
	var b strings.Builder
	for _, row := range rows {
		var words []string
		for _, word := range row.Content {
			if word.S != "" {
				words = append(words, word.S)
			}
		}
		if len(words) > 0 {
			b.WriteString(strings.Join(words, " "))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Kind classifies an input source string.
type Kind int

const (
	KindURL Kind = iota
	KindPDFFile
	KindTextFile
)

// DetectKind classifies source: an http(s) URL, a .txt file, or a PDF
// path.
func DetectKind(source string) Kind {
	lower := strings.ToLower(source)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return KindURL
	}
	if strings.HasSuffix(lower, ".txt") {
		return KindTextFile
	}
	return KindPDFFile
}

// Load resolves source to per-page text. URLs are fetched, PDF files
// read and extracted with the given backend, and text files returned as
// a single page.
func (c *Client) Load(ctx context.Context, source string, backend Backend) ([]string, error) {
	switch DetectKind(source) {
	case KindURL:
		data, err := c.FetchPDF(ctx, source)
		if err != nil {
			return nil, err
		}
		if _, err := ValidatePDF(data); err != nil {
			return nil, err
		}
		return ExtractPages(data, backend)
	case KindTextFile:
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(string(data)) == "" {
			return nil, ErrUnreadable
		}
		return []string{string(data)}, nil
	default:
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, err
		}
		if _, err := ValidatePDF(data); err != nil {
			return nil, err
		}
		return ExtractPages(data, backend)
	}
}
