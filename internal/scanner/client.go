// Package scanner talks to the external scanning backend over HTTP. The
// backend owns the actual crawling and attack work; this package only
// launches scans, reads their status and lists past results.
package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hakim/scandash/internal/models"
)

var (
	// ErrUnexpectedStatus is returned for any non-2xx response.
	ErrUnexpectedStatus = errors.New("scanner: unexpected HTTP status")

	// ErrMissingScanID is returned when a launch response carries no id.
	ErrMissingScanID = errors.New("scanner: launch response missing scan_id")
)

// DefaultTimeout bounds a single request when Options.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// PollResult is the state the backend reports for one scan.
type PollResult struct {
	Status   models.ScanStatus
	Progress int
	Findings []models.Finding
	Error    string
}

// Options configures an HTTPClient.
type Options struct {
	// BaseURL of the scanner backend, e.g. http://127.0.0.1:5000.
	BaseURL string

	// Timeout caps every request, including reading the body.
	Timeout time.Duration

	// HTTPClient overrides the transport. Its own Timeout is left as is.
	HTTPClient *http.Client
}

// HTTPClient implements the scanner contract against the backend's JSON API.
type HTTPClient struct {
	base    *url.URL
	timeout time.Duration
	http    *http.Client
}

// NewHTTPClient validates opts and returns a client.
func NewHTTPClient(opts Options) (*HTTPClient, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("scanner: invalid base url %q", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &HTTPClient{base: base, timeout: opts.Timeout, http: hc}, nil
}

type launchRequest struct {
	URL string `json:"url"`
}

type launchResponse struct {
	Message string `json:"message"`
	ScanID  string `json:"scan_id"`
	Error   string `json:"error"`
}

// Launch asks the backend to start scanning target and returns its scan id.
func (c *HTTPClient) Launch(ctx context.Context, target string) (string, error) {
	body, err := json.Marshal(launchRequest{URL: target})
	if err != nil {
		return "", fmt.Errorf("scanner: encoding launch request: %w", err)
	}

	var resp launchResponse
	if err := c.do(ctx, http.MethodPost, "/scan", bytes.NewReader(body), &resp); err != nil {
		return "", err
	}
	if resp.ScanID == "" {
		return "", ErrMissingScanID
	}
	return resp.ScanID, nil
}

// Poll reads the current state of scanID.
func (c *HTTPClient) Poll(ctx context.Context, scanID string) (PollResult, error) {
	var doc scanDocument
	if err := c.do(ctx, http.MethodGet, "/scan-results/"+url.PathEscape(scanID), nil, &doc); err != nil {
		return PollResult{}, err
	}

	res := PollResult{
		Status:   NormalizeStatus(doc.Status),
		Progress: clampProgress(doc.Progress),
	}
	switch res.Status {
	case models.StatusCompleted:
		res.Findings = doc.findings()
	case models.StatusFailed:
		res.Error = doc.Error
	}
	return res, nil
}

// ListHistorical returns the backend's stored scans, newest first.
func (c *HTTPClient) ListHistorical(ctx context.Context) ([]models.Scan, error) {
	var docs []scanDocument
	if err := c.do(ctx, http.MethodGet, "/historical-scans", nil, &docs); err != nil {
		return nil, err
	}

	scans := make([]models.Scan, 0, len(docs))
	for i := range docs {
		scans = append(scans, docs[i].toScan())
	}
	return scans, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("scanner: building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("scanner: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e)
		if e.Error != "" {
			return fmt.Errorf("%w %d from %s %s: %s", ErrUnexpectedStatus, resp.StatusCode, method, path, e.Error)
		}
		return fmt.Errorf("%w %d from %s %s", ErrUnexpectedStatus, resp.StatusCode, method, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("scanner: decoding %s response: %w", path, err)
	}
	return nil
}
