// Package resulthttp posts module result summaries to a webhook.
package resulthttp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"attackgraph/pkg/models"
)

// Headers describing each posted batch.
const (
	HeaderBatchID = "X-Attackgraph-Batch"
	HeaderCount   = "X-Attackgraph-Results"
	HeaderFailed  = "X-Attackgraph-Failed"
)

// maxErrorBody caps how much of a rejected response is quoted in the error.
const maxErrorBody = 512

// Writer sends result summaries to a remote HTTP endpoint.
type Writer struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// Config configures the HTTP writer.
type Config struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

// NewWriter creates an HTTP writer.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("http result URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Writer{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// BatchID derives a stable id from the run ids in results, so a batch the
// pipeline retries is recognisable as the same batch by the receiver.
func BatchID(results []models.ResultSummary) string {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.RunID)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.Join(ids, "\n"))).String()
}

// WriteResults posts a batch of summaries as one JSON array.
func (w *Writer) WriteResults(results []models.ResultSummary) error {
	if len(results) == 0 {
		return nil
	}

	body, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderBatchID, BatchID(results))
	req.Header.Set(HeaderCount, strconv.Itoa(len(results)))
	req.Header.Set(HeaderFailed, strconv.Itoa(countFailed(results)))
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if msg := strings.TrimSpace(string(snippet)); msg != "" {
			return fmt.Errorf("http request failed with status %s: %s", resp.Status, msg)
		}
		return fmt.Errorf("http request failed with status %s", resp.Status)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func countFailed(results []models.ResultSummary) int {
	n := 0
	for _, r := range results {
		if r.Status != models.StatusOK {
			n++
		}
	}
	return n
}

// Close releases HTTP resources.
func (w *Writer) Close() error {
	w.client.CloseIdleConnections()
	return nil
}
