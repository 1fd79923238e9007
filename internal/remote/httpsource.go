package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// HTTPSource fetches records from the remote finance service over plain
// JSON endpoints. The wire protocol is deliberately minimal: the sync engine
// only cares about the record shapes and error categories.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource creates a source for the given base URL.
func NewHTTPSource(baseURL string, timeout time.Duration) (*HTTPSource, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse remote base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid remote base URL scheme %q", parsed.Scheme)
	}

	return &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// FetchTransactions implements TransactionSource.
func (s *HTTPSource) FetchTransactions(ctx context.Context) ([]RemoteTransaction, error) {
	var records []RemoteTransaction
	if err := s.get(ctx, "/transactions", &records); err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "Fetched remote transactions", "count", len(records))
	return records, nil
}

// FetchBudgets implements BudgetSource.
func (s *HTTPSource) FetchBudgets(ctx context.Context) ([]RemoteBudget, error) {
	var records []RemoteBudget
	if err := s.get(ctx, "/budgets", &records); err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "Fetched remote budgets", "count", len(records))
	return records, nil
}

func (s *HTTPSource) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return NewFetchError(FetchNetwork, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return NewFetchError(FetchTimeout, err)
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return NewFetchError(FetchTimeout, err)
		}
		return NewFetchError(FetchNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return NewFetchError(FetchAuth, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 500:
		return NewFetchError(FetchServer, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return NewFetchError(FetchServer, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewFetchError(FetchDecode, err)
	}

	return nil
}
