// geocoder.go
// Search is a straight pass-through to the upstream place-search API. It
// holds no relay state and never runs on the manager goroutine.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const maxGeocoderBody = 4 << 20

type Geocoder struct {
	client  *http.Client
	baseURL string
	key     string
	region  string
	log     *slog.Logger
}

// SearchFailure is the body returned for any upstream failure.
type SearchFailure struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func NewGeocoder(baseURL, key, region string, timeout time.Duration, log *slog.Logger) *Geocoder {
	return &Geocoder{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		key:     key,
		region:  region,
		log:     log,
	}
}

// Search forwards keyword upstream and returns the response body, which must
// be valid JSON.
func (g *Geocoder) Search(ctx context.Context, keyword string) (json.RawMessage, error) {
	if keyword == "" {
		return nil, fmt.Errorf("%w: keyword is required", ErrGeocoder)
	}
	u, err := url.Parse(g.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeocoder, err)
	}
	q := u.Query()
	q.Set("keywords", keyword)
	if g.key != "" {
		q.Set("key", g.key)
	}
	if g.region != "" {
		q.Set("city", g.region)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeocoder, err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeocoder, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: upstream status %d", ErrGeocoder, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGeocoderBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeocoder, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: upstream body is not JSON", ErrGeocoder)
	}
	return body, nil
}

func (g *Geocoder) handleSearch(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("keyword")
	body, err := g.Search(r.Context(), keyword)
	if err != nil {
		g.log.Warn("search failed", "keyword", keyword, "error", err)
		writeJSON(w, http.StatusOK, SearchFailure{Status: -1, Message: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
