package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"service-sla-guard/internal/domain"
)

// StatusError is returned when the routing service answers with a non-2xx code.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("routing service returned %d", e.Code)
}

// OSRMClient queries the table service of an OSRM instance.
type OSRMClient struct {
	baseURL    string
	profile    string
	httpClient *http.Client
}

// NewOSRMClient returns nil when baseURL is empty, meaning road distances are disabled.
func NewOSRMClient(baseURL string, timeout time.Duration) *OSRMClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &OSRMClient{
		baseURL:    baseURL,
		profile:    "driving",
		httpClient: &http.Client{Timeout: timeout},
	}
}

type tableResponse struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	Distances [][]*float64 `json:"distances"`
}

// Distances returns road distances from every origin to dest.
func (c *OSRMClient) Distances(ctx context.Context, origins []domain.Location, dest domain.Location) ([]float64, error) {
	if len(origins) == 0 {
		return nil, nil
	}

	coords := make([]string, 0, len(origins)+1)
	sources := make([]string, 0, len(origins))
	for i, o := range origins {
		coords = append(coords, formatCoord(o))
		sources = append(sources, strconv.Itoa(i))
	}
	coords = append(coords, formatCoord(dest))

	url := fmt.Sprintf("%s/table/v1/%s/%s?sources=%s&destinations=%d&annotations=distance",
		c.baseURL, c.profile, strings.Join(coords, ";"), strings.Join(sources, ";"), len(origins))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("osrm table: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var parsed tableResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("osrm table: decode: %w", err)
	}
	if parsed.Code != "Ok" {
		return nil, fmt.Errorf("osrm table: code %s: %s", parsed.Code, parsed.Message)
	}
	if len(parsed.Distances) != len(origins) {
		return nil, fmt.Errorf("osrm table: got %d rows for %d origins", len(parsed.Distances), len(origins))
	}

	out := make([]float64, len(origins))
	for i, row := range parsed.Distances {
		if len(row) == 0 || row[0] == nil {
			return nil, fmt.Errorf("osrm table: no route from origin %d", i)
		}
		out[i] = *row[0]
	}
	return out, nil
}

// DistanceBetween returns the road distance from a to b.
func (c *OSRMClient) DistanceBetween(ctx context.Context, a, b domain.Location) (float64, error) {
	d, err := c.Distances(ctx, []domain.Location{a}, b)
	if err != nil {
		return 0, err
	}
	return d[0], nil
}

// OSRM takes lng,lat.
func formatCoord(l domain.Location) string {
	return strconv.FormatFloat(l.Lng, 'f', 6, 64) + "," + strconv.FormatFloat(l.Lat, 'f', 6, 64)
}

// isRetryable reports whether a distance call may succeed if repeated.
func isRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		return true
	}
	return false
}
