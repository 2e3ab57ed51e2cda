package provider

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const defaultStatCounterURL = "https://gs.statcounter.com/chart.php"

// StatCounter fetches the monthly mobile vendor share for Korea and
// caches it for a TTL. Concurrent misses share one request.
type StatCounter struct {
	baseURL    string
	ttl        time.Duration
	httpClient *http.Client
	now        func() time.Time

	group     singleflight.Group
	mu        sync.Mutex
	cached    *ShareData
	fetchedAt time.Time
}

// NewStatCounter creates a client. An empty baseURL uses the public chart endpoint.
func NewStatCounter(baseURL string, ttl, timeout time.Duration) *StatCounter {
	if baseURL == "" {
		baseURL = defaultStatCounterURL
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StatCounter{
		baseURL:    baseURL,
		ttl:        ttl,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// Share returns the cached snapshot or fetches a fresh one.
func (s *StatCounter) Share(ctx context.Context) (*ShareData, error) {
	s.mu.Lock()
	if s.cached != nil && s.now().Sub(s.fetchedAt) < s.ttl {
		cached := s.cached
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do("share", func() (interface{}, error) {
		data, err := s.fetch(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cached = data
		s.fetchedAt = s.now()
		s.mu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ShareData), nil
}

func (s *StatCounter) fetch(ctx context.Context) (*ShareData, error) {
	target := previousMonth(s.now())
	month := target.Format("2006-01")
	params := url.Values{
		"device_hidden":   {"mobile"},
		"statType_hidden": {"vendor"},
		"region_hidden":   {"KR"},
		"granularity":     {"monthly"},
		"fromMonth":       {strconv.Itoa(int(target.Month()))},
		"fromYear":        {strconv.Itoa(target.Year())},
		"toMonth":         {strconv.Itoa(int(target.Month()))},
		"toYear":          {strconv.Itoa(target.Year())},
		"csv":             {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch statcounter csv: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("statcounter returned status %d", resp.StatusCode)
	}

	data, err := parseShareCSV(resp.Body)
	if err != nil {
		return nil, err
	}
	if data.Month == "" {
		data.Month = month
	}
	return data, nil
}

// parseShareCSV reads the chart CSV: a Date column followed by one column
// per vendor. The last row with any non-zero share wins.
func parseShareCSV(r io.Reader) (*ShareData, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse statcounter csv: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("statcounter csv has no data rows")
	}

	header := records[0]
	for i := len(records) - 1; i >= 1; i-- {
		row := records[i]
		shares := make(map[string]float64)
		month := ""
		nonZero := false
		for col, name := range header {
			if col >= len(row) {
				break
			}
			name = strings.TrimSpace(name)
			if strings.EqualFold(name, "Date") {
				month = strings.TrimSpace(row[col])
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
			if err != nil {
				continue
			}
			shares[name] = v
			if v != 0 {
				nonZero = true
			}
		}
		if nonZero {
			return &ShareData{Month: month, Shares: shares, Source: "StatCounter"}, nil
		}
	}
	return nil, fmt.Errorf("statcounter csv has only zero rows")
}

func previousMonth(now time.Time) time.Time {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return first.AddDate(0, -1, 0)
}
