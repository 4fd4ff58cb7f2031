// main.go - Load generator for the beacon ingestion endpoint
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"insightica/internal/events"
)

// PerfConfig holds the configuration for the load test
type PerfConfig struct {
	BaseURL      string
	WebsiteID    string
	Domain       string
	Concurrency  int
	Duration     time.Duration
	VisitsPerSec int
	Timeout      time.Duration
}

// beacon mirrors the JSON body POST /api/track accepts.
type beacon struct {
	Type            events.BeaconType `json:"type"`
	WebsiteID       string            `json:"websiteId"`
	Domain          string            `json:"domain"`
	URL             string            `json:"url"`
	Referrer        string            `json:"referrer,omitempty"`
	VisitorID       string            `json:"visitorId"`
	EntryTime       int64             `json:"entryTime,omitempty"`
	ExitTime        int64             `json:"exitTime,omitempty"`
	TotalActiveTime int64             `json:"totalActiveTime,omitempty"`
}

// PerfStats holds statistics about the load test
type PerfStats struct {
	mu            sync.Mutex
	Total         int64
	Failed        int64
	StatusCodes   map[int]int64
	ResponseTimes []time.Duration
	StartTime     time.Time
	EndTime       time.Time
}

// Result captures the result of a single request
type Result struct {
	Duration   time.Duration
	StatusCode int
	Error      error
}

var paths = []string{"/", "/pricing", "/blog", "/blog/launch?utm_source=hn&utm_medium=social", "/about", "/docs"}

var referrerPool = []string{"", "", "https://www.google.com/", "https://news.ycombinator.com/", "https://t.co/abc", "https://github.com/"}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
}

func main() {
	baseURL := flag.String("url", "http://localhost:3000", "Base URL of the API")
	websiteID := flag.String("website", "", "websiteId to send beacons for (required)")
	domain := flag.String("domain", "example.com", "Domain of the website")
	concurrency := flag.Int("c", 10, "Number of concurrent clients")
	duration := flag.Duration("d", 30*time.Second, "Duration of the test")
	rate := flag.Int("rate", 0, "Target visits per second (0 = unlimited)")
	timeout := flag.Duration("timeout", 10*time.Second, "Request timeout")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if *websiteID == "" {
		logger.Error("-website is required")
		os.Exit(2)
	}

	cfg := &PerfConfig{
		BaseURL:      *baseURL,
		WebsiteID:    *websiteID,
		Domain:       *domain,
		Concurrency:  *concurrency,
		Duration:     *duration,
		VisitsPerSec: *rate,
		Timeout:      *timeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	testCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	logger.Info("Starting load test",
		slog.String("target", cfg.BaseURL+"/api/track"),
		slog.Int("concurrency", cfg.Concurrency),
		slog.Duration("duration", cfg.Duration),
		slog.Int("visits_per_sec", cfg.VisitsPerSec))

	stats := &PerfStats{StatusCodes: make(map[int]int64), StartTime: time.Now()}
	for result := range runTest(testCtx, cfg) {
		stats.record(result)
	}
	stats.EndTime = time.Now()

	printResults(os.Stdout, stats)
}

// runTest starts the workers and returns a channel for their results. Each
// visit is an entry beacon followed by its exit beacon.
func runTest(ctx context.Context, cfg *PerfConfig) <-chan Result {
	results := make(chan Result, cfg.Concurrency*10)
	var wg sync.WaitGroup

	var interval time.Duration
	if cfg.VisitsPerSec > 0 {
		interval = time.Duration(float64(time.Second) * float64(cfg.Concurrency) / float64(cfg.VisitsPerSec))
	}

	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			client := &http.Client{Timeout: cfg.Timeout}
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

			var tick <-chan time.Time
			if interval > 0 {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				tick = ticker.C
			}

			for {
				if tick != nil {
					select {
					case <-tick:
					case <-ctx.Done():
						return
					}
				} else if ctx.Err() != nil {
					return
				}

				for _, b := range generateVisit(rng, cfg, time.Now().UTC()) {
					results <- sendBeacon(ctx, client, cfg, b)
				}
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()
	return results
}

// generateVisit returns an entry and a matching exit beacon for one random
// visitor. Times are epoch milliseconds like a browser sends them.
func generateVisit(rng *rand.Rand, cfg *PerfConfig, now time.Time) []beacon {
	visitor := uuid.NewString()
	url := "https://" + cfg.Domain + paths[rng.Intn(len(paths))]
	entry := now.Add(-time.Duration(rng.Intn(12*3600)) * time.Second)
	active := time.Duration(5+rng.Intn(600)) * time.Second

	return []beacon{
		{
			Type:      events.BeaconEntry,
			WebsiteID: cfg.WebsiteID,
			Domain:    cfg.Domain,
			URL:       url,
			Referrer:  referrerPool[rng.Intn(len(referrerPool))],
			VisitorID: visitor,
			EntryTime: entry.UnixMilli(),
		},
		{
			Type:            events.BeaconExit,
			WebsiteID:       cfg.WebsiteID,
			Domain:          cfg.Domain,
			URL:             url,
			VisitorID:       visitor,
			ExitTime:        entry.Add(active).UnixMilli(),
			TotalActiveTime: active.Milliseconds(),
		},
	}
}

func sendBeacon(ctx context.Context, client *http.Client, cfg *PerfConfig, b beacon) Result {
	body, err := json.Marshal(b)
	if err != nil {
		return Result{Error: fmt.Errorf("failed to marshal beacon: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/api/track", bytes.NewReader(body))
	if err != nil {
		return Result{Error: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return Result{Duration: elapsed, Error: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return Result{Duration: elapsed, StatusCode: resp.StatusCode}
}

func (s *PerfStats) record(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Total++
	if r.Error != nil {
		s.Failed++
		return
	}
	s.StatusCodes[r.StatusCode]++
	s.ResponseTimes = append(s.ResponseTimes, r.Duration)
	if r.StatusCode != http.StatusOK {
		s.Failed++
	}
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// printResults displays the test results in an aligned table
func printResults(out io.Writer, stats *PerfStats) {
	elapsed := stats.EndTime.Sub(stats.StartTime)
	sort.Slice(stats.ResponseTimes, func(i, j int) bool { return stats.ResponseTimes[i] < stats.ResponseTimes[j] })

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "\nMETRIC\tVALUE\n")
	fmt.Fprintf(w, "------\t-----\n")
	fmt.Fprintf(w, "Duration\t%v\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Requests\t%d\n", stats.Total)
	fmt.Fprintf(w, "Failed\t%d\n", stats.Failed)
	if secs := elapsed.Seconds(); secs > 0 {
		fmt.Fprintf(w, "Requests/sec\t%.2f\n", float64(stats.Total)/secs)
	}
	fmt.Fprintf(w, "p50\t%v\n", percentile(stats.ResponseTimes, 0.50))
	fmt.Fprintf(w, "p95\t%v\n", percentile(stats.ResponseTimes, 0.95))
	fmt.Fprintf(w, "p99\t%v\n", percentile(stats.ResponseTimes, 0.99))
	w.Flush()

	if len(stats.StatusCodes) == 0 {
		return
	}
	codes := make([]int, 0, len(stats.StatusCodes))
	for code := range stats.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "\nSTATUS\tCOUNT\n")
	for _, code := range codes {
		fmt.Fprintf(w, "%d\t%d\n", code, stats.StatusCodes[code])
	}
	w.Flush()
}
