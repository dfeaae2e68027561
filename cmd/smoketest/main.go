// Service smoketest drives an end-to-end pass against a running receiver:
// login, device registration, batch ingest, paged reads, table discovery and
// the rate limiter. It exits non-zero on the first failed step, which makes
// it usable as a deploy gate.
//
// The target table must already exist, or the receiver must run the memory
// backend, which creates tables on first insert.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/rantahar/aware-filter/internal/config"
	"github.com/rantahar/aware-filter/internal/httpx"
)

func main() {
	cfg := config.LoadSmoke()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slogLevel(cfg.LogLevel),
	})))

	if cfg.StudyPassword == "" {
		slog.Error("STUDY_PASSWORD must be set")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		slog.Error("smoke test failed", "error", err)
		os.Exit(1)
	}
	slog.Info("smoke test passed")
}

func run(ctx context.Context, cfg config.Smoke) error {
	client := httpx.NewClient(30*time.Second, 2)
	deviceID := "smoke-" + uuid.NewString()

	if err := waitHealthy(ctx, client, cfg.BaseURL); err != nil {
		return err
	}

	token, err := login(ctx, client, cfg)
	if err != nil {
		return err
	}
	slog.Info("logged in")

	if err := registerDevice(ctx, client, cfg, deviceID); err != nil {
		return err
	}
	if err := ingestRows(ctx, client, cfg, deviceID); err != nil {
		return err
	}
	if err := verifyData(ctx, client, cfg, token, deviceID); err != nil {
		return err
	}
	if err := verifyPagination(ctx, client, cfg, token, deviceID); err != nil {
		return err
	}
	if err := verifyDiscovery(ctx, client, cfg, token, deviceID); err != nil {
		return err
	}
	if err := verifyRateLimit(ctx, client, cfg, deviceID); err != nil {
		return err
	}
	return logStats(ctx, client, cfg)
}

// ---------------------------------------------------------------------------
// Steps
// ---------------------------------------------------------------------------

func waitHealthy(ctx context.Context, client *httpx.Client, baseURL string) error {
	for {
		status, err := client.DoJSON(ctx, http.MethodGet, baseURL+"/health", "", nil, nil)
		if err == nil && status == http.StatusOK {
			return nil
		}
		slog.Info("waiting for receiver", "status", status)
		select {
		case <-ctx.Done():
			return fmt.Errorf("receiver never became healthy: %w", ctx.Err())
		case <-time.After(time.Second):
		}
	}
}

func login(ctx context.Context, client *httpx.Client, cfg config.Smoke) (string, error) {
	var res struct {
		Token     string `json:"token"`
		ExpiresIn int64  `json:"expires_in"`
	}
	status, err := client.DoJSON(ctx, http.MethodPost, cfg.BaseURL+"/login", "",
		map[string]string{"password": cfg.StudyPassword}, &res)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if status != http.StatusOK || res.Token == "" {
		return "", fmt.Errorf("login: status %d", status)
	}
	return res.Token, nil
}

func registerDevice(ctx context.Context, client *httpx.Client, cfg config.Smoke, deviceID string) error {
	row := map[string]any{
		"device_uuid": deviceID,
		// Explicit surrogate id keeps the memory backend, which has no
		// autoincrement, on the same path as SQL.
		"id": time.Now().UnixNano(),
	}
	status, err := client.DoJSON(ctx, http.MethodPost, insertURL(cfg, "device_lookup"), "", row, nil)
	if err != nil {
		return fmt.Errorf("register device: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("register device: status %d", status)
	}
	slog.Info("device registered", "device_id", deviceID)
	return nil
}

func ingestRows(ctx context.Context, client *httpx.Client, cfg config.Smoke, deviceID string) error {
	base := time.Now().Add(-time.Hour).UnixMicro()
	records := make([]map[string]any, cfg.Rows)
	for i := range records {
		records[i] = map[string]any{
			"device_id": deviceID,
			// 250 ms spacing clears the default 5 Hz rate limit.
			"timestamp":    base + int64(i)*250_000,
			"double_value": float64(i) / 10,
			"accuracy":     3,
		}
	}

	var res struct {
		Status   string `json:"status"`
		Inserted int    `json:"inserted"`
		Errors   int    `json:"errors"`
	}
	status, err := client.DoJSON(ctx, http.MethodPost, insertURL(cfg, cfg.Table), "", records, &res)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	if status != http.StatusOK || res.Inserted != cfg.Rows {
		return fmt.Errorf("ingest: status %d, inserted %d of %d (errors %d)",
			status, res.Inserted, cfg.Rows, res.Errors)
	}
	slog.Info("ingested", "rows", res.Inserted, "table", cfg.Table)
	return nil
}

func verifyData(ctx context.Context, client *httpx.Client, cfg config.Smoke, token, deviceID string) error {
	page, err := fetchPage(ctx, client, cfg, token, deviceID, cfg.Rows+10, 0)
	if err != nil {
		return err
	}
	if page.TotalCount != cfg.Rows {
		return fmt.Errorf("data: total_count %d, want %d", page.TotalCount, cfg.Rows)
	}

	prev := int64(math.MinInt64)
	for i, rec := range page.Data {
		ts, ok := asInt64(rec["timestamp"])
		if !ok {
			return fmt.Errorf("data: row %d has no numeric timestamp", i)
		}
		if ts < prev {
			return fmt.Errorf("data: timestamps out of order at row %d", i)
		}
		prev = ts
	}
	slog.Info("data verified", "rows", page.Count)
	return nil
}

func verifyPagination(ctx context.Context, client *httpx.Client, cfg config.Smoke, token, deviceID string) error {
	limit := cfg.Rows/3 + 1
	seen, offset := 0, 0
	for {
		page, err := fetchPage(ctx, client, cfg, token, deviceID, limit, offset)
		if err != nil {
			return err
		}
		seen += page.Count
		if !page.HasMore {
			break
		}
		if page.Count == 0 {
			return fmt.Errorf("pagination: empty page at offset %d with has_more set", offset)
		}
		offset += page.Count
	}
	if seen != cfg.Rows {
		return fmt.Errorf("pagination: walked %d rows, want %d", seen, cfg.Rows)
	}
	slog.Info("pagination verified", "rows", seen)
	return nil
}

func verifyDiscovery(ctx context.Context, client *httpx.Client, cfg config.Smoke, token, deviceID string) error {
	var res struct {
		TablesWithData []struct {
			Table string `json:"table"`
		} `json:"tables_with_data"`
		Count int `json:"count"`
	}
	url := fmt.Sprintf("%s/tables-for-device?device_id=%s", cfg.BaseURL, deviceID)
	status, err := client.DoJSON(ctx, http.MethodGet, url, token, nil, &res)
	if err != nil {
		return fmt.Errorf("discovery: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("discovery: status %d", status)
	}
	for _, t := range res.TablesWithData {
		if t.Table == cfg.Table {
			slog.Info("discovery verified", "tables", res.Count)
			return nil
		}
	}
	return fmt.Errorf("discovery: %s not reported (got %d tables)", cfg.Table, res.Count)
}

func verifyRateLimit(ctx context.Context, client *httpx.Client, cfg config.Smoke, deviceID string) error {
	base := time.Now().UnixMicro()
	burst := make([]map[string]any, 5)
	for i := range burst {
		burst[i] = map[string]any{
			"device_id": deviceID,
			// 1 kHz burst, far above the default 5 Hz cap.
			"timestamp":    base + int64(i)*1_000,
			"double_value": 1.0,
		}
	}

	var res struct {
		Inserted int `json:"inserted"`
	}
	status, err := client.DoJSON(ctx, http.MethodPost, insertURL(cfg, cfg.Table), "", burst, &res)
	if err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("rate limit: status %d", status)
	}
	if res.Inserted != 1 {
		return fmt.Errorf("rate limit: burst of %d stored %d rows, want 1", len(burst), res.Inserted)
	}
	slog.Info("rate limit verified", "burst", len(burst), "stored", res.Inserted)
	return nil
}

func logStats(ctx context.Context, client *httpx.Client, cfg config.Smoke) error {
	var res struct {
		Stats map[string]int64 `json:"stats"`
	}
	status, err := client.DoJSON(ctx, http.MethodGet, cfg.BaseURL+"/stats", "", nil, &res)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("stats: status %d", status)
	}
	slog.Info("server counters",
		"total_requests", res.Stats["total_requests"],
		"successful_inserts", res.Stats["successful_inserts"],
		"failed_inserts", res.Stats["failed_inserts"],
	)
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type dataPage struct {
	Data       []map[string]any `json:"data"`
	Count      int              `json:"count"`
	TotalCount int              `json:"total_count"`
	HasMore    bool             `json:"has_more"`
}

func fetchPage(ctx context.Context, client *httpx.Client, cfg config.Smoke, token, deviceID string, limit, offset int) (*dataPage, error) {
	url := fmt.Sprintf("%s/data?table=%s&device_id=%s&limit=%d&offset=%d",
		cfg.BaseURL, cfg.Table, deviceID, limit, offset)
	var page dataPage
	status, err := client.DoJSON(ctx, http.MethodGet, url, token, nil, &page)
	if err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("data: status %d", status)
	}
	return &page, nil
}

func insertURL(cfg config.Smoke, table string) string {
	return fmt.Sprintf("%s/webservice/index/smoke/%s/%s", cfg.BaseURL, cfg.StudyPassword, table)
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func slogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
