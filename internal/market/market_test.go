package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func day(s string) time.Time {
	d, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return d
}

const chartBody = `{
  "chart": {
    "result": [{
      "timestamp": [1704844800, 1704931200, 1705017600],
      "indicators": {
        "quote": [{
          "open":   [12.0, 12.3, null],
          "high":   [12.6, 12.8, 13.0],
          "low":    [11.9, 12.1, 12.4],
          "close":  [12.34, 12.50, 12.80],
          "volume": [1000, 1200, null]
        }]
      }
    }],
    "error": null
  }
}`

func TestDailyBars(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	bars, err := c.DailyBars(context.Background(), "AAA", "3mo")
	if err != nil {
		t.Fatalf("daily bars: %v", err)
	}
	if gotPath != "/AAA" || gotQuery != "interval=1d&range=3mo" {
		t.Fatalf("request = %s?%s", gotPath, gotQuery)
	}

	// Third session has a null open and must be dropped.
	if len(bars) != 2 {
		t.Fatalf("bars = %d, want 2", len(bars))
	}
	if !bars[0].Date.Equal(day("2024-01-10")) || bars[0].Close != 12.34 || bars[0].Volume != 1000 {
		t.Fatalf("first bar = %+v", bars[0])
	}
	if !bars[1].Date.Equal(day("2024-01-11")) {
		t.Fatalf("second bar date = %v", bars[1].Date)
	}
}

func TestDailyBarsRaggedQuoteArrays(t *testing.T) {
	// Quote arrays shorter than the timestamp array must drop the tail
	// bars, not panic.
	body := `{
	  "chart": {
	    "result": [{
	      "timestamp": [1704844800, 1704931200, 1705017600],
	      "indicators": {
	        "quote": [{
	          "open":   [12.0],
	          "high":   [12.6, 12.8, 13.0],
	          "low":    [11.9, 12.1, 12.4],
	          "close":  [12.34, 12.50],
	          "volume": [1000]
	        }]
	      }
	    }],
	    "error": null
	  }
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	bars, err := c.DailyBars(context.Background(), "AAA", "3mo")
	if err != nil {
		t.Fatalf("daily bars: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("bars = %d, want 1 (only the fully populated session)", len(bars))
	}
	if !bars[0].Date.Equal(day("2024-01-10")) {
		t.Fatalf("bar date = %v", bars[0].Date)
	}
}

func TestDailyBarsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"no data"}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	if _, err := c.DailyBars(context.Background(), "GHOST", "3mo"); err == nil {
		t.Fatal("expected api error")
	}
}

func TestDailyBarsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "throttled", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	if _, err := c.DailyBars(context.Background(), "AAA", "3mo"); err == nil {
		t.Fatal("expected status error")
	}
}

func TestCleanSortsAndDedupes(t *testing.T) {
	bars := []Bar{
		{Date: day("2024-01-11"), Close: 2},
		{Date: day("2024-01-10"), Close: 1},
		{Date: day("2024-01-11"), Close: 3},
	}
	out := Clean(bars)
	if len(out) != 2 {
		t.Fatalf("bars = %d, want 2", len(out))
	}
	if !out[0].Date.Equal(day("2024-01-10")) || !out[1].Date.Equal(day("2024-01-11")) {
		t.Fatalf("order = %v, %v", out[0].Date, out[1].Date)
	}
	if out[1].Close != 2 {
		t.Fatalf("dedupe kept close = %v, want first occurrence 2", out[1].Close)
	}
}

func TestStagingCSVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	bars := []Bar{
		{Date: day("2024-01-10"), Open: 12.0, High: 12.6, Low: 11.9, Close: 12.34, Volume: 1000},
		{Date: day("2024-01-11"), Open: 12.3, High: 12.8, Low: 12.1, Close: 12.5, Volume: 1200},
	}

	path, err := WriteStagingCSV(dir, "AAA", bars)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Base(path) != "staging_AAA.csv" {
		t.Fatalf("path = %s", path)
	}

	rows, err := ReadStagingCSV(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Ticker != "AAA" || !rows[0].Date.Equal(day("2024-01-10")) {
		t.Fatalf("row = %+v", rows[0])
	}
	if rows[0].ClosePrice.String() != "12.34" || rows[1].ClosePrice.String() != "12.5" {
		t.Fatalf("closes = %s, %s", rows[0].ClosePrice, rows[1].ClosePrice)
	}
}

func TestReadStagingCSVRejectsMalformedRow(t *testing.T) {
	dir := t.TempDir()
	content := "date,close_price,open_price,high_price,low_price,volume,ticker\n" +
		"2024-01-10,12.34,12.00,12.60,11.90,1000,AAA\n" +
		"2024-01-11,not-a-price,12.30,12.80,12.10,1200,AAA\n"
	path := filepath.Join(dir, "staging_AAA.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadStagingCSV(path); err == nil {
		t.Fatal("expected whole-file failure on malformed row")
	}
}

func TestReadStagingDirCollectsAllTickers(t *testing.T) {
	dir := t.TempDir()
	if _, err := WriteStagingCSV(dir, "AAA", []Bar{{Date: day("2024-01-10"), Close: 1}}); err != nil {
		t.Fatalf("write AAA: %v", err)
	}
	if _, err := WriteStagingCSV(dir, "BBB", []Bar{{Date: day("2024-01-10"), Close: 2}}); err != nil {
		t.Fatalf("write BBB: %v", err)
	}

	rows, err := ReadStagingDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
}
