package batch

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"investassist/internal/db"
	"investassist/internal/history"
	"investassist/internal/indicator"
	"investassist/internal/models"
	"investassist/internal/pipeline"
	"investassist/internal/repository"
)

// RunStateScope keys the indicator batch's bookkeeping row.
const RunStateScope = "indicators"

var derivedHeader = []string{"date", "sma_short", "sma_long", "rsi", "ticker"}

// Runner drives one indicator batch end to end: read each asset's recent
// close prices, compute the latest indicator row, write the derived CSV,
// and reconcile the batch into the permanent table through staging.
// Per-asset problems become skips; only store-level failures abort the run.
type Runner struct {
	Reader *history.Reader
	Engine indicator.Engine
	Loader *pipeline.IndicatorLoader
	Repo   repository.Repository
	Logger *zap.Logger

	Tickers []string
	// DataDir, when set, receives a dated CSV of the computed rows so the
	// batch output survives independently of the load.
	DataDir string
}

// RunReport summarizes one batch for callers and for the run-state row.
type RunReport struct {
	Started  time.Time         `json:"started"`
	Finished time.Time         `json:"finished"`
	Tickers  int               `json:"tickers"`
	Computed int               `json:"computed"`
	Inserted int64             `json:"inserted"`
	// Watermark is the newest indicator date in the batch.
	Watermark *time.Time        `json:"watermark,omitempty"`
	Skipped   map[string]string `json:"skipped,omitempty"`
}

// Run executes one batch. The returned report is valid even on error.
func (r *Runner) Run(ctx context.Context) (RunReport, error) {
	if r == nil || r.Reader == nil || r.Loader == nil {
		return RunReport{}, fmt.Errorf("batch runner not configured")
	}
	report := RunReport{
		Started: db.NowUTC(),
		Tickers: len(r.Tickers),
		Skipped: make(map[string]string),
	}

	tickers := append([]string(nil), r.Tickers...)
	sort.Strings(tickers)

	series, skipped := r.Reader.Fetch(ctx, tickers)
	for ticker, reason := range skipped {
		report.Skipped[ticker] = reason
	}

	var rows []indicator.Row
	for _, ticker := range tickers {
		s, ok := series[ticker]
		if !ok {
			continue
		}
		row, ok := r.Engine.Compute(ticker, s)
		if !ok {
			report.Skipped[ticker] = "history too short for every indicator"
			r.logWarn("skipping asset with insufficient history",
				zap.String("ticker", ticker), zap.Int("sessions", len(s)))
			continue
		}
		rows = append(rows, row)
		if report.Watermark == nil || row.Date.After(*report.Watermark) {
			d := db.Day(row.Date)
			report.Watermark = &d
		}
	}
	report.Computed = len(rows)

	if r.DataDir != "" && len(rows) > 0 {
		path, err := writeDerivedCSV(r.DataDir, report.Started, rows)
		if err != nil {
			return r.finish(ctx, report, fmt.Errorf("write derived csv: %w", err))
		}
		r.logInfo("derived indicators written", zap.String("path", path))
	}

	inserted, err := r.Loader.Load(ctx, rows)
	if err != nil {
		return r.finish(ctx, report, fmt.Errorf("load indicators: %w", err))
	}
	report.Inserted = inserted

	return r.finish(ctx, report, nil)
}

// finish stamps the report and persists the run-state row. Bookkeeping
// failures are logged, not propagated; the batch outcome already stands.
func (r *Runner) finish(ctx context.Context, report RunReport, runErr error) (RunReport, error) {
	report.Finished = db.NowUTC()

	if r.Repo != nil {
		state := &models.EtlRunState{
			Scope:         RunStateScope,
			LastAttemptAt: &report.Finished,
		}
		if runErr == nil {
			state.LastSuccessAt = &report.Finished
			state.WatermarkDate = report.Watermark
		} else {
			msg := runErr.Error()
			state.LastError = &msg
		}
		if stats, err := json.Marshal(report); err == nil {
			state.StatsJSON = datatypes.JSON(stats)
		}
		if err := r.Repo.SaveRunState(ctx, state); err != nil {
			r.logWarn("saving run state failed", zap.Error(err))
		}
	}

	if runErr != nil {
		r.logWarn("indicator batch failed", zap.Error(runErr))
		return report, runErr
	}
	r.logInfo("indicator batch finished",
		zap.Int("tickers", report.Tickers),
		zap.Int("computed", report.Computed),
		zap.Int64("inserted", report.Inserted),
		zap.Int("skipped", len(report.Skipped)))
	return report, nil
}

// writeDerivedCSV writes the computed rows to indicators_<yyyymmdd>.csv,
// atomically, matching the staging-file convention.
func writeDerivedCSV(dir string, asOf time.Time, rows []indicator.Row) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, "indicators_*.tmp")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(derivedHeader); err != nil {
		tmp.Close()
		return "", err
	}
	for _, row := range rows {
		record := []string{
			row.Date.Format("2006-01-02"),
			formatOptional(row.SMAShort),
			formatOptional(row.SMALong),
			formatOptional(row.RSI),
			row.Ticker,
		}
		if err := w.Write(record); err != nil {
			tmp.Close()
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	path := filepath.Join(dir, "indicators_"+asOf.Format("20060102")+".csv")
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}

// formatOptional renders an undefined indicator as an empty field.
func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func (r *Runner) logInfo(msg string, fields ...zap.Field) {
	if r == nil || r.Logger == nil {
		return
	}
	r.Logger.Info(msg, fields...)
}

func (r *Runner) logWarn(msg string, fields ...zap.Field) {
	if r == nil || r.Logger == nil {
		return
	}
	r.Logger.Warn(msg, fields...)
}
