package market

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"investassist/internal/models"
)

// stagingHeader is the per-ticker CSV contract consumed by the price
// staged-load pipeline.
var stagingHeader = []string{"date", "close_price", "open_price", "high_price", "low_price", "volume", "ticker"}

func StagingFileName(ticker string) string {
	return "staging_" + ticker + ".csv"
}

// WriteStagingCSV writes one ticker's bars to staging_<ticker>.csv in dir.
// The write is atomic (temp file + rename) so a crashed fetch never leaves
// a half-written file for the loader to pick up.
func WriteStagingCSV(dir, ticker string, bars []Bar) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(dir, "staging_*.tmp")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(stagingHeader); err != nil {
		tmp.Close()
		return "", err
	}
	for _, b := range bars {
		record := []string{
			b.Date.Format("2006-01-02"),
			strconv.FormatFloat(b.Close, 'f', 2, 64),
			strconv.FormatFloat(b.Open, 'f', 2, 64),
			strconv.FormatFloat(b.High, 'f', 2, 64),
			strconv.FormatFloat(b.Low, 'f', 2, 64),
			strconv.FormatInt(b.Volume, 10),
			ticker,
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

	path := filepath.Join(dir, StagingFileName(ticker))
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}

// ReadStagingCSV parses one staged price CSV back into staging rows.
// Any malformed record fails the whole file; a partially parsed file must
// never reach the staging table.
func ReadStagingCSV(path string) ([]models.StagingPrice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	rows := make([]models.StagingPrice, 0, len(records)-1)
	for i, rec := range records[1:] {
		row, err := parseStagingRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", filepath.Base(path), i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadStagingDir collects every staged ticker file in dir.
func ReadStagingDir(dir string) ([]models.StagingPrice, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "staging_*.csv"))
	if err != nil {
		return nil, err
	}

	var rows []models.StagingPrice
	for _, path := range paths {
		fileRows, err := ReadStagingCSV(path)
		if err != nil {
			return nil, err
		}
		rows = append(rows, fileRows...)
	}
	return rows, nil
}

func parseStagingRecord(rec []string) (models.StagingPrice, error) {
	if len(rec) != len(stagingHeader) {
		return models.StagingPrice{}, fmt.Errorf("expected %d fields, got %d", len(stagingHeader), len(rec))
	}
	date, err := time.ParseInLocation("2006-01-02", rec[0], time.UTC)
	if err != nil {
		return models.StagingPrice{}, fmt.Errorf("bad date %q: %w", rec[0], err)
	}
	closePrice, err := decimal.NewFromString(rec[1])
	if err != nil {
		return models.StagingPrice{}, fmt.Errorf("bad close_price %q: %w", rec[1], err)
	}
	openPrice, err := decimal.NewFromString(rec[2])
	if err != nil {
		return models.StagingPrice{}, fmt.Errorf("bad open_price %q: %w", rec[2], err)
	}
	highPrice, err := decimal.NewFromString(rec[3])
	if err != nil {
		return models.StagingPrice{}, fmt.Errorf("bad high_price %q: %w", rec[3], err)
	}
	lowPrice, err := decimal.NewFromString(rec[4])
	if err != nil {
		return models.StagingPrice{}, fmt.Errorf("bad low_price %q: %w", rec[4], err)
	}
	volume, err := strconv.ParseInt(rec[5], 10, 64)
	if err != nil {
		return models.StagingPrice{}, fmt.Errorf("bad volume %q: %w", rec[5], err)
	}
	return models.StagingPrice{
		Date:       date,
		ClosePrice: closePrice,
		OpenPrice:  openPrice,
		HighPrice:  highPrice,
		LowPrice:   lowPrice,
		Volume:     volume,
		Ticker:     rec[6],
	}, nil
}
