package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"investassist/internal/db"
	"investassist/internal/models"
	"investassist/internal/repository"
)

// Broker export column positions. The export carries more columns than we
// keep; these are the ones the portfolio needs.
const (
	colDate     = 0
	colTime     = 1
	colISIN     = 3
	colQuantity = 6
	colPrice    = 7
	colValue    = 11
	colFee      = 14

	minBrokerColumns = 15
)

// TransactionLoader ingests the broker's transaction CSV export through the
// staging table. Reconciliation joins staging to assets on ISIN and dedups
// on the full row, so re-importing an overlapping export is safe.
type TransactionLoader struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

// ParseBrokerCSV reads one export file into staging rows. Broker exports
// routinely carry incomplete lines (cash movements, corporate actions), so
// rows that do not parse are dropped and counted rather than failing the
// file; only a structurally unreadable file is an error.
func ParseBrokerCSV(path string) ([]models.StagingTransaction, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	rows := make([]models.StagingTransaction, 0, len(records)-1)
	var dropped []string
	for i, rec := range records[1:] {
		row, err := parseBrokerRecord(rec)
		if err != nil {
			dropped = append(dropped, fmt.Sprintf("%s line %d: %v", filepath.Base(path), i+2, err))
			continue
		}
		rows = append(rows, row)
	}
	return rows, dropped, nil
}

func parseBrokerRecord(rec []string) (models.StagingTransaction, error) {
	if len(rec) < minBrokerColumns {
		return models.StagingTransaction{}, fmt.Errorf("expected at least %d fields, got %d", minBrokerColumns, len(rec))
	}

	date, err := time.ParseInLocation("02-01-2006", rec[colDate], time.UTC)
	if err != nil {
		return models.StagingTransaction{}, fmt.Errorf("bad date %q: %w", rec[colDate], err)
	}
	quantity, err := strconv.Atoi(rec[colQuantity])
	if err != nil {
		return models.StagingTransaction{}, fmt.Errorf("bad quantity %q: %w", rec[colQuantity], err)
	}
	price, err := decimal.NewFromString(rec[colPrice])
	if err != nil {
		return models.StagingTransaction{}, fmt.Errorf("bad price %q: %w", rec[colPrice], err)
	}
	value, err := decimal.NewFromString(rec[colValue])
	if err != nil {
		return models.StagingTransaction{}, fmt.Errorf("bad value %q: %w", rec[colValue], err)
	}

	// The fee column is blank on fee-free fills and negative on the rest.
	fee := decimal.Zero
	if raw := strings.TrimSpace(rec[colFee]); raw != "" {
		fee, err = decimal.NewFromString(raw)
		if err != nil {
			return models.StagingTransaction{}, fmt.Errorf("bad fee %q: %w", raw, err)
		}
		fee = fee.Abs()
	}

	return models.StagingTransaction{
		Date:     db.Day(date),
		Time:     rec[colTime],
		ISIN:     strings.TrimSpace(rec[colISIN]),
		Quantity: quantity,
		Price:    price,
		Value:    value,
		Fee:      fee,
	}, nil
}

// LoadFile parses and loads one broker export. Unparseable rows are logged
// and skipped; the rest of the export still loads.
func (l *TransactionLoader) LoadFile(ctx context.Context, path string) (int64, error) {
	if l == nil || l.Repo == nil {
		return 0, fmt.Errorf("transaction loader not configured")
	}
	rows, dropped, err := ParseBrokerCSV(path)
	if err != nil {
		return 0, fmt.Errorf("parse broker export: %w", err)
	}
	for _, reason := range dropped {
		l.logWarn("dropping unparseable export row", zap.String("row", reason))
	}
	return l.Load(ctx, rows)
}

// Load stages and reconciles the rows in one transaction. Rows whose ISIN
// matches no asset fall out of the join; the portfolio only tracks assets
// it knows.
func (l *TransactionLoader) Load(ctx context.Context, rows []models.StagingTransaction) (int64, error) {
	if l == nil || l.Repo == nil {
		return 0, fmt.Errorf("transaction loader not configured")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	var inserted int64
	err := l.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := l.Repo.StageTransactionsTx(ctx, tx, rows); err != nil {
			return fmt.Errorf("stage transactions: %w", err)
		}
		var err error
		inserted, err = l.Repo.ReconcileTransactionsTx(ctx, tx)
		if err != nil {
			return fmt.Errorf("reconcile transactions: %w", err)
		}
		if err := l.Repo.ClearTransactionStagingTx(ctx, tx); err != nil {
			return fmt.Errorf("clear transaction staging: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if dropped := int64(len(rows)) - inserted; dropped > 0 {
		l.logWarn("staged transactions not inserted",
			zap.Int64("rows", dropped))
	}
	l.logInfo("transaction batch loaded",
		zap.Int("staged", len(rows)),
		zap.Int64("inserted", inserted))
	return inserted, nil
}

func (l *TransactionLoader) logInfo(msg string, fields ...zap.Field) {
	if l == nil || l.Logger == nil {
		return
	}
	l.Logger.Info(msg, fields...)
}

func (l *TransactionLoader) logWarn(msg string, fields ...zap.Field) {
	if l == nil || l.Logger == nil {
		return
	}
	l.Logger.Warn(msg, fields...)
}
