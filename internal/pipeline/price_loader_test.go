package pipeline

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"investassist/internal/market"
	"investassist/internal/models"
	gormrepository "investassist/internal/repository/gorm"
)

func stagingPrice(day, ticker string, close float64) models.StagingPrice {
	return models.StagingPrice{
		Date:       date(day),
		ClosePrice: decimal.NewFromFloat(close),
		OpenPrice:  decimal.NewFromFloat(close),
		HighPrice:  decimal.NewFromFloat(close),
		LowPrice:   decimal.NewFromFloat(close),
		Volume:     1000,
		Ticker:     ticker,
	}
}

func TestPriceLoadIsIdempotent(t *testing.T) {
	conn := openTestDB(t)
	seedAsset(t, conn, "AAA", "US0000000001")
	loader := &PriceLoader{Repo: gormrepository.New(conn.Gorm), Unresolved: UnresolvedSkip}

	rows := []models.StagingPrice{
		stagingPrice("2024-01-10", "AAA", 12.34),
		stagingPrice("2024-01-11", "AAA", 12.50),
	}

	inserted, err := loader.Load(context.Background(), rows)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("first load inserted = %d, want 2", inserted)
	}

	inserted, err = loader.Load(context.Background(), rows)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if inserted != 0 {
		t.Fatalf("second load inserted = %d, want 0", inserted)
	}
	if n := countRows(t, conn, &models.Price{}); n != 2 {
		t.Fatalf("price rows = %d, want 2", n)
	}
	if n := countRows(t, conn, &models.StagingPrice{}); n != 0 {
		t.Fatalf("staging rows = %d, want 0", n)
	}
}

func TestPriceLoadDirRoundTrip(t *testing.T) {
	conn := openTestDB(t)
	seedAsset(t, conn, "AAA", "US0000000001")

	dir := t.TempDir()
	bars := []market.Bar{
		{Date: date("2024-01-10"), Open: 12.0, High: 12.6, Low: 11.9, Close: 12.34, Volume: 1000},
		{Date: date("2024-01-11"), Open: 12.3, High: 12.8, Low: 12.1, Close: 12.50, Volume: 1200},
	}
	if _, err := market.WriteStagingCSV(dir, "AAA", bars); err != nil {
		t.Fatalf("write staging csv: %v", err)
	}

	loader := &PriceLoader{
		Repo:       gormrepository.New(conn.Gorm),
		StagingDir: dir,
		Unresolved: UnresolvedSkip,
	}
	inserted, err := loader.LoadDir(context.Background())
	if err != nil {
		t.Fatalf("load dir: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("inserted = %d, want 2", inserted)
	}

	var row models.Price
	if err := conn.Gorm.Where("date = ?", date("2024-01-10")).First(&row).Error; err != nil {
		t.Fatalf("find price: %v", err)
	}
	if !row.ClosePrice.Equal(decimal.NewFromFloat(12.34)) {
		t.Fatalf("close = %s, want 12.34", row.ClosePrice)
	}
}

func TestPriceLoadDirEmpty(t *testing.T) {
	conn := openTestDB(t)
	loader := &PriceLoader{
		Repo:       gormrepository.New(conn.Gorm),
		StagingDir: t.TempDir(),
		Unresolved: UnresolvedSkip,
	}
	inserted, err := loader.LoadDir(context.Background())
	if err != nil {
		t.Fatalf("load dir: %v", err)
	}
	if inserted != 0 {
		t.Fatalf("inserted = %d, want 0", inserted)
	}
}

func TestPriceLoadUnresolvedTickerFailPolicy(t *testing.T) {
	conn := openTestDB(t)
	seedAsset(t, conn, "AAA", "US0000000001")
	loader := &PriceLoader{Repo: gormrepository.New(conn.Gorm), Unresolved: UnresolvedFail}

	rows := []models.StagingPrice{
		stagingPrice("2024-01-10", "AAA", 12.34),
		stagingPrice("2024-01-10", "GHOST", 1.00),
	}
	if _, err := loader.Load(context.Background(), rows); err == nil {
		t.Fatal("expected failure under fail policy")
	}
	if n := countRows(t, conn, &models.Price{}); n != 0 {
		t.Fatalf("price rows = %d, want 0 after rollback", n)
	}
}
