package analytics

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"

	"sharecrop/internal/config"
	"sharecrop/internal/models"
)

// Conn is the part of driver.Conn the sink uses.
type Conn interface {
	Exec(ctx context.Context, query string, args ...any) error
	QueryRow(ctx context.Context, query string, args ...any) driver.Row
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
	Close() error
}

// Sink records committed purchases in ClickHouse.
type Sink struct {
	conn     Conn
	database string
}

func NewSink(cfg config.ClickHouseConfig) (*Sink, error) {
	opts := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		DialTimeout:  30 * time.Second,
	}

	// 8443 is the TLS port; the native port 9000 is plain.
	if cfg.Port == 8443 {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return NewSinkWithConn(conn, cfg.Database), nil
}

func NewSinkWithConn(conn Conn, database string) *Sink {
	return &Sink{conn: conn, database: database}
}

func (s *Sink) Close() error {
	return s.conn.Close()
}

// EnsureSchema creates the purchases table if it is missing.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.purchases (
			order_id        String,
			listing_id      String,
			buyer_id        String,
			farmer_id       String,
			quantity        Float64,
			total_cost      Decimal(18, 2),
			coins           Int64,
			shipping_method LowCardinality(String),
			farmer_created  UInt8,
			occurred_at     DateTime64(3, 'UTC')
		) ENGINE = ReplacingMergeTree
		ORDER BY (farmer_id, order_id)
	`, s.database)
	return s.conn.Exec(ctx, query)
}

// RecordPurchase inserts one purchase row. Replays of the same order
// collapse in the ReplacingMergeTree.
func (s *Sink) RecordPurchase(ctx context.Context, event models.PurchaseEvent) error {
	total, err := decimal.NewFromString(event.TotalCost)
	if err != nil {
		return fmt.Errorf("invalid total cost %q for order %s: %w", event.TotalCost, event.OrderID, err)
	}

	var farmerCreated uint8
	if event.FarmerCreated {
		farmerCreated = 1
	}

	query := fmt.Sprintf(`
		INSERT INTO %s.purchases (
			order_id, listing_id, buyer_id, farmer_id, quantity,
			total_cost, coins, shipping_method, farmer_created, occurred_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.database)

	return s.conn.Exec(ctx, query,
		event.OrderID,
		event.ListingID,
		event.BuyerID,
		event.FarmerID,
		event.Quantity,
		total,
		event.Coins,
		string(event.ShippingMethod),
		farmerCreated,
		event.OccurredAt,
	)
}

// FarmerSummary is the all-time purchase volume on one farmer's listings.
type FarmerSummary struct {
	FarmerID  string          `json:"farmer_id"`
	Purchases uint64          `json:"purchases"`
	AreaSold  float64         `json:"area_sold"`
	Revenue   decimal.Decimal `json:"revenue"`
	Coins     int64           `json:"coins"`
}

func (s *Sink) FarmerSummary(ctx context.Context, farmerID string) (*FarmerSummary, error) {
	query := fmt.Sprintf(`
		SELECT
			count(),
			sum(quantity),
			toString(sum(total_cost)),
			sum(coins)
		FROM %s.purchases FINAL
		WHERE farmer_id = ?
	`, s.database)

	row := s.conn.QueryRow(ctx, query, farmerID)

	var (
		purchases uint64
		area      float64
		revenue   string
		coins     int64
	)
	if err := row.Scan(&purchases, &area, &revenue, &coins); err != nil {
		return nil, err
	}

	rev, err := decimal.NewFromString(revenue)
	if err != nil {
		return nil, fmt.Errorf("invalid revenue %q: %w", revenue, err)
	}

	return &FarmerSummary{
		FarmerID:  farmerID,
		Purchases: purchases,
		AreaSold:  area,
		Revenue:   rev,
		Coins:     coins,
	}, nil
}

// DailySales is one day of purchases on a farmer's listings.
type DailySales struct {
	Date      time.Time       `json:"date"`
	Purchases uint64          `json:"purchases"`
	AreaSold  float64         `json:"area_sold"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// DailySales returns per-day totals for the last days days, oldest first.
func (s *Sink) DailySales(ctx context.Context, farmerID string, days int) ([]DailySales, error) {
	query := fmt.Sprintf(`
		SELECT
			toDate(occurred_at) AS day,
			count(),
			sum(quantity),
			toString(sum(total_cost))
		FROM %s.purchases FINAL
		WHERE farmer_id = ? AND occurred_at >= now() - toIntervalDay(?)
		GROUP BY day
		ORDER BY day
	`, s.database)

	rows, err := s.conn.Query(ctx, query, farmerID, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []DailySales{}
	for rows.Next() {
		var (
			day     DailySales
			revenue string
		)
		if err := rows.Scan(&day.Date, &day.Purchases, &day.AreaSold, &revenue); err != nil {
			return nil, err
		}
		if day.Revenue, err = decimal.NewFromString(revenue); err != nil {
			return nil, fmt.Errorf("invalid revenue %q: %w", revenue, err)
		}
		out = append(out, day)
	}
	return out, rows.Err()
}
