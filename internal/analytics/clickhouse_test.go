package analytics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sharecrop/internal/models"
)

type MockConn struct {
	mock.Mock
}

func (m *MockConn) Exec(ctx context.Context, query string, args ...any) error {
	return m.Called(ctx, query, args).Error(0)
}

func (m *MockConn) QueryRow(ctx context.Context, query string, args ...any) driver.Row {
	return m.Called(ctx, query, args).Get(0).(driver.Row)
}

func (m *MockConn) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	ret := m.Called(ctx, query, args)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(driver.Rows), ret.Error(1)
}

func (m *MockConn) Close() error { return nil }

// sliceRows serves fixed rows. Methods the sink never calls stay nil.
type sliceRows struct {
	driver.Rows
	rows [][]any
	pos  int
}

func (r *sliceRows) Next() bool {
	r.pos++
	return r.pos <= len(r.rows)
}

func (r *sliceRows) Scan(dest ...any) error {
	if len(dest) > 0 {
		if p, ok := dest[0].(*time.Time); ok {
			*p = r.rows[r.pos-1][0].(time.Time)
		}
	}
	return staticRow{values: r.rows[r.pos-1]}.Scan(dest...)
}

func (r *sliceRows) Close() error { return nil }
func (r *sliceRows) Err() error   { return nil }

type staticRow struct {
	values []any
	err    error
}

func (r staticRow) Err() error { return r.err }

func (r staticRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *uint64:
			*p = r.values[i].(uint64)
		case *float64:
			*p = r.values[i].(float64)
		case *string:
			*p = r.values[i].(string)
		case *int64:
			*p = r.values[i].(int64)
		}
	}
	return nil
}

func (r staticRow) ScanStruct(any) error { return errors.New("not supported") }

func TestRecordPurchase(t *testing.T) {
	conn := new(MockConn)
	sink := NewSinkWithConn(conn, "sharecrop")
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	conn.On("Exec", mock.Anything, mock.MatchedBy(func(q string) bool {
		return strings.Contains(q, "INSERT INTO sharecrop.purchases")
	}), mock.MatchedBy(func(args []any) bool {
		return len(args) == 10 &&
			args[0] == "o1" &&
			args[5].(decimal.Decimal).Equal(decimal.RequireFromString("5.50")) &&
			args[8] == uint8(1) &&
			args[9] == at
	})).Return(nil).Once()

	err := sink.RecordPurchase(context.Background(), models.PurchaseEvent{
		OrderID: "o1", ListingID: "l1", BuyerID: "b", FarmerID: "f",
		Quantity: 10, TotalCost: "5.50", Coins: 1, ShippingMethod: models.ShippingPickup,
		FarmerCreated: true, OccurredAt: at,
	})
	require.NoError(t, err)
	conn.AssertExpectations(t)
}

func TestRecordPurchase_BadTotal(t *testing.T) {
	sink := NewSinkWithConn(new(MockConn), "sharecrop")
	err := sink.RecordPurchase(context.Background(), models.PurchaseEvent{OrderID: "o1", TotalCost: "lots"})
	assert.ErrorContains(t, err, "o1")
}

func TestFarmerSummary(t *testing.T) {
	conn := new(MockConn)
	sink := NewSinkWithConn(conn, "sharecrop")
	conn.On("QueryRow", mock.Anything, mock.Anything, []any{"f"}).
		Return(staticRow{values: []any{uint64(2), 30.0, "16.50", int64(3)}})

	summary, err := sink.FarmerSummary(context.Background(), "f")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), summary.Purchases)
	assert.Equal(t, 30.0, summary.AreaSold)
	assert.True(t, summary.Revenue.Equal(decimal.RequireFromString("16.5")))
	assert.Equal(t, int64(3), summary.Coins)
}

func TestEnsureSchema(t *testing.T) {
	conn := new(MockConn)
	sink := NewSinkWithConn(conn, "sharecrop")
	conn.On("Exec", mock.Anything, mock.MatchedBy(func(q string) bool {
		return strings.Contains(q, "CREATE TABLE IF NOT EXISTS sharecrop.purchases") && strings.Contains(q, "ReplacingMergeTree")
	}), mock.Anything).Return(nil)

	require.NoError(t, sink.EnsureSchema(context.Background()))
	conn.AssertExpectations(t)
}

func TestDailySales(t *testing.T) {
	conn := new(MockConn)
	sink := NewSinkWithConn(conn, "sharecrop")
	d1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)

	conn.On("Query", mock.Anything, mock.MatchedBy(func(q string) bool {
		return strings.Contains(q, "GROUP BY day")
	}), []any{"f", 30}).Return(&sliceRows{rows: [][]any{
		{d1, uint64(1), 10.0, "5.50"},
		{d2, uint64(2), 20.0, "11"},
	}}, nil)

	days, err := sink.DailySales(context.Background(), "f", 30)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, d1, days[0].Date)
	assert.Equal(t, uint64(2), days[1].Purchases)
	assert.True(t, days[1].Revenue.Equal(decimal.NewFromInt(11)))
}

func TestDailySales_QueryError(t *testing.T) {
	conn := new(MockConn)
	sink := NewSinkWithConn(conn, "sharecrop")
	conn.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("down"))

	_, err := sink.DailySales(context.Background(), "f", 7)
	assert.EqualError(t, err, "down")
}
