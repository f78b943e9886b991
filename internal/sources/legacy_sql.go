package sources

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Registers the "postgres" driver for database/sql.
	_ "github.com/lib/pq"

	"inventory-reconciliation-service/internal/models"
	"inventory-reconciliation-service/pkg/logger"
)

// legacyStockQuery returns one row per item and legacy location with the
// three trailing months bucketed from the movement ledger.
//
// $1..$4 are the starts of m3, m2, m1 and the current month. $5 is the
// optional search pushdown.
const legacyStockQuery = `
SELECT i.item_code,
       i.item_name,
       b.location_code,
       b.qty_on_hand,
       COALESCE(SUM(m.qty) FILTER (WHERE m.kind = 'SALE'  AND m.moved_at >= $3 AND m.moved_at < $4), 0),
       COALESCE(SUM(m.qty) FILTER (WHERE m.kind = 'SALE'  AND m.moved_at >= $2 AND m.moved_at < $3), 0),
       COALESCE(SUM(m.qty) FILTER (WHERE m.kind = 'SALE'  AND m.moved_at >= $1 AND m.moved_at < $2), 0),
       COALESCE(SUM(m.qty) FILTER (WHERE m.kind <> 'SALE' AND m.moved_at >= $3 AND m.moved_at < $4), 0),
       COALESCE(SUM(m.qty) FILTER (WHERE m.kind <> 'SALE' AND m.moved_at >= $2 AND m.moved_at < $3), 0),
       COALESCE(SUM(m.qty) FILTER (WHERE m.kind <> 'SALE' AND m.moved_at >= $1 AND m.moved_at < $2), 0),
       i.reference_cost
FROM stock_balances b
JOIN items i ON i.item_code = b.item_code
LEFT JOIN stock_movements m
       ON m.item_code = b.item_code
      AND m.location_code = b.location_code
      AND m.moved_at >= $1 AND m.moved_at < $4
WHERE ($5 = '' OR i.item_code ILIKE '%' || $5 || '%' OR i.item_name ILIKE '%' || $5 || '%')
GROUP BY i.item_code, i.item_name, b.location_code, b.qty_on_hand, i.reference_cost
ORDER BY i.item_code, b.location_code`

// OpenLegacyDB opens and pings the legacy database.
func OpenLegacyDB(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("source A dsn is required for the postgres driver")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open legacy database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping legacy database: %w", err)
	}

	return db, nil
}

// LegacySQLSourceA reads Source-A rows from the legacy database.
type LegacySQLSourceA struct {
	db     *sql.DB
	logger logger.Logger
}

// NewLegacySQLSourceA creates an adapter over db.
func NewLegacySQLSourceA(db *sql.DB) *LegacySQLSourceA {
	return &LegacySQLSourceA{
		db:     db,
		logger: logger.GetGlobalLogger().WithComponent("legacy_sql_source_a"),
	}
}

// FetchSourceA implements SourceAFetcher
func (s *LegacySQLSourceA) FetchSourceA(ctx context.Context, filter FetchFilter) ([]models.SourceARow, error) {
	rows, err := s.db.QueryContext(ctx, legacyStockQuery, windowArgs(filter)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query legacy stock: %w", err)
	}
	defer rows.Close()

	var result []models.SourceARow
	for rows.Next() {
		var r models.SourceARow
		if err := rows.Scan(
			&r.ItemCode, &r.ItemName, &r.LocationCode, &r.Stock,
			&r.SalesM1, &r.SalesM2, &r.SalesM3,
			&r.OtherM1, &r.OtherM2, &r.OtherM3,
			&r.ReferenceCost,
		); err != nil {
			return nil, fmt.Errorf("failed to scan legacy stock row: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read legacy stock rows: %w", err)
	}

	s.logger.WithFields(logger.Fields{
		"rows":   len(result),
		"window": filter.Window.Key(),
	}).Debug("Fetched source A rows")

	return result, nil
}

// windowArgs returns the positional arguments shared by both SQL adapters.
func windowArgs(filter FetchFilter) []any {
	w := filter.Window
	return []any{w.Months[2], w.Months[1], w.Months[0], w.Current, filter.Search}
}
