package sources

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"inventory-reconciliation-service/internal/models"
	"inventory-reconciliation-service/pkg/logger"
)

// erpStockQuery returns one row per item and ERP location. Deliveries are
// outbound delivery-order lines and issues are internal stock issues.
//
// $1..$4 are the starts of m3, m2, m1 and the current month. $5 is the
// optional search pushdown.
const erpStockQuery = `
WITH flow AS (
    SELECT product_id, location_id,
           SUM(qty) FILTER (WHERE kind = 'DELIVERY' AND posted_at >= $3 AND posted_at < $4) AS d1,
           SUM(qty) FILTER (WHERE kind = 'DELIVERY' AND posted_at >= $2 AND posted_at < $3) AS d2,
           SUM(qty) FILTER (WHERE kind = 'DELIVERY' AND posted_at >= $1 AND posted_at < $2) AS d3,
           SUM(qty) FILTER (WHERE kind = 'ISSUE'    AND posted_at >= $3 AND posted_at < $4) AS i1,
           SUM(qty) FILTER (WHERE kind = 'ISSUE'    AND posted_at >= $2 AND posted_at < $3) AS i2,
           SUM(qty) FILTER (WHERE kind = 'ISSUE'    AND posted_at >= $1 AND posted_at < $2) AS i3
    FROM stock_moves
    WHERE posted_at >= $1 AND posted_at < $4
    GROUP BY product_id, location_id
)
SELECT p.code, p.name, l.code, l.id::text,
       COALESCE(q.qty_on_hand, 0),
       COALESCE(f.d1, 0), COALESCE(f.d2, 0), COALESCE(f.d3, 0),
       COALESCE(f.i1, 0), COALESCE(f.i2, 0), COALESCE(f.i3, 0)
FROM stock_quants q
JOIN products p  ON p.id = q.product_id
JOIN locations l ON l.id = q.location_id
LEFT JOIN flow f ON f.product_id = q.product_id AND f.location_id = q.location_id
WHERE ($5 = '' OR p.code ILIKE '%' || $5 || '%' OR p.name ILIKE '%' || $5 || '%')
ORDER BY p.code, l.code`

// pgxQuerier is the subset of *pgxpool.Pool used by ERPSourceB.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// NewERPPool creates and pings a connection pool to the ERP database.
func NewERPPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("source B dsn is required for the postgres driver")
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse source B dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping ERP database: %w", err)
	}

	return pool, nil
}

// ERPSourceB reads Source-B rows from the ERP database.
type ERPSourceB struct {
	pool   pgxQuerier
	logger logger.Logger
}

// NewERPSourceB creates an adapter over pool.
func NewERPSourceB(pool pgxQuerier) *ERPSourceB {
	return &ERPSourceB{
		pool:   pool,
		logger: logger.GetGlobalLogger().WithComponent("erp_source_b"),
	}
}

// FetchSourceB implements SourceBFetcher
func (s *ERPSourceB) FetchSourceB(ctx context.Context, filter FetchFilter) ([]models.SourceBRow, error) {
	rows, err := s.pool.Query(ctx, erpStockQuery, windowArgs(filter)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ERP stock: %w", err)
	}
	defer rows.Close()

	var result []models.SourceBRow
	for rows.Next() {
		var r models.SourceBRow
		if err := rows.Scan(
			&r.ItemCode, &r.ItemName, &r.LocationCode, &r.LocationID,
			&r.CurrentStock,
			&r.DeliveryQtyM1, &r.DeliveryQtyM2, &r.DeliveryQtyM3,
			&r.IssueQtyM1, &r.IssueQtyM2, &r.IssueQtyM3,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ERP stock row: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ERP stock rows: %w", err)
	}

	s.logger.WithFields(logger.Fields{
		"rows":   len(result),
		"window": filter.Window.Key(),
	}).Debug("Fetched source B rows")

	return result, nil
}
