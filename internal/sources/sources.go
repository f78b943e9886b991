// Package sources fetches flat row sets from the two inventory systems.
//
// An adapter returns rows already restricted to the reconciliation window
// (the current month plus three trailing months) in its source's native
// shape. Adapters never aggregate or classify. A search pushdown is allowed
// as a narrowing optimization because the engine filters again.
package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"inventory-reconciliation-service/internal/models"
)

// SourceAFetcher fetches legacy-system rows
type SourceAFetcher interface {
	FetchSourceA(ctx context.Context, filter FetchFilter) ([]models.SourceARow, error)
}

// SourceBFetcher fetches ERP rows
type SourceBFetcher interface {
	FetchSourceB(ctx context.Context, filter FetchFilter) ([]models.SourceBRow, error)
}

// SourceAFunc adapts a function to SourceAFetcher.
type SourceAFunc func(ctx context.Context, filter FetchFilter) ([]models.SourceARow, error)

// FetchSourceA calls f.
func (f SourceAFunc) FetchSourceA(ctx context.Context, filter FetchFilter) ([]models.SourceARow, error) {
	return f(ctx, filter)
}

// SourceBFunc adapts a function to SourceBFetcher.
type SourceBFunc func(ctx context.Context, filter FetchFilter) ([]models.SourceBRow, error)

// FetchSourceB calls f.
func (f SourceBFunc) FetchSourceB(ctx context.Context, filter FetchFilter) ([]models.SourceBRow, error) {
	return f(ctx, filter)
}

// FetchFilter is passed to every adapter call.
type FetchFilter struct {
	// Search is the request's free-text item search. Adapters may use it to
	// narrow their result but are not required to.
	Search string
	Window Window
}

// MatchesItem reports whether an item passes the search pushdown.
func (f FetchFilter) MatchesItem(itemCode, itemName string) bool {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(itemCode), search) ||
		strings.Contains(strings.ToLower(itemName), search)
}

// Window is the time range of one reconciliation: the start of the current
// month and the starts of the three months before it. Months[0] is m1, the
// most recent full month; Months[2] is m3, the oldest.
type Window struct {
	Current time.Time
	Months  [3]time.Time
}

// NewWindow computes the window containing now, in now's location.
func NewWindow(now time.Time) Window {
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return Window{
		Current: current,
		Months: [3]time.Time{
			current.AddDate(0, -1, 0),
			current.AddDate(0, -2, 0),
			current.AddDate(0, -3, 0),
		},
	}
}

// Start returns the first instant of the window, the start of m3.
func (w Window) Start() time.Time {
	return w.Months[2]
}

// MonthRange returns the half-open range [from, to) of month i, where 0 is m1.
func (w Window) MonthRange(i int) (time.Time, time.Time) {
	if i == 0 {
		return w.Months[0], w.Current
	}
	return w.Months[i], w.Months[i-1]
}

// Key identifies the window in cache keys and logs.
func (w Window) Key() string {
	return fmt.Sprintf("%s..%s", w.Start().Format("2006-01"), w.Current.Format("2006-01"))
}

// Clock returns the current time. Tests inject a fixed clock.
type Clock func() time.Time
