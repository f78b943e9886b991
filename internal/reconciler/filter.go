package reconciler

import (
	"strings"

	"inventory-reconciliation-service/internal/models"
)

// Query selects one page of reconciliation results.
type Query struct {
	Search      string
	Location    string
	Discrepancy models.DiscrepancyLevel
	Page        int
	Limit       int
}

// Offset returns the index of the first item of the page.
func (q Query) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// Summary counts the filtered items and their locations by level.
type Summary struct {
	Items            int                             `json:"items"`
	ItemsByLevel     map[models.DiscrepancyLevel]int `json:"items_by_level"`
	Locations        int                             `json:"locations"`
	LocationsByLevel map[models.DiscrepancyLevel]int `json:"locations_by_level"`
}

// FilterItems applies the search, location and discrepancy filters in that
// order. The input order is preserved.
//
// Search is a case-insensitive substring match on item code or name. An
// item passes the location filter if any of its locations matches by
// Source-B code or by a contributing Source-A code. The discrepancy filter
// compares the item's overall level; A_ONLY and B_ONLY, which never appear
// at item level, match items with at least one location at that level.
func FilterItems(items []*models.MergedItemRow, query Query) []*models.MergedItemRow {
	search := strings.ToLower(strings.TrimSpace(query.Search))
	location := strings.TrimSpace(query.Location)

	filtered := make([]*models.MergedItemRow, 0, len(items))
	for _, item := range items {
		if search != "" &&
			!strings.Contains(strings.ToLower(item.ItemCode), search) &&
			!strings.Contains(strings.ToLower(item.ItemName), search) {
			continue
		}
		if location != "" && !item.HasLocation(location) {
			continue
		}
		if query.Discrepancy != "" && !matchesDiscrepancy(item, query.Discrepancy) {
			continue
		}
		filtered = append(filtered, item)
	}
	return filtered
}

func matchesDiscrepancy(item *models.MergedItemRow, level models.DiscrepancyLevel) bool {
	if !level.IsSingleSource() {
		return item.OverallDiscrepancy == level
	}
	for _, loc := range item.Locations {
		if loc.Discrepancy == level {
			return true
		}
	}
	return false
}

// Paginate returns the items of one page and the total number of items.
// A page past the end is empty.
func Paginate(items []*models.MergedItemRow, page, limit int) ([]*models.MergedItemRow, int) {
	total := len(items)
	if limit <= 0 || page < 1 {
		return []*models.MergedItemRow{}, total
	}

	// Checked before multiplying so a huge page cannot overflow the offset.
	if page-1 >= TotalPages(total, limit) {
		return []*models.MergedItemRow{}, total
	}
	offset := (page - 1) * limit
	end := offset + limit
	if end > total {
		end = total
	}
	return items[offset:end], total
}

// TotalPages returns ceil(total / limit).
func TotalPages(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// Summarize counts items and locations by level.
func Summarize(items []*models.MergedItemRow) Summary {
	summary := Summary{
		ItemsByLevel:     make(map[models.DiscrepancyLevel]int),
		LocationsByLevel: make(map[models.DiscrepancyLevel]int),
	}
	for _, item := range items {
		summary.Items++
		summary.ItemsByLevel[item.OverallDiscrepancy]++
		for _, loc := range item.Locations {
			summary.Locations++
			summary.LocationsByLevel[loc.Discrepancy]++
		}
	}
	return summary
}
