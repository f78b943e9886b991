package reconciler

import (
	"sort"
	"strings"

	"inventory-reconciliation-service/internal/locations"
	"inventory-reconciliation-service/internal/models"
	"inventory-reconciliation-service/pkg/errors"
	"inventory-reconciliation-service/pkg/logger"
)

// locationAccumulator collects both sources' rows for one item at one
// Source-B location. Source-A flow is also kept per contributing Source-A
// code so that average flow and buffers apply per bucket.
type locationAccumulator struct {
	row     *models.MergedLocationRow
	buckets map[string]*models.MonthlyFlow
}

// itemAccumulator collects every location of one item.
type itemAccumulator struct {
	item      *models.MergedItemRow
	locations map[string]*locationAccumulator
}

// mergeStats describes the inputs of one merge.
type mergeStats struct {
	SourceARows          int
	SourceBRows          int
	SourceALocationCount int
	SourceBLocationCount int
	MappedLocationCount  int
	UnmappedCodes        []string
}

// merger folds Source-A and Source-B row sets into merged items.
type merger struct {
	mapper *locations.Mapper
	logger logger.Logger
}

func newMerger(mapper *locations.Mapper, log logger.Logger) *merger {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &merger{
		mapper: mapper,
		logger: log.WithComponent("merge"),
	}
}

// mergeState is owned by a single merge call.
type mergeState struct {
	items      map[string]*itemAccumulator
	aCodes     map[string]bool
	bCodes     map[string]bool
	mappedSeen map[string]bool
	unmapped   map[string]bool
}

// merge folds both row sets. Source-A rows are folded first, so the first
// non-empty Source-A item name wins over the Source-B name.
func (m *merger) merge(rowsA []models.SourceARow, rowsB []models.SourceBRow) ([]*itemAccumulator, *mergeStats) {
	state := &mergeState{
		items:      make(map[string]*itemAccumulator),
		aCodes:     make(map[string]bool),
		bCodes:     make(map[string]bool),
		mappedSeen: make(map[string]bool),
		unmapped:   make(map[string]bool),
	}

	for i := range rowsA {
		m.foldSourceA(state, &rowsA[i])
	}
	for i := range rowsB {
		m.foldSourceB(state, &rowsB[i])
	}

	items := make([]*itemAccumulator, 0, len(state.items))
	for _, acc := range state.items {
		items = append(items, acc)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].item.ItemCode < items[j].item.ItemCode
	})

	stats := &mergeStats{
		SourceARows:          len(rowsA),
		SourceBRows:          len(rowsB),
		SourceALocationCount: len(state.aCodes),
		SourceBLocationCount: len(state.bCodes),
		MappedLocationCount:  len(state.mappedSeen),
		UnmappedCodes:        sortedKeys(state.unmapped),
	}

	return items, stats
}

func (m *merger) foldSourceA(state *mergeState, row *models.SourceARow) {
	itemCode := strings.TrimSpace(row.ItemCode)
	aCode := locations.NormalizeCode(row.LocationCode)
	if itemCode == "" || aCode == "" {
		return
	}
	state.aCodes[aCode] = true

	bCode, mapped := m.mapper.Resolve(aCode)
	if mapped {
		state.mappedSeen[aCode] = true
	} else {
		bCode = aCode
		if !state.unmapped[aCode] {
			state.unmapped[aCode] = true
			m.logger.WithError(errors.MappingGapWarning(aCode)).
				WithField("location_code", aCode).
				Warn("Source A location has no mapping; keeping it as its own location")
		}
	}

	item := state.item(itemCode)
	if item.item.ItemName == "" {
		item.item.ItemName = strings.TrimSpace(row.ItemName)
	}
	if !item.item.ReferenceCost.Valid && row.ReferenceCost.Valid {
		item.item.ReferenceCost = row.ReferenceCost
	}

	loc := item.location(bCode)
	if !mapped && !loc.row.HasB {
		loc.row.Mapped = false
	}
	if loc.row.A == nil {
		loc.row.A = &models.SourceMetrics{}
	}
	loc.row.HasA = true
	loc.row.A.Stock = loc.row.A.Stock.Add(row.Stock)

	flow := row.Monthly()
	loc.row.A.AddFlow(flow)

	bucket, ok := loc.buckets[aCode]
	if !ok {
		bucket = &models.MonthlyFlow{}
		loc.buckets[aCode] = bucket
		loc.row.SourceACodes = insertSorted(loc.row.SourceACodes, aCode)
	}
	for i := 0; i < 3; i++ {
		bucket.Sales[i] = bucket.Sales[i].Add(flow.Sales[i])
		bucket.Secondary[i] = bucket.Secondary[i].Add(flow.Secondary[i])
	}
}

func (m *merger) foldSourceB(state *mergeState, row *models.SourceBRow) {
	itemCode := strings.TrimSpace(row.ItemCode)
	bCode := locations.NormalizeCode(row.LocationCode)
	if itemCode == "" || bCode == "" {
		return
	}
	state.bCodes[bCode] = true

	item := state.item(itemCode)
	if item.item.ItemName == "" {
		item.item.ItemName = strings.TrimSpace(row.ItemName)
	}

	loc := item.location(bCode)
	loc.row.Mapped = true
	if loc.row.B == nil {
		loc.row.B = &models.SourceMetrics{}
	}
	loc.row.HasB = true
	if loc.row.SourceBLocationID == "" {
		loc.row.SourceBLocationID = strings.TrimSpace(row.LocationID)
	}
	loc.row.B.Stock = loc.row.B.Stock.Add(row.CurrentStock)
	loc.row.B.AddFlow(row.Monthly())
}

func (s *mergeState) item(itemCode string) *itemAccumulator {
	acc, ok := s.items[itemCode]
	if !ok {
		acc = &itemAccumulator{
			item:      &models.MergedItemRow{ItemCode: itemCode},
			locations: make(map[string]*locationAccumulator),
		}
		s.items[itemCode] = acc
	}
	return acc
}

func (a *itemAccumulator) location(bCode string) *locationAccumulator {
	loc, ok := a.locations[bCode]
	if !ok {
		loc = &locationAccumulator{
			row: &models.MergedLocationRow{
				LocationCode: bCode,
				SourceACodes: []string{},
				Mapped:       true,
			},
			buckets: make(map[string]*models.MonthlyFlow),
		}
		a.locations[bCode] = loc
	}
	return loc
}

// sortedLocations returns the item's locations ordered by location code.
func (a *itemAccumulator) sortedLocations() []*locationAccumulator {
	out := make([]*locationAccumulator, 0, len(a.locations))
	for _, loc := range a.locations {
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].row.LocationCode < out[j].row.LocationCode
	})
	return out
}

func insertSorted(codes []string, code string) []string {
	i := sort.SearchStrings(codes, code)
	if i < len(codes) && codes[i] == code {
		return codes
	}
	codes = append(codes, "")
	copy(codes[i+1:], codes[i:])
	codes[i] = code
	return codes
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
