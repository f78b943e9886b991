package parsers

import (
	"context"
	"encoding/csv"
	"io"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"inventory-reconciliation-service/internal/models"
	"inventory-reconciliation-service/pkg/errors"
	"inventory-reconciliation-service/pkg/logger"
)

// Layout is the column layout of a Source-A export.
type Layout string

const (
	// LayoutLong has one row per item and location with a location_code column.
	LayoutLong Layout = "long"
	// LayoutWide has one row per item and a column group per location:
	// <LOC>_stock, <LOC>_sales_m1..3 and <LOC>_other_m1..3.
	LayoutWide Layout = "wide"
)

// SourceAParser parses legacy-system inventory exports
type SourceAParser struct {
	*BaseParser
	config *SourceParserConfig
	logger logger.Logger
}

// NewSourceAParser creates a new SourceAParser with the given configuration
func NewSourceAParser(config *SourceParserConfig) (*SourceAParser, error) {
	if config == nil {
		config = DefaultSourceParserConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "source_a_parser", config, err)
	}

	return &SourceAParser{
		BaseParser: NewBaseParser(config.parseConfig()),
		config:     config,
		logger:     logger.GetGlobalLogger().WithComponent("source_a_parser"),
	}, nil
}

// ParseFile parses a Source-A export file
func (p *SourceAParser) ParseFile(ctx context.Context, filePath string) ([]models.SourceARow, *ParseStats, error) {
	file, reader, err := p.OpenFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	return p.parse(ctx, filePath, reader)
}

// Parse parses a Source-A export from r. name is used in error messages.
func (p *SourceAParser) Parse(ctx context.Context, r io.Reader, name string) ([]models.SourceARow, *ParseStats, error) {
	return p.parse(ctx, name, p.NewReader(r))
}

func (p *SourceAParser) parse(ctx context.Context, name string, csvReader *csv.Reader) ([]models.SourceARow, *ParseStats, error) {
	parseCtx := NewParseContext(ctx, name)
	stats := NewParseStats()

	if err := p.ReadHeaders(csvReader, parseCtx, []string{p.config.GetColumnName(ColItemCode)}); err != nil {
		return nil, stats, err
	}

	layout := LayoutWide
	if parseCtx.HasColumn(p.config.GetColumnName(ColLocationCode)) {
		layout = LayoutLong
	}

	var build recordBuilder[models.SourceARow]
	if layout == LayoutLong {
		build = func(record []string) ([]models.SourceARow, *ParseError) {
			return p.buildLongRow(record, parseCtx)
		}
	} else {
		groups := discoverLocationGroups(parseCtx)
		if len(groups) == 0 {
			return nil, stats, errors.ParseError(
				errors.CodeMissingColumn,
				name,
				parseCtx.LineNumber,
				p.config.GetColumnName(ColLocationCode)+" or <LOC>_stock",
				"",
				nil,
			).WithSuggestion("export either a location_code column or per-location column groups")
		}
		build = func(record []string) ([]models.SourceARow, *ParseError) {
			return p.buildWideRows(record, parseCtx, groups)
		}
	}

	rows, err := readRows(p.BaseParser, csvReader, parseCtx, stats, build)
	if err != nil {
		return rows, stats, err
	}

	log := p.logger.WithFields(logger.Fields{
		"source":         name,
		"layout":         layout,
		"total_lines":    stats.TotalLines,
		"records_parsed": stats.RecordsParsed,
		"rows":           stats.RowsProduced,
		"error_count":    stats.ErrorCount,
	})
	log.Debug("Source A export parsed")
	if stats.HasErrors() {
		log.WithField("sample_errors", stats.GetSampleErrors(3)).Warn("Skipped malformed source A records")
	}

	return rows, stats, nil
}

// buildLongRow converts one long-layout record
func (p *SourceAParser) buildLongRow(record []string, parseCtx *ParseContext) ([]models.SourceARow, *ParseError) {
	row := models.SourceARow{
		ItemCode:     FieldValue(record, parseCtx, p.config.GetColumnName(ColItemCode)),
		ItemName:     FieldValue(record, parseCtx, p.config.GetColumnName(ColItemName)),
		LocationCode: FieldValue(record, parseCtx, p.config.GetColumnName(ColLocationCode)),
	}

	targets := []struct {
		column string
		dst    *decimal.Decimal
	}{
		{ColStock, &row.Stock},
		{ColSalesM1, &row.SalesM1},
		{ColSalesM2, &row.SalesM2},
		{ColSalesM3, &row.SalesM3},
		{ColOtherM1, &row.OtherM1},
		{ColOtherM2, &row.OtherM2},
		{ColOtherM3, &row.OtherM3},
	}
	for _, target := range targets {
		column := p.config.GetColumnName(target.column)
		value := FieldValue(record, parseCtx, column)
		qty, err := p.config.ParseQuantity(value)
		if err != nil {
			return nil, quantityError(parseCtx, column, value, err)
		}
		*target.dst = qty
	}

	cost, parseErr := p.referenceCost(record, parseCtx)
	if parseErr != nil {
		return nil, parseErr
	}
	row.ReferenceCost = cost

	if err := row.Validate(); err != nil {
		return nil, &ParseError{Line: parseCtx.LineNumber, Message: "invalid source A row", Err: err}
	}

	return []models.SourceARow{row}, nil
}

// buildWideRows converts one wide-layout record into one row per location
// group. Groups whose cells are all empty are skipped.
func (p *SourceAParser) buildWideRows(record []string, parseCtx *ParseContext, groups []locationGroup) ([]models.SourceARow, *ParseError) {
	itemCode := FieldValue(record, parseCtx, p.config.GetColumnName(ColItemCode))
	if itemCode == "" {
		return nil, &ParseError{Line: parseCtx.LineNumber, Field: ColItemCode, Message: "source A row has empty item code"}
	}
	itemName := FieldValue(record, parseCtx, p.config.GetColumnName(ColItemName))

	cost, parseErr := p.referenceCost(record, parseCtx)
	if parseErr != nil {
		return nil, parseErr
	}

	rows := make([]models.SourceARow, 0, len(groups))
	for _, group := range groups {
		values := group.values(record)
		if allEmpty(values) {
			continue
		}

		quantities := make([]decimal.Decimal, len(values))
		for i, value := range values {
			qty, err := p.config.ParseQuantity(value)
			if err != nil {
				column := parseCtx.Headers[group.columns[i]]
				return nil, quantityError(parseCtx, column, value, err)
			}
			quantities[i] = qty
		}

		rows = append(rows, models.SourceARow{
			ItemCode:      itemCode,
			ItemName:      itemName,
			LocationCode:  group.code,
			Stock:         quantities[0],
			SalesM1:       quantities[1],
			SalesM2:       quantities[2],
			SalesM3:       quantities[3],
			OtherM1:       quantities[4],
			OtherM2:       quantities[5],
			OtherM3:       quantities[6],
			ReferenceCost: cost,
		})
	}

	return rows, nil
}

func (p *SourceAParser) referenceCost(record []string, parseCtx *ParseContext) (decimal.NullDecimal, *ParseError) {
	column := p.config.GetColumnName(ColReferenceCost)
	value := FieldValue(record, parseCtx, column)
	if value == "" {
		return decimal.NullDecimal{}, nil
	}
	cost, err := p.config.ParseQuantity(value)
	if err != nil {
		return decimal.NullDecimal{}, quantityError(parseCtx, column, value, err)
	}
	return decimal.NewNullDecimal(cost), nil
}

// wideSuffixes are the per-location column suffixes, in locationGroup order.
var wideSuffixes = []string{"_stock", "_sales_m1", "_sales_m2", "_sales_m3", "_other_m1", "_other_m2", "_other_m3"}

// locationGroup is the set of column indexes of one location in a wide
// export. A missing column has index -1 and reads as empty.
type locationGroup struct {
	code    string
	columns [7]int
}

func (g locationGroup) values(record []string) []string {
	values := make([]string, len(g.columns))
	for i, index := range g.columns {
		if index >= 0 && index < len(record) {
			values[i] = strings.TrimSpace(record[index])
		}
	}
	return values
}

// discoverLocationGroups finds every <LOC>_stock column and the matching
// flow columns of the same location.
func discoverLocationGroups(parseCtx *ParseContext) []locationGroup {
	var groups []locationGroup
	for _, header := range parseCtx.Headers {
		lower := strings.ToLower(header)
		if !strings.HasSuffix(lower, wideSuffixes[0]) || len(lower) == len(wideSuffixes[0]) {
			continue
		}
		prefix := header[:len(header)-len(wideSuffixes[0])]

		group := locationGroup{code: strings.ToUpper(strings.TrimSpace(prefix))}
		for i, suffix := range wideSuffixes {
			group.columns[i] = parseCtx.GetColumnIndex(prefix + suffix)
		}
		groups = append(groups, group)
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].code < groups[j].code })
	return groups
}

func allEmpty(values []string) bool {
	for _, value := range values {
		if value != "" {
			return false
		}
	}
	return true
}
