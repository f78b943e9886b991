package parsers

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/shopspring/decimal"

	"inventory-reconciliation-service/internal/models"
	"inventory-reconciliation-service/pkg/errors"
	"inventory-reconciliation-service/pkg/logger"
)

// SourceBParser parses ERP inventory exports
type SourceBParser struct {
	*BaseParser
	config *SourceParserConfig
	logger logger.Logger
}

// NewSourceBParser creates a new SourceBParser with the given configuration
func NewSourceBParser(config *SourceParserConfig) (*SourceBParser, error) {
	if config == nil {
		config = DefaultSourceParserConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "source_b_parser", config, err)
	}

	return &SourceBParser{
		BaseParser: NewBaseParser(config.parseConfig()),
		config:     config,
		logger:     logger.GetGlobalLogger().WithComponent("source_b_parser"),
	}, nil
}

// ParseFile parses a Source-B export file
func (p *SourceBParser) ParseFile(ctx context.Context, filePath string) ([]models.SourceBRow, *ParseStats, error) {
	file, reader, err := p.OpenFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	return p.parse(ctx, filePath, reader)
}

// Parse parses a Source-B export from r. name is used in error messages.
func (p *SourceBParser) Parse(ctx context.Context, r io.Reader, name string) ([]models.SourceBRow, *ParseStats, error) {
	return p.parse(ctx, name, p.NewReader(r))
}

func (p *SourceBParser) parse(ctx context.Context, name string, reader *csv.Reader) ([]models.SourceBRow, *ParseStats, error) {
	parseCtx := NewParseContext(ctx, name)
	stats := NewParseStats()

	required := []string{
		p.config.GetColumnName(ColItemCode),
		p.config.GetColumnName(ColLocationCode),
		p.config.GetColumnName(ColCurrentStock),
	}
	if err := p.ReadHeaders(reader, parseCtx, required); err != nil {
		return nil, stats, err
	}

	rows, err := readRows(p.BaseParser, reader, parseCtx, stats, func(record []string) ([]models.SourceBRow, *ParseError) {
		return p.buildRow(record, parseCtx)
	})
	if err != nil {
		return rows, stats, err
	}

	log := p.logger.WithFields(logger.Fields{
		"source":         name,
		"total_lines":    stats.TotalLines,
		"records_parsed": stats.RecordsParsed,
		"rows":           stats.RowsProduced,
		"error_count":    stats.ErrorCount,
	})
	log.Debug("Source B export parsed")
	if stats.HasErrors() {
		log.WithField("sample_errors", stats.GetSampleErrors(3)).Warn("Skipped malformed source B records")
	}

	return rows, stats, nil
}

func (p *SourceBParser) buildRow(record []string, parseCtx *ParseContext) ([]models.SourceBRow, *ParseError) {
	row := models.SourceBRow{
		ItemCode:     FieldValue(record, parseCtx, p.config.GetColumnName(ColItemCode)),
		ItemName:     FieldValue(record, parseCtx, p.config.GetColumnName(ColItemName)),
		LocationCode: FieldValue(record, parseCtx, p.config.GetColumnName(ColLocationCode)),
		LocationID:   FieldValue(record, parseCtx, p.config.GetColumnName(ColLocationID)),
	}

	targets := []struct {
		column string
		dst    *decimal.Decimal
	}{
		{ColCurrentStock, &row.CurrentStock},
		{ColDeliveryQtyM1, &row.DeliveryQtyM1},
		{ColDeliveryQtyM2, &row.DeliveryQtyM2},
		{ColDeliveryQtyM3, &row.DeliveryQtyM3},
		{ColIssueQtyM1, &row.IssueQtyM1},
		{ColIssueQtyM2, &row.IssueQtyM2},
		{ColIssueQtyM3, &row.IssueQtyM3},
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

	if err := row.Validate(); err != nil {
		return nil, &ParseError{Line: parseCtx.LineNumber, Message: "invalid source B row", Err: err}
	}

	return []models.SourceBRow{row}, nil
}
