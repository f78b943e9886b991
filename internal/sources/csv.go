package sources

import (
	"context"

	"inventory-reconciliation-service/internal/models"
	"inventory-reconciliation-service/internal/parsers"
	"inventory-reconciliation-service/pkg/logger"
)

// CSVSourceA reads Source-A rows from a legacy export file. Exports are
// produced for a fixed window, so the filter window is not applied.
type CSVSourceA struct {
	path   string
	parser *parsers.SourceAParser
	logger logger.Logger
}

// NewCSVSourceA creates an adapter reading path.
func NewCSVSourceA(path string, config *parsers.SourceParserConfig) (*CSVSourceA, error) {
	parser, err := parsers.NewSourceAParser(config)
	if err != nil {
		return nil, err
	}
	return &CSVSourceA{
		path:   path,
		parser: parser,
		logger: logger.GetGlobalLogger().WithComponent("csv_source_a"),
	}, nil
}

// FetchSourceA implements SourceAFetcher
func (s *CSVSourceA) FetchSourceA(ctx context.Context, filter FetchFilter) ([]models.SourceARow, error) {
	rows, stats, err := s.parser.ParseFile(ctx, s.path)
	if err != nil {
		return nil, err
	}

	filtered := rows[:0]
	for _, row := range rows {
		if filter.MatchesItem(row.ItemCode, row.ItemName) {
			filtered = append(filtered, row)
		}
	}

	s.logger.WithFields(logger.Fields{
		"file_path":     s.path,
		"rows":          len(filtered),
		"parse_errors":  stats.ErrorCount,
		"search_pushed": filter.Search != "",
	}).Debug("Fetched source A rows")

	return filtered, nil
}

// CSVSourceB reads Source-B rows from an ERP export file.
type CSVSourceB struct {
	path   string
	parser *parsers.SourceBParser
	logger logger.Logger
}

// NewCSVSourceB creates an adapter reading path.
func NewCSVSourceB(path string, config *parsers.SourceParserConfig) (*CSVSourceB, error) {
	parser, err := parsers.NewSourceBParser(config)
	if err != nil {
		return nil, err
	}
	return &CSVSourceB{
		path:   path,
		parser: parser,
		logger: logger.GetGlobalLogger().WithComponent("csv_source_b"),
	}, nil
}

// FetchSourceB implements SourceBFetcher
func (s *CSVSourceB) FetchSourceB(ctx context.Context, filter FetchFilter) ([]models.SourceBRow, error) {
	rows, stats, err := s.parser.ParseFile(ctx, s.path)
	if err != nil {
		return nil, err
	}

	filtered := rows[:0]
	for _, row := range rows {
		if filter.MatchesItem(row.ItemCode, row.ItemName) {
			filtered = append(filtered, row)
		}
	}

	s.logger.WithFields(logger.Fields{
		"file_path":     s.path,
		"rows":          len(filtered),
		"parse_errors":  stats.ErrorCount,
		"search_pushed": filter.Search != "",
	}).Debug("Fetched source B rows")

	return filtered, nil
}
