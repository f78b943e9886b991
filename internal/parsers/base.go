// Package parsers reads inventory exports of the two source systems.
//
// The legacy system (Source A) exports either a long file with one row per
// item and location, or a wide file with one row per item and a group of
// columns per location. The ERP (Source B) exports a long file. Both parsers
// produce per-location rows in the shapes defined by the models package, and
// neither aggregates nor classifies anything.
//
// Example usage:
//
//	parser, err := NewSourceAParser(nil)
//	rows, stats, err := parser.ParseFile(ctx, "exports/legacy_stock.csv")
//
// Malformed records are counted in ParseStats and skipped; only file-level
// problems such as a missing file or missing required headers fail a parse.
package parsers

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"inventory-reconciliation-service/pkg/errors"
	"inventory-reconciliation-service/pkg/logger"
)

// ParseError represents an error that occurred during CSV parsing
type ParseError struct {
	Line    int
	Column  int
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error at line %d, column %d (%s='%s'): %s: %v",
			e.Line, e.Column, e.Field, e.Value, e.Message, e.Err)
	}
	return fmt.Sprintf("parse error at line %d, column %d (%s='%s'): %s",
		e.Line, e.Column, e.Field, e.Value, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseConfig holds configuration for CSV parsing
type ParseConfig struct {
	Delimiter        rune
	Comment          rune
	TrimLeadingSpace bool
	SkipEmptyRows    bool
	MaxFieldSize     int
	ValidateEncoding bool
}

// DefaultParseConfig returns a configuration with sensible defaults
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		Delimiter:        ',',
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
		MaxFieldSize:     64 * 1024,
		ValidateEncoding: true,
	}
}

// BaseParser provides common CSV parsing functionality
type BaseParser struct {
	config *ParseConfig
	logger logger.Logger
}

// NewBaseParser creates a new BaseParser with the given configuration
func NewBaseParser(config *ParseConfig) *BaseParser {
	if config == nil {
		config = DefaultParseConfig()
	}

	return &BaseParser{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("base_parser"),
	}
}

// ParseContext holds state during parsing operations
type ParseContext struct {
	FilePath   string
	LineNumber int
	Headers    []string
	HeaderMap  map[string]int
	ctx        context.Context
}

// NewParseContext creates a new parsing context
func NewParseContext(ctx context.Context, filePath string) *ParseContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ParseContext{
		FilePath:  filePath,
		HeaderMap: make(map[string]int),
		ctx:       ctx,
	}
}

// IsCancelled checks if the parsing context has been cancelled
func (pc *ParseContext) IsCancelled() bool {
	select {
	case <-pc.ctx.Done():
		return true
	default:
		return false
	}
}

// Err returns the cancellation cause, if any.
func (pc *ParseContext) Err() error {
	return pc.ctx.Err()
}

// GetColumnIndex returns the index of a column by name, or -1 if not found.
// Lookups are case-insensitive.
func (pc *ParseContext) GetColumnIndex(name string) int {
	if index, exists := pc.HeaderMap[strings.ToLower(strings.TrimSpace(name))]; exists {
		return index
	}
	return -1
}

// HasColumn reports whether the header row contains name.
func (pc *ParseContext) HasColumn(name string) bool {
	return pc.GetColumnIndex(name) != -1
}

// OpenFile opens a CSV file, validates its encoding and returns a reader
// positioned at the first line.
func (bp *BaseParser) OpenFile(filePath string) (*os.File, *csv.Reader, error) {
	bp.logger.WithField("file_path", filePath).Debug("Opening CSV file")

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.FileError(errors.CodeFileNotFound, filePath, err)
		}
		if os.IsPermission(err) {
			return nil, nil, errors.FileError(errors.CodeFilePermission, filePath, err)
		}
		return nil, nil, errors.FileError(errors.CodeFileCorrupted, filePath, err)
	}

	if bp.config.ValidateEncoding {
		if err := bp.validateEncoding(file, filePath); err != nil {
			file.Close()
			return nil, nil, err
		}

		if _, err := file.Seek(0, io.SeekStart); err != nil {
			file.Close()
			return nil, nil, errors.FileError(errors.CodeFileCorrupted, filePath, err)
		}
	}

	return file, bp.NewReader(file), nil
}

// NewReader wraps r in a csv.Reader configured for this parser.
func (bp *BaseParser) NewReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = bp.config.Delimiter
	reader.Comment = bp.config.Comment
	reader.TrimLeadingSpace = bp.config.TrimLeadingSpace
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = false
	return reader
}

// validateEncoding checks if the file contains valid UTF-8 text
func (bp *BaseParser) validateEncoding(file *os.File, filePath string) error {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0

	for scanner.Scan() && lineNum < 100 {
		lineNum++
		if !utf8.Valid(scanner.Bytes()) {
			return errors.ParseError(
				errors.CodeEncodingError,
				filePath,
				lineNum,
				"encoding",
				"",
				fmt.Errorf("invalid UTF-8 encoding detected"),
			)
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.FileError(errors.CodeFileCorrupted, filePath, err)
	}

	return nil
}

// ReadHeaders reads the header row and checks that every required column is
// present.
func (bp *BaseParser) ReadHeaders(reader *csv.Reader, parseCtx *ParseContext, requiredHeaders []string) error {
	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return errors.ValidationError(
				errors.CodeMissingField,
				"file_content",
				"empty",
				nil,
			).WithSuggestion("ensure the export contains a header row")
		}

		return errors.ParseError(errors.CodeInvalidFormat, parseCtx.FilePath, 1, "headers", "", err)
	}

	parseCtx.LineNumber++
	parseCtx.Headers = make([]string, len(headers))
	parseCtx.HeaderMap = make(map[string]int, len(headers))
	for i, header := range headers {
		// Spreadsheet exports often carry a byte order mark on the first cell.
		clean := strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
		parseCtx.Headers[i] = clean
		key := strings.ToLower(clean)
		if _, exists := parseCtx.HeaderMap[key]; !exists {
			parseCtx.HeaderMap[key] = i
		}
	}

	bp.logger.WithField("headers", parseCtx.Headers).Debug("Read CSV headers")

	var missing []string
	for _, header := range requiredHeaders {
		if !parseCtx.HasColumn(header) {
			missing = append(missing, header)
		}
	}
	if len(missing) > 0 {
		return errors.ParseError(
			errors.CodeMissingColumn,
			parseCtx.FilePath,
			parseCtx.LineNumber,
			strings.Join(missing, ", "),
			"",
			nil,
		)
	}

	return nil
}

// ReadRecord returns the next non-empty record. It returns io.EOF at the end
// of input.
func (bp *BaseParser) ReadRecord(reader *csv.Reader, parseCtx *ParseContext) ([]string, error) {
	for {
		if parseCtx.IsCancelled() {
			return nil, parseCtx.Err()
		}

		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				return nil, err
			}
			parseCtx.LineNumber++
			return nil, errors.ParseError(errors.CodeInvalidFormat, parseCtx.FilePath, parseCtx.LineNumber, "record", "", err)
		}

		parseCtx.LineNumber++

		if bp.config.SkipEmptyRows && isEmptyRecord(record) {
			continue
		}

		if bp.config.MaxFieldSize > 0 {
			for i, field := range record {
				if len(field) > bp.config.MaxFieldSize {
					return nil, errors.ParseError(
						errors.CodeInvalidData,
						parseCtx.FilePath,
						parseCtx.LineNumber,
						fmt.Sprintf("field_%d", i),
						truncate(field, 50),
						fmt.Errorf("field exceeds maximum size of %d bytes", bp.config.MaxFieldSize),
					)
				}
			}
		}

		return record, nil
	}
}

// isEmptyRecord checks if all fields in a record are empty or whitespace
func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// FieldValue returns the trimmed value of a column, or "" when the column is
// absent or the record is short.
func FieldValue(record []string, parseCtx *ParseContext, fieldName string) string {
	index := parseCtx.GetColumnIndex(fieldName)
	if index == -1 || index >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[index])
}

// ParseQuantity parses a quantity cell written with a '.' decimal point
// and optional ',' thousands separators. Empty cells are zero.
func ParseQuantity(value string) (decimal.Decimal, error) {
	return ParseQuantityWith(value, '.')
}

// ParseQuantityWith parses a quantity cell whose decimal separator is
// decimalSep ('.' or ','). The other character is accepted as a thousands
// separator only between groups of three digits, so "1,5" with a '.'
// decimal point is rejected rather than read as 15.
func ParseQuantityWith(value string, decimalSep rune) (decimal.Decimal, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(value), " ", "")
	if clean == "" || clean == "-" {
		return decimal.Zero, nil
	}

	thousandsSep := ","
	if decimalSep == ',' {
		thousandsSep = "."
	}

	intPart, fracPart, hasFrac := strings.Cut(clean, string(decimalSep))
	if strings.Contains(fracPart, string(decimalSep)) || strings.Contains(fracPart, thousandsSep) {
		return decimal.Zero, fmt.Errorf("misplaced separator in quantity %q", value)
	}

	if strings.Contains(intPart, thousandsSep) {
		groups := strings.Split(strings.TrimLeft(intPart, "+-"), thousandsSep)
		if len(groups[0]) == 0 || len(groups[0]) > 3 {
			return decimal.Zero, fmt.Errorf("misplaced thousands separator in quantity %q", value)
		}
		for _, group := range groups[1:] {
			if len(group) != 3 {
				return decimal.Zero, fmt.Errorf("misplaced thousands separator in quantity %q", value)
			}
		}
		intPart = strings.ReplaceAll(intPart, thousandsSep, "")
	}

	if hasFrac {
		return decimal.NewFromString(intPart + "." + fracPart)
	}
	return decimal.NewFromString(intPart)
}

// truncate shortens s to at most n bytes for error messages.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ParseStats holds statistics about a parsing operation
type ParseStats struct {
	TotalLines    int
	RecordsParsed int
	RowsProduced  int
	ErrorCount    int
	Errors        []*ParseError
}

// NewParseStats creates a new ParseStats instance
func NewParseStats() *ParseStats {
	return &ParseStats{
		Errors: make([]*ParseError, 0),
	}
}

// AddError adds an error to the parsing statistics
func (ps *ParseStats) AddError(err *ParseError) {
	ps.Errors = append(ps.Errors, err)
	ps.ErrorCount++
}

// HasErrors returns true if there were any parsing errors
func (ps *ParseStats) HasErrors() bool {
	return ps.ErrorCount > 0
}

// String returns a human-readable summary of parsing statistics
func (ps *ParseStats) String() string {
	return fmt.Sprintf("Parsed %d lines, %d records, %d rows, %d errors",
		ps.TotalLines, ps.RecordsParsed, ps.RowsProduced, ps.ErrorCount)
}

// GetSampleErrors returns a sample of the parsing errors for logging/debugging
func (ps *ParseStats) GetSampleErrors(maxSamples int) []string {
	if len(ps.Errors) == 0 {
		return nil
	}

	limit := len(ps.Errors)
	if maxSamples > 0 && maxSamples < limit {
		limit = maxSamples
	}

	samples := make([]string, 0, limit)
	for i := 0; i < limit; i++ {
		samples = append(samples, ps.Errors[i].Error())
	}

	return samples
}

// quantityError builds the ParseError recorded for an unparsable quantity.
func quantityError(parseCtx *ParseContext, column, value string, err error) *ParseError {
	return &ParseError{
		Line:    parseCtx.LineNumber,
		Column:  parseCtx.GetColumnIndex(column),
		Field:   column,
		Value:   value,
		Message: "invalid quantity",
		Err:     errors.ParseError(errors.CodeInvalidQuantity, parseCtx.FilePath, parseCtx.LineNumber, column, value, err),
	}
}
