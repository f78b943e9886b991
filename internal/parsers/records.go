package parsers

import (
	"encoding/csv"
	"io"

	"inventory-reconciliation-service/pkg/errors"
)

// recordBuilder turns one CSV record into zero or more rows.
type recordBuilder[T any] func(record []string) ([]T, *ParseError)

// readRows drives the record loop shared by both source parsers. Record
// level failures are collected in stats and the record is skipped.
func readRows[T any](bp *BaseParser, reader *csv.Reader, parseCtx *ParseContext, stats *ParseStats, build recordBuilder[T]) ([]T, error) {
	var rows []T

	for {
		record, err := bp.ReadRecord(reader, parseCtx)
		if err != nil {
			if err == io.EOF {
				break
			}
			if parseCtx.IsCancelled() {
				return rows, errors.InternalError(errors.CodeUnexpectedError, "csv_parsing", err)
			}
			stats.AddError(&ParseError{
				Line:    parseCtx.LineNumber,
				Message: "failed to read record",
				Err:     err,
			})
			continue
		}

		stats.RecordsParsed++

		built, parseErr := build(record)
		if parseErr != nil {
			stats.AddError(parseErr)
			continue
		}

		rows = append(rows, built...)
		stats.RowsProduced += len(built)
	}

	stats.TotalLines = parseCtx.LineNumber
	return rows, nil
}
