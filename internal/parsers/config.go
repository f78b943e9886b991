package parsers

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Standard column names of the Source-A export.
const (
	ColItemCode      = "item_code"
	ColItemName      = "item_name"
	ColLocationCode  = "location_code"
	ColReferenceCost = "reference_cost"
	ColStock         = "stock"
	ColSalesM1       = "sales_m1"
	ColSalesM2       = "sales_m2"
	ColSalesM3       = "sales_m3"
	ColOtherM1       = "other_m1"
	ColOtherM2       = "other_m2"
	ColOtherM3       = "other_m3"
)

// Standard column names of the Source-B export.
const (
	ColLocationID    = "location_id"
	ColCurrentStock  = "current_stock"
	ColDeliveryQtyM1 = "delivery_qty_m1"
	ColDeliveryQtyM2 = "delivery_qty_m2"
	ColDeliveryQtyM3 = "delivery_qty_m3"
	ColIssueQtyM1    = "issue_qty_m1"
	ColIssueQtyM2    = "issue_qty_m2"
	ColIssueQtyM3    = "issue_qty_m3"
)

// SourceParserConfig holds configuration for parsing one source export
type SourceParserConfig struct {
	Delimiter rune `json:"delimiter" mapstructure:"delimiter"`
	// DecimalSeparator is '.' (the zero value) or ','. The other one is
	// read as a thousands separator.
	DecimalSeparator rune              `json:"decimal_separator" mapstructure:"decimal_separator"`
	ColumnAliases    map[string]string `json:"column_aliases,omitempty" mapstructure:"column_aliases"`
}

// DefaultSourceParserConfig returns a configuration with standard defaults
func DefaultSourceParserConfig() *SourceParserConfig {
	return &SourceParserConfig{
		Delimiter:        ',',
		DecimalSeparator: '.',
		ColumnAliases:    map[string]string{},
	}
}

// Validate checks if the parser configuration is valid
func (c *SourceParserConfig) Validate() error {
	if c.Delimiter == 0 || c.Delimiter == '"' || c.Delimiter == '\r' || c.Delimiter == '\n' {
		return fmt.Errorf("invalid delimiter %q", c.Delimiter)
	}
	decimalSep := c.decimalSeparator()
	if decimalSep != '.' && decimalSep != ',' {
		return fmt.Errorf("decimal separator must be '.' or ',', got %q", decimalSep)
	}
	if decimalSep == c.Delimiter {
		return fmt.Errorf("decimal separator %q cannot equal the delimiter", decimalSep)
	}

	for standard, alias := range c.ColumnAliases {
		if strings.TrimSpace(standard) == "" || strings.TrimSpace(alias) == "" {
			return fmt.Errorf("column aliases cannot contain empty names")
		}
	}

	return nil
}

// GetColumnName returns the actual column name, checking aliases first
func (c *SourceParserConfig) GetColumnName(standardName string) string {
	if alias, exists := c.ColumnAliases[standardName]; exists {
		return alias
	}
	return standardName
}

// ParseQuantity parses a quantity cell with the configured decimal
// separator.
func (c *SourceParserConfig) ParseQuantity(value string) (decimal.Decimal, error) {
	return ParseQuantityWith(value, c.decimalSeparator())
}

func (c *SourceParserConfig) decimalSeparator() rune {
	if c.DecimalSeparator == 0 {
		return '.'
	}
	return c.DecimalSeparator
}

func (c *SourceParserConfig) parseConfig() *ParseConfig {
	config := DefaultParseConfig()
	config.Delimiter = c.Delimiter
	return config
}
