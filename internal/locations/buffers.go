package locations

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultBuffer is used for any location without a configured multiplier.
var DefaultBuffer = decimal.NewFromInt(1)

// Buffers holds the safety-stock multipliers applied to average flow.
//
// Source-A buffers are keyed by Source-A location code. Source-B buffers are
// optional and keyed by Source-B location code; when a Source-B location has
// none, the engine reuses the Source-A buffer of the same merged location.
type Buffers struct {
	sourceA  map[string]decimal.Decimal
	sourceB  map[string]decimal.Decimal
	fallback decimal.Decimal
}

// NewBuffers validates and builds the buffer tables. A zero fallback means
// DefaultBuffer.
func NewBuffers(sourceA, sourceB map[string]float64, fallback float64) (*Buffers, error) {
	b := &Buffers{
		sourceA:  make(map[string]decimal.Decimal, len(sourceA)),
		sourceB:  make(map[string]decimal.Decimal, len(sourceB)),
		fallback: DefaultBuffer,
	}

	if fallback < 0 {
		return nil, fmt.Errorf("default buffer must be positive, got %v", fallback)
	}
	if fallback > 0 {
		b.fallback = decimal.NewFromFloat(fallback)
	}

	if err := fill(b.sourceA, sourceA, "source A"); err != nil {
		return nil, err
	}
	if err := fill(b.sourceB, sourceB, "source B"); err != nil {
		return nil, err
	}

	return b, nil
}

func fill(dst map[string]decimal.Decimal, src map[string]float64, label string) error {
	for rawCode, value := range src {
		code := NormalizeCode(rawCode)
		if code == "" {
			return fmt.Errorf("%s buffer table contains an empty location code", label)
		}
		if value <= 0 {
			return fmt.Errorf("%s buffer for %s must be positive, got %v", label, code, value)
		}
		dst[code] = decimal.NewFromFloat(value)
	}
	return nil
}

// ForSourceA returns the buffer of a Source-A location code, or the default.
func (b *Buffers) ForSourceA(sourceACode string) decimal.Decimal {
	if b == nil {
		return DefaultBuffer
	}
	if value, ok := b.sourceA[NormalizeCode(sourceACode)]; ok {
		return value
	}
	return b.fallback
}

// SourceB returns the explicit buffer of a Source-B location code. The
// second result is false when none is configured.
func (b *Buffers) SourceB(sourceBCode string) (decimal.Decimal, bool) {
	if b == nil {
		return decimal.Zero, false
	}
	value, ok := b.sourceB[NormalizeCode(sourceBCode)]
	return value, ok
}

// Default returns the fallback multiplier.
func (b *Buffers) Default() decimal.Decimal {
	if b == nil {
		return DefaultBuffer
	}
	return b.fallback
}
