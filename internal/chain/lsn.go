package chain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// LSN is a SQL Server log sequence number.
//
// The catalog stores LSNs as numeric(25,0), which does not fit into an int64,
// so LSNs are kept as exact decimals and never converted through float.
type LSN struct {
	value decimal.Decimal
}

// ZeroLSN is the LSN with value 0.
var ZeroLSN = LSN{}

// NewLSN creates an LSN from an int64
func NewLSN(v int64) LSN {
	return LSN{value: decimal.NewFromInt(v)}
}

// ParseLSN parses a decimal string into an LSN
func ParseLSN(s string) (LSN, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return LSN{}, fmt.Errorf("empty LSN")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return LSN{}, fmt.Errorf("invalid LSN %q: %w", s, err)
	}
	return LSN{value: d}, nil
}

// MustParseLSN is like ParseLSN but panics on malformed input.
func MustParseLSN(s string) LSN {
	lsn, err := ParseLSN(s)
	if err != nil {
		panic(err)
	}
	return lsn
}

// Cmp returns -1, 0 or +1 depending on whether l is less than, equal to or greater than other
func (l LSN) Cmp(other LSN) int {
	return l.value.Cmp(other.value)
}

// Equal reports whether both LSNs denote the same number
func (l LSN) Equal(other LSN) bool {
	return l.value.Equal(other.value)
}

// LessThanOrEqual reports whether l <= other
func (l LSN) LessThanOrEqual(other LSN) bool {
	return l.value.LessThanOrEqual(other.value)
}

// GreaterThan reports whether l > other
func (l LSN) GreaterThan(other LSN) bool {
	return l.value.GreaterThan(other.value)
}

// Between reports whether lo <= l <= hi
func (l LSN) Between(lo, hi LSN) bool {
	return l.value.GreaterThanOrEqual(lo.value) && l.value.LessThanOrEqual(hi.value)
}

// IsZero reports whether the LSN is 0 (also the zero value)
func (l LSN) IsZero() bool {
	return l.value.IsZero()
}

// String returns the canonical decimal representation. Equal LSNs always
// produce the same string, which makes it usable as a map key.
func (l LSN) String() string {
	return l.value.String()
}

// Decimal exposes the underlying decimal value
func (l LSN) Decimal() decimal.Decimal {
	return l.value
}

// MaxLSN returns the larger of two LSNs
func MaxLSN(a, b LSN) LSN {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// Scan implements sql.Scanner for numeric catalog columns
func (l *LSN) Scan(src interface{}) error {
	if src == nil {
		return fmt.Errorf("cannot scan NULL into LSN")
	}
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return fmt.Errorf("invalid LSN value %v: %w", src, err)
	}
	l.value = d
	return nil
}

// Value implements driver.Valuer so LSNs can be passed as query arguments
func (l LSN) Value() (driver.Value, error) {
	return l.value.String(), nil
}

// MarshalText encodes the LSN as its decimal string
func (l LSN) MarshalText() ([]byte, error) {
	return []byte(l.value.String()), nil
}

// UnmarshalText parses a decimal string
func (l *LSN) UnmarshalText(text []byte) error {
	parsed, err := ParseLSN(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// MarshalJSON always writes a quoted string so that consumers decoding into
// float64 do not silently lose precision.
func (l LSN) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.value.String())
}

// UnmarshalJSON accepts both quoted and bare numbers
func (l *LSN) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return fmt.Errorf("LSN cannot be null")
	}
	raw = strings.Trim(raw, `"`)
	return l.UnmarshalText([]byte(raw))
}
