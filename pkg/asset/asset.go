// Package asset implements the node's fixed-point decimal currency type:
// a signed 64-bit integer scaled to exactly five decimal places, with
// checked arithmetic and a canonical string form. The design is fixed by
// spec.md §3/§8, not open to redesign; the implementation follows the
// layout of original_source's asset/mod.rs (RegiusMark) translated into
// idiomatic Go rather than ported line-for-line.
package asset

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

const (
	// Precision is the number of fractional decimal digits an Asset carries.
	Precision = 5
	// MaxStrLen is the longest accepted textual representation.
	MaxStrLen = 26
	// DefaultUnit is the unit symbol used by genesis, rewards and fees
	// unless a transaction specifies otherwise.
	DefaultUnit = "GRAEL"

	scale = 100000 // 10^Precision
)

// Asset is a signed fixed-point number with Precision fractional digits,
// e.g. Amount == 100000 represents "1.00000".
type Asset struct {
	Amount int64
	Unit   string
}

// New constructs an Asset from a raw scaled amount and unit symbol.
func New(amount int64, unit string) Asset {
	if unit == "" {
		unit = DefaultUnit
	}
	return Asset{Amount: amount, Unit: unit}
}

// Zero is the additive identity in the default unit.
func Zero() Asset { return New(0, DefaultUnit) }

// Parse decodes a string of the form "[-]digits.ddddd UNIT" (exactly
// Precision fractional digits, a single space, then the unit symbol).
func Parse(s string) (Asset, error) {
	if len(s) > MaxStrLen {
		return Asset{}, fmt.Errorf("asset: string too long (%d > %d)", len(s), MaxStrLen)
	}
	parts := strings.SplitN(strings.TrimSpace(s), " ", 2)
	if len(parts) != 2 {
		return Asset{}, fmt.Errorf("asset: InvalidFormat")
	}
	numPart, unit := parts[0], parts[1]

	dot := strings.IndexByte(numPart, '.')
	if dot < 0 {
		return Asset{}, fmt.Errorf("asset: InvalidFormat")
	}
	decimals := len(numPart) - dot - 1
	if decimals != Precision {
		return Asset{}, fmt.Errorf("asset: InvalidFormat")
	}

	digits := numPart[:dot] + numPart[dot+1:]
	if digits == "" || digits == "-" {
		return Asset{}, fmt.Errorf("asset: InvalidFormat")
	}
	amount, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return Asset{}, fmt.Errorf("asset: InvalidAmount")
	}

	if !isValidUnit(unit) {
		return Asset{}, fmt.Errorf("asset: InvalidAssetType")
	}

	return Asset{Amount: amount, Unit: unit}, nil
}

func isValidUnit(unit string) bool {
	if unit == "" || len(unit) > 5 {
		return false
	}
	for _, r := range unit {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// String renders the canonical "[-]digits.ddddd UNIT" form.
func (a Asset) String() string {
	neg := a.Amount < 0
	abs := a.Amount
	if neg {
		abs = -abs
	}
	s := strconv.FormatInt(abs, 10)
	for len(s) <= Precision {
		s = "0" + s
	}
	whole := s[:len(s)-Precision]
	frac := s[len(s)-Precision:]
	sign := ""
	if neg {
		sign = "-"
	}
	unit := a.Unit
	if unit == "" {
		unit = DefaultUnit
	}
	return fmt.Sprintf("%s%s.%s %s", sign, whole, frac, unit)
}

// unit returns a's unit symbol, with an empty unit read as DefaultUnit;
// CheckedAdd and CheckedSub compare these to decide whether two assets
// can interoperate.
func (a Asset) unit() string {
	if a.Unit == "" {
		return DefaultUnit
	}
	return a.Unit
}

// CheckedAdd returns a+b, or false if the unit mismatches or the sum
// overflows an int64.
func (a Asset) CheckedAdd(b Asset) (Asset, bool) {
	if a.unit() != b.unit() {
		return Asset{}, false
	}
	sum := a.Amount + b.Amount
	if (b.Amount > 0 && sum < a.Amount) || (b.Amount < 0 && sum > a.Amount) {
		return Asset{}, false
	}
	return New(sum, a.unit()), true
}

// CheckedSub returns a-b, or false on overflow or unit mismatch.
func (a Asset) CheckedSub(b Asset) (Asset, bool) {
	if a.unit() != b.unit() {
		return Asset{}, false
	}
	diff := a.Amount - b.Amount
	if (b.Amount < 0 && diff < a.Amount) || (b.Amount > 0 && diff > a.Amount) {
		return Asset{}, false
	}
	return New(diff, a.unit()), true
}

// CheckedMul multiplies two assets using a 128-bit intermediate (here,
// math/big) and rescales from 2*Precision back down to Precision,
// truncating toward zero. Returns false on overflow of the int64 range.
func (a Asset) CheckedMul(b Asset) (Asset, bool) {
	prod := new(big.Int).Mul(big.NewInt(a.Amount), big.NewInt(b.Amount))
	// prod is scaled by 10^(2*Precision); rescale down to 10^Precision.
	div := big.NewInt(scale)
	q, _ := new(big.Int).QuoRem(prod, div, new(big.Int))
	if !q.IsInt64() {
		return Asset{}, false
	}
	return New(q.Int64(), a.unit()), true
}

// CheckedDiv divides a by b, truncating toward zero, or returns false if
// b is zero.
func (a Asset) CheckedDiv(b Asset) (Asset, bool) {
	if b.Amount == 0 {
		return Asset{}, false
	}
	num := new(big.Int).Mul(big.NewInt(a.Amount), big.NewInt(scale))
	q, _ := new(big.Int).QuoRem(num, big.NewInt(b.Amount), new(big.Int))
	if !q.IsInt64() {
		return Asset{}, false
	}
	return New(q.Int64(), a.unit()), true
}

// Cmp returns -1, 0, or 1 comparing a to b (units assumed equal).
func (a Asset) Cmp(b Asset) int {
	switch {
	case a.Amount < b.Amount:
		return -1
	case a.Amount > b.Amount:
		return 1
	default:
		return 0
	}
}

// Positive reports whether the amount is strictly greater than zero.
func (a Asset) Positive() bool { return a.Amount > 0 }

// IsZero reports whether the amount is exactly zero.
func (a Asset) IsZero() bool { return a.Amount == 0 }

// Neg returns -a.
func (a Asset) Neg() Asset { return New(-a.Amount, a.unit()) }
