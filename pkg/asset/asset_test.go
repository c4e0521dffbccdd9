package asset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndString(t *testing.T) {
	a, err := Parse("1.00000 GRAEL")
	require.NoError(t, err)
	assert.Equal(t, "1.00000 GRAEL", a.String())
}

func TestParseRejectsShortFraction(t *testing.T) {
	_, err := Parse("1 GRAEL")
	assert.Error(t, err)
}

func TestParseRejectsLongFraction(t *testing.T) {
	_, err := Parse("1.000000 GRAEL")
	assert.Error(t, err)
}

func TestParseRejectsLowercaseUnit(t *testing.T) {
	_, err := Parse("1.00000 mark")
	assert.Error(t, err)
}

func TestCheckedMul(t *testing.T) {
	a := New(12345600, DefaultUnit)    // 123.45600
	b := New(10000011111, DefaultUnit) // 100000.11111
	got, ok := a.CheckedMul(b)
	require.True(t, ok)
	assert.Equal(t, int64(1234561371719), got.Amount)
}

func TestCheckedDivByZero(t *testing.T) {
	a := New(100, DefaultUnit)
	_, ok := a.CheckedDiv(New(0, DefaultUnit))
	assert.False(t, ok)
}

func TestCheckedAddOverflow(t *testing.T) {
	a := New(math.MaxInt64, DefaultUnit)
	_, ok := a.CheckedAdd(New(1, DefaultUnit))
	assert.False(t, ok)
}

func TestCheckedDivTruncation(t *testing.T) {
	a := New(100000, DefaultUnit) // 1.00000
	b := New(300000, DefaultUnit) // 3.00000
	q, ok := a.CheckedDiv(b)
	require.True(t, ok)
	// |q*b - a| <= 10^-5 i.e. at most one unit of amount precision
	prod, ok := q.CheckedMul(b)
	require.True(t, ok)
	diff := prod.Amount - a.Amount
	if diff < 0 {
		diff = -diff
	}
	assert.LessOrEqual(t, diff, int64(1))
}
