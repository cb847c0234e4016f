package fixedpoint

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Rate
		wantErr bool
	}{
		{name: "five percent", in: "0.05", want: Rate(50_000_000_000_000_000)},
		{name: "zero", in: "0", want: 0},
		{name: "one hundred percent", in: "1", want: Rate(Denominator)},
		{name: "sub-resolution truncated", in: "0.0000000000000000019", want: Rate(1)},
		{name: "negative", in: "-0.01", wantErr: true},
		{name: "garbage", in: "banana", wantErr: true},
		{name: "too large", in: "100000000000000000000", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseRate(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRateString(t *testing.T) {
	r, err := ParseRate("0.05")
	require.NoError(t, err)
	assert.Equal(t, "0.05", r.String())
	assert.Equal(t, "0", Rate(0).String())
}

func TestInterest(t *testing.T) {
	fivePct := Rate(50_000_000_000_000_000)

	tests := []struct {
		name      string
		principal uint64
		rate      Rate
		elapsed   int64
		want      uint64
	}{
		{name: "five percent over ten seconds", principal: 100, rate: fivePct, elapsed: 10, want: 50},
		{name: "zero elapsed", principal: 100, rate: fivePct, elapsed: 0, want: 0},
		{name: "negative elapsed", principal: 100, rate: fivePct, elapsed: -5, want: 0},
		{name: "zero principal", principal: 0, rate: fivePct, elapsed: 100, want: 0},
		{name: "zero rate", principal: 100, rate: 0, elapsed: 100, want: 0},
		// 1 * 5e16 * 1 / 1e18 = 0.05 floors to zero.
		{name: "floors down", principal: 1, rate: fivePct, elapsed: 1, want: 0},
		// 19 * 5e16 * 1 / 1e18 = 0.95 still floors to zero.
		{name: "floors down below one", principal: 19, rate: fivePct, elapsed: 1, want: 0},
		{name: "exactly one", principal: 20, rate: fivePct, elapsed: 1, want: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Interest(tc.principal, tc.rate, tc.elapsed)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestInterestOverflow(t *testing.T) {
	// max principal at 100%/s over two seconds doubles past uint64.
	_, err := Interest(math.MaxUint64, Rate(Denominator), 2)
	require.ErrorIs(t, err, ErrOverflow)
}

func TestGrow(t *testing.T) {
	fivePct := Rate(50_000_000_000_000_000)

	got, err := Grow(100, fivePct, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(150), got)

	_, err = Grow(math.MaxUint64, Rate(Denominator), 1)
	require.ErrorIs(t, err, ErrOverflow)
}

func TestAddChecked(t *testing.T) {
	sum, err := AddChecked(1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), sum)

	_, err = AddChecked(math.MaxUint64, 1)
	require.ErrorIs(t, err, ErrOverflow)
}
