package bounty

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// FormatAmount renders base units as a decimal string, e.g. 10000000 with 6
// decimals is "10".
func FormatAmount(amount uint64, decimals uint8) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals)).String()
}

// ParseAmount converts a decimal string such as "10.5" into base units. More
// fractional digits than the mint allows is an error, never a rounding.
func ParseAmount(s string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidArgument, "amount %q: %v", s, err)
	}
	if d.IsNegative() {
		return 0, errors.Wrapf(ErrInvalidArgument, "amount %q is negative", s)
	}
	units := d.Shift(int32(decimals))
	if !units.Equal(units.Truncate(0)) {
		return 0, errors.Wrapf(ErrInvalidArgument, "amount %q has more than %d decimals", s, decimals)
	}
	bi := units.BigInt()
	if !bi.IsUint64() {
		return 0, errors.Wrapf(ErrInvalidArgument, "amount %q overflows", s)
	}
	return bi.Uint64(), nil
}
