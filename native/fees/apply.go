package fees

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

const (
	// PermilleDenominator expresses fee rates in parts per thousand.
	PermilleDenominator = 1_000
	// MaxFeePermille caps the platform fee at 10% of any tip.
	MaxFeePermille = 100
)

// ErrFeeTooHigh is returned when a fee rate exceeds MaxFeePermille.
var ErrFeeTooHigh = errors.New("fees: fee permille exceeds maximum")

var permilleDenominator = uint256.NewInt(PermilleDenominator)

// Split is the outcome of applying a fee rate to a gross amount.
type Split struct {
	Gross       uint64
	Fee         uint64
	Net         uint64
	FeePermille uint64
}

// ValidatePermille checks that the rate is within [0, MaxFeePermille].
func ValidatePermille(feePermille uint64) error {
	if feePermille > MaxFeePermille {
		return fmt.Errorf("%w: %d > %d", ErrFeeTooHigh, feePermille, MaxFeePermille)
	}
	return nil
}

// ComputeSplit returns fee = floor(gross * feePermille / 1000) and
// net = gross - fee. The product is evaluated in 256-bit arithmetic so any
// uint64 gross amount is safe.
func ComputeSplit(gross, feePermille uint64) (Split, error) {
	if err := ValidatePermille(feePermille); err != nil {
		return Split{}, err
	}
	product := new(uint256.Int).Mul(uint256.NewInt(gross), uint256.NewInt(feePermille))
	fee := product.Div(product, permilleDenominator).Uint64()
	return Split{
		Gross:       gross,
		Fee:         fee,
		Net:         gross - fee,
		FeePermille: feePermille,
	}, nil
}
