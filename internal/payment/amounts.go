package payment

import (
	"fmt"
	"math/big"
	"strings"
)

// currencyDecimals returns the decimal places for a currency symbol. Stablecoins
// default to 6, matching the major issuers.
func currencyDecimals(currency string) int {
	switch strings.ToUpper(currency) {
	case "USDC", "USDT":
		return 6
	case "ETH", "WETH", "DAI":
		return 18
	default:
		return 6
	}
}

// ToSmallestUnit converts a human-readable decimal amount (e.g. "1.5") into
// the token's smallest unit as a decimal string. Uses big.Rat so sponsor-scale
// amounts never lose precision to floating point.
func ToSmallestUnit(amount string, currency string) (string, error) {
	rat, ok := new(big.Rat).SetString(amount)
	if !ok {
		return "", fmt.Errorf("%w: invalid amount %q", ErrValidation, amount)
	}
	if rat.Sign() < 0 {
		return "", fmt.Errorf("%w: amount must not be negative", ErrValidation)
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(currencyDecimals(currency))), nil)
	rat.Mul(rat, new(big.Rat).SetInt(scale))

	if !rat.IsInt() {
		return "", fmt.Errorf("%w: amount %q has more precision than %s supports", ErrValidation, amount, currency)
	}

	return rat.Num().String(), nil
}

// FromSmallestUnit renders a smallest-unit amount as a human-readable decimal
// string for display and logging.
func FromSmallestUnit(amount string, currency string) (string, error) {
	value, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return "", fmt.Errorf("%w: invalid amount %q", ErrValidation, amount)
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(currencyDecimals(currency))), nil)
	rat := new(big.Rat).SetFrac(value, scale)

	// Trim trailing zeros from the fixed-point rendering
	rendered := rat.FloatString(currencyDecimals(currency))
	rendered = strings.TrimRight(rendered, "0")
	rendered = strings.TrimSuffix(rendered, ".")
	return rendered, nil
}
