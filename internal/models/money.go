package models

import (
	"math"
	"strconv"
)

// ToMinor converts a currency amount to integer minor units (pence).
func ToMinor(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func FromMinor(minor int64) float64 {
	return float64(minor) / 100
}

// RoundAmount rounds to two decimals.
func RoundAmount(amount float64) float64 {
	return FromMinor(ToMinor(amount))
}

// VoucherPriceName names the price row shared by every voucher of one
// denomination, e.g. "VOUCHER-160.000".
func VoucherPriceName(amount float64) string {
	return VoucherPricePrefix + strconv.FormatFloat(RoundAmount(amount), 'f', 3, 64)
}
