package utils

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewBasketID returns an opaque basket handle for a client that did not
// bring one.
func NewBasketID() string {
	return uuid.NewString()
}

// NewVoucherCode returns a redeemable voucher code such as VCH-3F2A9C-81D04B.
func NewVoucherCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("VCH-%s-%s", raw[:6], raw[6:12])
}
