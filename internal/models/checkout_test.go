package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSessionStatusFailsClosed(t *testing.T) {
	assert.Equal(t, SessionStatusOpen, ParseSessionStatus("open"))
	assert.Equal(t, SessionStatusComplete, ParseSessionStatus(" Complete "))
	assert.Equal(t, SessionStatusUnknown, ParseSessionStatus("processing"))
	assert.Equal(t, SessionStatusUnknown, ParseSessionStatus(""))

	assert.True(t, SessionStatusOpen.IsActive())
	assert.True(t, SessionStatusPending.IsActive())
	assert.False(t, SessionStatusComplete.IsActive())
	assert.False(t, SessionStatusExpired.IsActive())
	assert.False(t, SessionStatusUnknown.IsActive())
}

func TestLineItemKeyMetadataRoundTrip(t *testing.T) {
	key := LineItemKey{EventID: 3, PerformanceID: -2, PriceID: 14}

	parsed, ok := ParseLineItemKey(key.Metadata())

	assert.True(t, ok)
	assert.Equal(t, key, parsed)
}

func TestParseLineItemKeyRejectsPartialMetadata(t *testing.T) {
	_, ok := ParseLineItemKey(map[string]string{MetaEventID: "1", MetaPerformanceID: "2"})
	assert.False(t, ok)

	_, ok = ParseLineItemKey(nil)
	assert.False(t, ok)

	_, ok = ParseLineItemKey(map[string]string{MetaEventID: "1", MetaPerformanceID: "x", MetaPriceID: "3"})
	assert.False(t, ok)
}

func TestMoneyHelpers(t *testing.T) {
	assert.Equal(t, int64(1999), ToMinor(19.99))
	assert.Equal(t, int64(30), ToMinor(0.1+0.2))
	assert.Equal(t, 160.0, FromMinor(16000))
	assert.Equal(t, "VOUCHER-160.000", VoucherPriceName(160))
	assert.Equal(t, "VOUCHER-12.500", VoucherPriceName(12.5))
}
