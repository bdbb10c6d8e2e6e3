package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIdentifier(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"Already clean", "customer_id", "customer_id"},
		{"Spaces removed", "Order Details", "OrderDetails"},
		{"Punctuation removed", "price-$(usd)", "priceusd"},
		{"Leading digit kept", "2019_sales", "2019_sales"},
		{"Brackets and dots", "[dbo].[Users]", "dboUsers"},
		{"Unicode letters kept", "Straße", "Straße"},
		{"Only symbols", "#@!-", ""},
		{"Empty", "", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, NormalizeIdentifier(tc.input))
		})
	}
}

func TestNormalizeIdentifierIdempotent(t *testing.T) {
	for _, in := range []string{"a b", "x-y_z", "Ünïcode name", "123"} {
		once := NormalizeIdentifier(in)
		assert.Equal(t, once, NormalizeIdentifier(once), "input %q", in)
	}
}
