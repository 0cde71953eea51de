package payment

import (
	"testing"

	"github.com/fjod/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLuhnValid(t *testing.T) {
	valid := []string{"4111111111111111", "5555555555554444", "378282246310005", "6011111111111117"}
	for _, n := range valid {
		assert.True(t, LuhnValid(n), n)
	}
	invalid := []string{"4111111111111112", "1234", "41111111111a1111", ""}
	for _, n := range invalid {
		assert.False(t, LuhnValid(n), n)
	}
}

func TestCardBrand(t *testing.T) {
	assert.Equal(t, "visa", CardBrand("4111111111111111"))
	assert.Equal(t, "mastercard", CardBrand("5555555555554444"))
	assert.Equal(t, "mastercard", CardBrand("2223003122003222"))
	assert.Equal(t, "amex", CardBrand("378282246310005"))
	assert.Equal(t, "discover", CardBrand("6011111111111117"))
	assert.Equal(t, "unknown", CardBrand("9999999999999995"))
}

func TestFormatAndMask(t *testing.T) {
	assert.Equal(t, "4111 1111 1111 1111", FormatCardNumber("4111111111111111"))
	assert.Equal(t, "3782 822463 10005", FormatCardNumber("378282246310005"))
	assert.Equal(t, "**** **** **** 1111", MaskCardNumber("4111111111111111"))
	assert.Equal(t, "**** ****** *0005", MaskCardNumber("378282246310005"))
}

func TestValidateCard(t *testing.T) {
	info, err := ValidateCard("4111-1111 1111-1111")
	require.NoError(t, err)
	assert.Equal(t, "visa", info.Brand)
	assert.Equal(t, "1111", info.Last4)
	assert.Equal(t, "4111 1111 1111 1111", info.Formatted)

	_, err = ValidateCard("4111 1111 1111 1112")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
