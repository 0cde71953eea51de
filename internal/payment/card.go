package payment

import (
	"strings"

	"github.com/fjod/storefront/internal/domain"
)

type CardInfo struct {
	Brand     string `json:"brand"`
	Formatted string `json:"formatted"`
	Masked    string `json:"masked"`
	Last4     string `json:"last4"`
}

func NormalizeCardNumber(number string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(number)
}

// LuhnValid expects digits only.
func LuhnValid(digits string) bool {
	if len(digits) < 12 || len(digits) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func CardBrand(digits string) string {
	prefix := func(n int) int {
		if len(digits) < n {
			return -1
		}
		v := 0
		for _, c := range digits[:n] {
			v = v*10 + int(c-'0')
		}
		return v
	}
	switch {
	case strings.HasPrefix(digits, "4"):
		return "visa"
	case prefix(2) >= 51 && prefix(2) <= 55, prefix(4) >= 2221 && prefix(4) <= 2720:
		return "mastercard"
	case prefix(2) == 34 || prefix(2) == 37:
		return "amex"
	case strings.HasPrefix(digits, "6011"), strings.HasPrefix(digits, "65"), prefix(3) >= 644 && prefix(3) <= 649:
		return "discover"
	}
	return "unknown"
}

// FormatCardNumber groups digits the way they are printed on the card.
func FormatCardNumber(digits string) string {
	return group(digits, CardBrand(digits) == "amex")
}

func group(s string, amex bool) string {
	groups := []int{4, 4, 4, 4, 3}
	if amex {
		groups = []int{4, 6, 5}
	}
	var parts []string
	rest := s
	for _, g := range groups {
		if rest == "" {
			break
		}
		if len(rest) < g {
			g = len(rest)
		}
		parts = append(parts, rest[:g])
		rest = rest[g:]
	}
	if rest != "" {
		parts = append(parts, rest)
	}
	return strings.Join(parts, " ")
}

func MaskCardNumber(digits string) string {
	if len(digits) < 4 {
		return strings.Repeat("*", len(digits))
	}
	masked := strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
	return group(masked, CardBrand(digits) == "amex")
}

func ValidateCard(number string) (CardInfo, error) {
	digits := NormalizeCardNumber(number)
	if !LuhnValid(digits) {
		return CardInfo{}, domain.Invalid("card number is invalid")
	}
	return CardInfo{
		Brand:     CardBrand(digits),
		Formatted: FormatCardNumber(digits),
		Masked:    MaskCardNumber(digits),
		Last4:     digits[len(digits)-4:],
	}, nil
}
