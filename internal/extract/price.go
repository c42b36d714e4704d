package extract

import (
	"regexp"
	"strconv"
	"strings"

	"pricewatch/internal/domain"
)

// usDecimalSuffix recognizes text whose decimal part is written US-style,
// i.e. ending with a period followed by exactly two digits.
var usDecimalSuffix = regexp.MustCompile(`\.\d{2}$`)

// ParsePrice converts locale-ambiguous numeric text into a canonical
// decimal price. Two written forms are supported: US style "5,299.00" and
// locale style "5.299,00"; both yield 5299.00. Anything that does not
// parse yields an invalid Price, never a numeric value.
func ParsePrice(raw string) domain.Price {
	if strings.TrimSpace(raw) == "" {
		return domain.Price{}
	}

	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return domain.Price{}
	}

	if usDecimalSuffix.MatchString(cleaned) {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	} else {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || value < 0 {
		return domain.Price{}
	}

	return domain.NewPrice(value)
}
