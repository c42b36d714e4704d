package extract

import (
	"math"
	"testing"
)

func TestParsePriceFormats(t *testing.T) {
	t.Parallel()

	cases := map[string]float64{
		"5,299.00":        5299.00,
		"5.299,00":        5299.00,
		"1.234,56 lei":    1234.56,
		"$1,234.56":       1234.56,
		"1234,56":         1234.56,
		"Pret: 5 299,00 €": 5299.00,
		"42":              42,
		"0.99":            0.99,
	}

	for raw, want := range cases {
		price := ParsePrice(raw)
		if !price.Valid {
			t.Fatalf("ParsePrice(%q) unexpectedly invalid", raw)
		}
		if math.Abs(price.Value-want) > 1e-9 {
			t.Fatalf("ParsePrice(%q) = %v, want %v", raw, price.Value, want)
		}
	}
}

func TestParsePriceUnparseable(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "abc", "   ", "out of stock", ",.,", "..."} {
		if price := ParsePrice(raw); price.Valid {
			t.Fatalf("ParsePrice(%q) = %v, want invalid", raw, price.Value)
		}
	}
}
