package importer

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount reads a bank-formatted money value. Currency symbols,
// thousands separators and whitespace are ignored, as are letter codes
// before or after the number ("CAD 20.00", "15.00 CR"); "(x)" and a
// trailing "-" mean negative. Values that do not parse are zero.
func ParseAmount(s string) decimal.Decimal {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Sc, r) || unicode.IsSpace(r) || r == ',' {
			return -1
		}
		return r
	}, s)
	cleaned = strings.TrimFunc(cleaned, isASCIILetter)

	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") && len(cleaned) > 2 {
		cleaned = strings.TrimFunc(cleaned[1:len(cleaned)-1], isASCIILetter)
		negative = true
	}
	if strings.HasSuffix(cleaned, "-") && len(cleaned) > 1 {
		cleaned = cleaned[:len(cleaned)-1]
		negative = !negative
	}
	// Letters left inside the number, exponents included, are not money.
	if strings.IndexFunc(cleaned, isASCIILetter) >= 0 {
		return decimal.Zero
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		return d.Neg()
	}
	return d
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

var numericPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)-?$`)

// isNumeric is stricter than ParseAmount: letters other than a currency
// symbol make the value non-numeric.
func isNumeric(s string) bool {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Sc, r) || unicode.IsSpace(r) || r == ',' {
			return -1
		}
		return r
	}, s)
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		cleaned = cleaned[1 : len(cleaned)-1]
	}
	return numericPattern.MatchString(cleaned)
}

var datePattern = regexp.MustCompile(`(?i)^(` +
	`\d{4}[-/.]\d{1,2}[-/.]\d{1,2}` +
	`|\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}` +
	`|\d{1,2}[- ][a-z]{3,9}[- ,]+\d{2,4}` +
	`|[a-z]{3,9}\.? \d{1,2},? \d{4}` +
	`)([ T]\d{1,2}:\d{2}(:\d{2})?.*)?$`)

func isDateLike(s string) bool {
	return datePattern.MatchString(strings.TrimSpace(s))
}
