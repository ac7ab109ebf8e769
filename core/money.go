package core

import (
	"fmt"
	"strings"
)

// minor-unit exponents for the currencies the marketplace bills in.
var currencyExponents = map[string]int{
	"OMR": 3,
	"BHD": 3,
	"KWD": 3,
	"AED": 2,
	"SAR": 2,
	"QAR": 2,
	"USD": 2,
	"EUR": 2,
	"GBP": 2,
	"JPY": 0,
}

// CurrencyExponent returns the number of decimals for a currency (2 when unknown).
func CurrencyExponent(currency string) int {
	if exp, ok := currencyExponents[strings.ToUpper(currency)]; ok {
		return exp
	}
	return 2
}

func IsKnownCurrency(currency string) bool {
	_, ok := currencyExponents[strings.ToUpper(currency)]
	return ok
}

// FormatAmount renders minor units, eg. FormatAmount(12500, "OMR") == "12.500 OMR".
func FormatAmount(minor int64, currency string) string {
	exp := CurrencyExponent(currency)
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	if exp == 0 {
		return fmt.Sprintf("%s%d %s", sign, minor, strings.ToUpper(currency))
	}
	div := int64(1)
	for i := 0; i < exp; i++ {
		div *= 10
	}
	return fmt.Sprintf("%s%d.%0*d %s", sign, minor/div, exp, minor%div, strings.ToUpper(currency))
}

// ApplyRateBP returns amount * bp / 10000 rounded half up (away from zero).
func ApplyRateBP(amount int64, bp int) int64 {
	prod := amount * int64(bp)
	if prod >= 0 {
		return (prod + 5000) / 10000
	}
	return -((-prod + 5000) / 10000)
}
