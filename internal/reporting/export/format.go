package export

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var moneyPrinter = message.NewPrinter(language.English)

// formatMoney renders an amount with thousands separators and two
// decimals, e.g. 12,345.60.
func formatMoney(v float64) string {
	return moneyPrinter.Sprintf("%.2f", v)
}
