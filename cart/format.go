package cart

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var pricePrinter = message.NewPrinter(language.MustParse("es-CL"))

// FormatPrice renders whole Chilean pesos, for example $12.990.
func FormatPrice(price int64) string {
	return pricePrinter.Sprintf("$%d", price)
}
