package pricing

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultMoneyFormat 默认金额模板
const DefaultMoneyFormat = "${{amount}}"

var moneyPlaceholder = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// FormatMoney 按店铺金额模板格式化，舍入只发生在这里
func FormatMoney(amount float64, format string) string {
	if strings.TrimSpace(format) == "" {
		format = DefaultMoneyFormat
	}
	value := decimal.NewFromFloat(amount)
	return moneyPlaceholder.ReplaceAllStringFunc(format, func(token string) string {
		name := moneyPlaceholder.FindStringSubmatch(token)[1]
		switch name {
		case "amount":
			return delimit(value, 2, ",", ".")
		case "amount_no_decimals":
			return delimit(value, 0, ",", ".")
		case "amount_with_comma_separator":
			return delimit(value, 2, ".", ",")
		case "amount_no_decimals_with_comma_separator":
			return delimit(value, 0, ".", ",")
		case "amount_with_apostrophe_separator":
			return delimit(value, 2, "'", ".")
		case "amount_with_space_separator":
			return delimit(value, 2, " ", ",")
		default:
			return token
		}
	})
}

// RoundMinor 舍入到分，用于比较两个展示价是否相同
func RoundMinor(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(2).InexactFloat64()
}

func delimit(value decimal.Decimal, precision int32, thousands, decimalSep string) string {
	fixed := value.Round(precision).StringFixed(precision)
	negative := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	integer, fraction, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	if negative && strings.Trim(fixed, "0.") != "" {
		b.WriteByte('-')
	}
	for i, r := range integer {
		if i > 0 && (len(integer)-i)%3 == 0 {
			b.WriteString(thousands)
		}
		b.WriteRune(r)
	}
	if fraction != "" {
		b.WriteString(decimalSep)
		b.WriteString(fraction)
	}
	return b.String()
}
