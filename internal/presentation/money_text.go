package presentation

import (
	"regexp"
	"strconv"
	"strings"
)

var moneyTokenPattern = regexp.MustCompile(`\d+(?:[.,']\d+)*`)

// ParseMoneyText 从渲染文本中解析金额，仅作兜底
// 末位分隔符后为 1~2 位数字时视为小数点，其余分隔符视为千分位。
func ParseMoneyText(text string) []float64 {
	var values []float64
	for _, token := range moneyTokenPattern.FindAllString(text, -1) {
		if value, ok := parseMoneyToken(token); ok {
			values = append(values, value)
		}
	}
	return values
}

func parseMoneyToken(token string) (float64, bool) {
	last := strings.LastIndexAny(token, ".,'")
	normalized := token
	if last >= 0 {
		fraction := token[last+1:]
		sep := token[last]
		if sep != '\'' && len(fraction) >= 1 && len(fraction) <= 2 {
			integer := stripSeparators(token[:last])
			normalized = integer + "." + fraction
		} else {
			normalized = stripSeparators(token)
		}
	}
	value, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func stripSeparators(value string) string {
	return strings.NewReplacer(".", "", ",", "", "'", "").Replace(value)
}
