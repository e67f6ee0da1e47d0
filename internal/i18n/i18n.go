package i18n

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
)

// 支持的语言
const (
	LocaleZH = "zh-CN"
	LocaleTW = "zh-TW"
	LocaleEN = "en-US"
)

// DefaultLocale 无法识别时的语言
const DefaultLocale = LocaleZH

var supported = []language.Tag{
	language.MustParse(LocaleZH),
	language.MustParse(LocaleTW),
	language.MustParse(LocaleEN),
}

var matcher = language.NewMatcher(supported)

// NormalizeLocale 将任意语言标记归一到支持的语言
func NormalizeLocale(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultLocale
	}
	tags, _, err := language.ParseAcceptLanguage(raw)
	if err != nil || len(tags) == 0 {
		return DefaultLocale
	}
	_, idx, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return DefaultLocale
	}
	return supported[idx].String()
}

// ResolveLocale 依次读取 ?lang、X-Locale、Accept-Language
func ResolveLocale(c *gin.Context) string {
	if c == nil {
		return DefaultLocale
	}
	if lang := strings.TrimSpace(c.Query("lang")); lang != "" {
		return NormalizeLocale(lang)
	}
	if c.Request != nil {
		if header := strings.TrimSpace(c.GetHeader("X-Locale")); header != "" {
			return NormalizeLocale(header)
		}
		return NormalizeLocale(c.GetHeader("Accept-Language"))
	}
	return DefaultLocale
}

// T 翻译文案，缺失时回退到默认语言，再回退到 key 本身
func T(locale, key string) string {
	if msg, ok := lookup(locale, key); ok {
		return msg
	}
	if msg, ok := lookup(DefaultLocale, key); ok {
		return msg
	}
	return key
}

// Sprintf 翻译后按参数格式化
func Sprintf(locale, key string, args ...interface{}) string {
	return fmt.Sprintf(T(locale, key), args...)
}

func lookup(locale, key string) (string, bool) {
	catalog, ok := catalogs[locale]
	if !ok {
		return "", false
	}
	msg, ok := catalog[key]
	return msg, ok
}
