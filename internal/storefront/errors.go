package storefront

import "errors"

var (
	// ErrMissingContext 页面上无法识别商品或规格
	ErrMissingContext = errors.New("product context unavailable")
	// ErrPriceUnavailable 任何来源都无法确定原价
	ErrPriceUnavailable = errors.New("original price unavailable")
	// ErrFetchFailed 店铺商品/购物车读取失败
	ErrFetchFailed = errors.New("storefront fetch failed")
	// ErrInvalidPayload 店铺返回的 JSON 无法解析
	ErrInvalidPayload = errors.New("invalid storefront payload")
)
