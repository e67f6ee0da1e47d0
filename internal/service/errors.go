package service

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("not found")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrWeakPassword       = errors.New("weak password")
	ErrAdminExists        = errors.New("admin already exists")

	ErrPricingRuleNotFound     = errors.New("pricing rule not found")
	ErrPricingRuleInvalid      = errors.New("pricing rule invalid")
	ErrPricingRuleFetchFailed  = errors.New("pricing rule fetch failed")
	ErrPricingRuleCreateFailed = errors.New("pricing rule create failed")
	ErrPricingRuleUpdateFailed = errors.New("pricing rule update failed")
	ErrPricingRuleDeleteFailed = errors.New("pricing rule delete failed")
	ErrRuleSourceUnavailable   = errors.New("pricing rule source unavailable")

	ErrRenderInputInvalid    = errors.New("render input invalid")
	ErrQuoteContextMissing   = errors.New("quote context missing")
	ErrQuotePriceUnavailable = errors.New("quote price unavailable")
	ErrSessionClosed         = errors.New("pricing session closed")
)
