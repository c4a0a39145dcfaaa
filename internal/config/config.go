package config

import (
	"errors"
	"os"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr        string
	DBDSN           string
	JWTIssuer       string
	JWTSecret       string
	JWTTTL          time.Duration
	InternalToken   string
	WebSocketOrigin string
	AppMode         string
	IPNSecret       string
	GatewayAPIURL   string
	GatewayAPIKey   string
	GatewaySecret   string
	GatewayCurrency string
	CallbackBaseURL string
	CommissionRate  string
	StoreTimeout    time.Duration
	AccrualInterval time.Duration
	LogLevel        string
	LogFormat       string
}

func Load() (Config, error) {
	var c Config
	var missing []string
	c.HTTPAddr = os.Getenv("HTTP_ADDR")
	if c.HTTPAddr == "" {
		missing = append(missing, "HTTP_ADDR")
	}
	c.DBDSN = os.Getenv("DB_DSN")
	if c.DBDSN == "" {
		missing = append(missing, "DB_DSN")
	}
	c.JWTIssuer = os.Getenv("JWT_ISSUER")
	if c.JWTIssuer == "" {
		missing = append(missing, "JWT_ISSUER")
	}
	c.JWTSecret = os.Getenv("JWT_SECRET")
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	jwtTTL := os.Getenv("JWT_TTL")
	if jwtTTL == "" {
		missing = append(missing, "JWT_TTL")
	} else {
		d, err := time.ParseDuration(jwtTTL)
		if err != nil {
			return c, err
		}
		c.JWTTTL = d
	}
	c.InternalToken = os.Getenv("INTERNAL_API_TOKEN")
	if c.InternalToken == "" {
		missing = append(missing, "INTERNAL_API_TOKEN")
	}
	c.WebSocketOrigin = os.Getenv("WS_ORIGIN")
	if c.WebSocketOrigin == "" {
		missing = append(missing, "WS_ORIGIN")
	}
	c.AppMode = strings.ToLower(strings.TrimSpace(os.Getenv("APP_MODE")))
	if c.AppMode == "" {
		c.AppMode = "development"
	}
	if c.AppMode != "development" && c.AppMode != "production" {
		return c, errors.New("invalid APP_MODE: use development or production")
	}
	c.IPNSecret = os.Getenv("IPN_SECRET")
	if c.AppMode == "production" && c.IPNSecret == "" {
		missing = append(missing, "IPN_SECRET")
	}
	c.GatewayAPIURL = os.Getenv("GATEWAY_API_URL")
	c.GatewayAPIKey = os.Getenv("GATEWAY_API_KEY")
	c.GatewaySecret = os.Getenv("GATEWAY_API_SECRET")
	c.GatewayCurrency = os.Getenv("GATEWAY_CURRENCY")
	if c.GatewayCurrency == "" {
		c.GatewayCurrency = "USDT.TRC20"
	}
	c.CallbackBaseURL = os.Getenv("CALLBACK_BASE_URL")
	c.CommissionRate = os.Getenv("REFERRAL_COMMISSION_RATE")
	if c.CommissionRate == "" {
		c.CommissionRate = "0.10"
	}
	storeTimeout := os.Getenv("STORE_TIMEOUT")
	if storeTimeout == "" {
		c.StoreTimeout = 5 * time.Second
	} else {
		d, err := time.ParseDuration(storeTimeout)
		if err != nil {
			return c, err
		}
		c.StoreTimeout = d
	}
	accrualInterval := os.Getenv("ACCRUAL_INTERVAL")
	if accrualInterval != "" {
		d, err := time.ParseDuration(accrualInterval)
		if err != nil {
			return c, err
		}
		c.AccrualInterval = d
	}
	c.LogLevel = os.Getenv("LOG_LEVEL")
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.LogFormat = os.Getenv("LOG_FORMAT")
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if len(missing) > 0 {
		return c, errors.New("missing required env: " + strings.Join(missing, ","))
	}
	return c, nil
}
