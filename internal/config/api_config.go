package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	apiBaseURLVar   = "API_BASE_URL"
	apiTimeoutVar   = "API_TIMEOUT"
	apiRateLimitVar = "API_RATE_LIMIT"
	apiRateBurstVar = "API_RATE_BURST"

	defaultAPITimeout = 30 * time.Second
)

type APIConfig interface {
	GetAPIBaseURL() string
	GetAPITimeout() time.Duration
	// GetAPIRateLimit is requests per second; 0 disables limiting.
	GetAPIRateLimit() float64
	GetAPIRateBurst() int
}

type API struct {
	v *viper.Viper
}

var _ APIConfig = API{}

func (a API) GetAPIBaseURL() string {
	return a.v.GetString(apiBaseURLVar)
}

func (a API) GetAPITimeout() time.Duration {
	d := a.v.GetDuration(apiTimeoutVar)
	if d <= 0 {
		return defaultAPITimeout
	}
	return d
}

func (a API) GetAPIRateLimit() float64 {
	return a.v.GetFloat64(apiRateLimitVar)
}

func (a API) GetAPIRateBurst() int {
	burst := a.v.GetInt(apiRateBurstVar)
	if burst < 1 {
		return 1
	}
	return burst
}
