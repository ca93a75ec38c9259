package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	devAPIAddrVar    = "DEV_API_ADDR"
	devAccessTTLVar  = "DEV_ACCESS_TTL"
	devSigningKeyVar = "DEV_SIGNING_KEY"
)

// DevAPIConfig configures the local stand-in for the school REST API.
type DevAPIConfig interface {
	GetDevAPIAddr() string
	GetDevAccessTokenTTL() time.Duration
	GetDevSigningKey() string
}

type DevAPI struct {
	v *viper.Viper
}

var _ DevAPIConfig = DevAPI{}

func (d DevAPI) GetDevAPIAddr() string {
	return d.v.GetString(devAPIAddrVar)
}

func (d DevAPI) GetDevAccessTokenTTL() time.Duration {
	ttl := d.v.GetDuration(devAccessTTLVar)
	if ttl <= 0 {
		return 15 * time.Minute
	}
	return ttl
}

func (d DevAPI) GetDevSigningKey() string {
	return d.v.GetString(devSigningKeyVar)
}
