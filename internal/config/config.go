package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config interface {
	EnvConfig
	APIConfig
	StorageConfig
	DevAPIConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	API
	Storage
	DevAPI
}

// New reads .env (if present) and the environment. Flags bound later through BindFlags
// take precedence over both.
func New() Config {
	return NewFromViper(Load(""))
}

// NewFromViper wraps an already populated viper instance. Tests use it to inject values
// without touching the process environment.
func NewFromViper(v *viper.Viper) Config {
	return mainConfig{
		EnvVars: EnvVars{v: v},
		API:     API{v: v},
		Storage: Storage{v: v},
		DevAPI:  DevAPI{v: v},
	}
}

// Load builds a viper instance with defaults for every known key. An empty envFile means ".env".
// A missing file is ignored.
func Load(envFile string) *viper.Viper {
	v := viper.New()

	if envFile == "" {
		envFile = ".env"
	}
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// BindFlags maps command line flags onto config keys, e.g. "api-url" -> API_BASE_URL.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet, mapping map[string]string) error {
	for flagName, key := range mapping {
		f := flags.Lookup(flagName)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(appNameVar, "School Admin")
	v.SetDefault(envVar, "DEV")
	v.SetDefault(logLevelVar, "info")
	v.SetDefault(apiBaseURLVar, "http://localhost:8000/api")
	v.SetDefault(apiTimeoutVar, "30s")
	v.SetDefault(apiRateLimitVar, 0)
	v.SetDefault(apiRateBurstVar, 10)
	v.SetDefault(dataFolderVar, defaultDataFolder())
	v.SetDefault(sessionKeyVar, "")
	v.SetDefault(devAPIAddrVar, ":8000")
	v.SetDefault(devAccessTTLVar, "15m")
	v.SetDefault(devSigningKeyVar, "dev-signing-key")
}
