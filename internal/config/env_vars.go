package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	appNameVar  = "APP_NAME"
	envVar      = "ENV"
	logLevelVar = "LOG_LEVEL"
)

type EnvVars struct {
	v *viper.Viper
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.v.GetString(appNameVar)
}

func (e EnvVars) GetEnv() string {
	env := strings.ToUpper(e.v.GetString(envVar))
	if env == "" {
		return "DEV"
	}
	return env
}

func (e EnvVars) GetLogLevel() string {
	return strings.ToLower(e.v.GetString(logLevelVar))
}

func defaultDataFolder() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "./data"
	}
	return filepath.Join(home, ".school-admin")
}
