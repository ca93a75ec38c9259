package config

import "github.com/spf13/viper"

const (
	dataFolderVar = "DATA_FOLDER"
	sessionKeyVar = "SESSION_KEY"
)

type StorageConfig interface {
	GetDataFolder() string
	// GetSessionKey is the passphrase used to seal the persisted session. Empty stores it in plain JSON.
	GetSessionKey() string
}

type Storage struct {
	v *viper.Viper
}

var _ StorageConfig = Storage{}

func (s Storage) GetDataFolder() string {
	return s.v.GetString(dataFolderVar)
}

func (s Storage) GetSessionKey() string {
	return s.v.GetString(sessionKeyVar)
}
