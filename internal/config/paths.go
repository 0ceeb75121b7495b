package config

import (
	"os"
	"path/filepath"
	"strings"
)

const EnvConfigDir = "AWSM_CONFIG_DIR"

// Dir is $AWSM_CONFIG_DIR, else the user config dir joined with awsm, else
// .awsm in the working directory.
func Dir() string {
	if dir := strings.TrimSpace(os.Getenv(EnvConfigDir)); dir != "" {
		return dir
	}
	if base, err := os.UserConfigDir(); err == nil && base != "" {
		return filepath.Join(base, "awsm")
	}
	return ".awsm"
}

func HistoryPath() string {
	return filepath.Join(Dir(), "history.json")
}

func LogPath() string {
	return filepath.Join(Dir(), "awsm.log")
}
