package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/weldlinker/weld/internal/linker"
)

type config struct {
	Writer *linker.Config
}

func loadConfig(path string) (*config, error) {
	writerOpts := map[string]interface{}{}

	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config from '%s': %w", path, err)
		}

		writerOpts = viper.GetStringMap("writer")
	}

	writer, err := linker.DecodeConfig(writerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to decode writer config: %w", err)
	}

	return &config{Writer: writer}, nil
}
