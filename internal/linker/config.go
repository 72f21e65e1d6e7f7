package linker

import (
	"errors"
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-viper/mapstructure/v2"

	"github.com/weldlinker/weld/internal/output"
)

var errUnsupportedOutputKind = errors.New("unsupported output kind")

type Config struct {
	// Maximum number of sections processed concurrently
	Parallelism int `mapstructure:"parallelism" default:"4"`

	// Kind of output being produced: static, pie, dynamic, shared or
	// relocatable
	Output string `mapstructure:"output" default:"static"`

	// Alignment of the written image, in bytes; must be a power of two
	Alignment uint64 `mapstructure:"alignment" default:"4096"`
}

// DecodeConfig builds a Config from loosely-typed options, applying
// defaults for anything unset.
func DecodeConfig(opts map[string]interface{}) (*Config, error) {
	config := &Config{}

	if err := defaults.Set(config); err != nil {
		return nil, fmt.Errorf("failed to set config defaults: %w", err)
	}

	if err := mapstructure.Decode(opts, config); err != nil {
		return nil, fmt.Errorf("failed to parse writer config: %w", err)
	}

	return config, nil
}

func (c *Config) OutputKind() (output.Kind, error) {
	switch c.Output {
	case "static":
		return output.StaticExecutable, nil
	case "pie":
		return output.PieExecutable, nil
	case "dynamic":
		return output.DynamicExecutable, nil
	case "shared":
		return output.SharedObject, nil
	case "relocatable":
		return output.Relocatable, nil
	default:
		return 0, fmt.Errorf("%w: '%s'", errUnsupportedOutputKind, c.Output)
	}
}
