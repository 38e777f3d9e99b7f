// Package config handles converter configuration loading.
package config

// Config holds all converter settings.
type Config struct {
	Convert ConvertConfig `yaml:"convert"`
	Logging LoggingConfig `yaml:"logging"`
}

// ConvertConfig holds conversion settings.
type ConvertConfig struct {
	// ModelType is the default pipeline: "static" or "skin".
	ModelType string `yaml:"model_type"`
	// EmbedTextures controls whether TXD textures are embedded as PNG.
	EmbedTextures bool `yaml:"embed_textures"`
	// Workers is the batch-mode worker count.
	Workers int `yaml:"workers"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Convert: ConvertConfig{
			ModelType:     "static",
			EmbedTextures: true,
			Workers:       4,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
