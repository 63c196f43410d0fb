// Package config handles converter configuration loading.
package config

// Config holds all converter settings.
type Config struct {
	Output  OutputConfig  `yaml:"output"`
	Convert ConvertConfig `yaml:"convert"`
	Logging LoggingConfig `yaml:"logging"`
}

// OutputConfig holds output placement settings.
type OutputConfig struct {
	Dir string `yaml:"dir"` // Default output directory
}

// ConvertConfig holds conversion behavior settings.
type ConvertConfig struct {
	KeepTemp    bool   `yaml:"keep_temp"`    // Keep the extraction directory for debugging
	PaletteFile string `yaml:"palette_file"` // Palette CSV name inside the package
	CopyTables  bool   `yaml:"copy_tables"`  // Copy attribute CSVs next to the output
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			Dir: "output",
		},
		Convert: ConvertConfig{
			KeepTemp:    false,
			PaletteFile: "color_scheme.csv",
			CopyTables:  true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
