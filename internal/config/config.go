package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort          = 8080
	DefaultHost          = "127.0.0.1"
	DefaultLogLevel      = "info"
	DefaultMaxUploadSize = 100 * 1024 * 1024 // 100MB
	DefaultPatternsFile  = "configs/patterns.yaml"
	DefaultMappingFile   = "configs/mapping.yaml"
)

// Config holds all configuration for the document fill service
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Catalog configuration
	PatternsFile string
	MappingFile  string

	// Working directory for stdio-mode file tools
	WorkDir string

	// Application configuration
	Version       string
	ServerName    string
	LogLevel      string
	MaxUploadSize int64 // Maximum upload size in bytes
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:          ModeServer,
		Host:          DefaultHost,
		Port:          DefaultPort,
		PatternsFile:  DefaultPatternsFile,
		MappingFile:   DefaultMappingFile,
		WorkDir:       currentDir,
		Version:       "1.0.0",
		ServerName:    "docfill",
		LogLevel:      DefaultLogLevel,
		MaxUploadSize: DefaultMaxUploadSize,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	pflag.Parse()

	populateConfigFromViper(cfg)

	// Expand paths if needed
	for _, p := range []*string{&cfg.PatternsFile, &cfg.MappingFile, &cfg.WorkDir} {
		if *p != "" {
			if expandedPath, err := filepath.Abs(*p); err == nil {
				*p = expandedPath
			}
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix("DOCFILL")
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("patterns", cfg.PatternsFile)
	viper.SetDefault("mapping", cfg.MappingFile)
	viper.SetDefault("dir", cfg.WorkDir)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxupload", cfg.MaxUploadSize)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Run mode: 'server' for the HTTP upload endpoint, 'stdio' for the MCP tool server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("patterns", cfg.PatternsFile, "Path to the label patterns YAML file")
	pflag.String("mapping", cfg.MappingFile, "Path to the field mapping YAML file")
	pflag.String("dir", cfg.WorkDir, "Working directory for stdio-mode file tools")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxupload", cfg.MaxUploadSize, "Maximum upload size in bytes")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	_ = viper.BindPFlag("mode", pflag.Lookup("mode"))
	_ = viper.BindPFlag("host", pflag.Lookup("host"))
	_ = viper.BindPFlag("port", pflag.Lookup("port"))
	_ = viper.BindPFlag("patterns", pflag.Lookup("patterns"))
	_ = viper.BindPFlag("mapping", pflag.Lookup("mapping"))
	_ = viper.BindPFlag("dir", pflag.Lookup("dir"))
	_ = viper.BindPFlag("loglevel", pflag.Lookup("loglevel"))
	_ = viper.BindPFlag("maxupload", pflag.Lookup("maxupload"))
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\ndocfill - batch-fill PDF form fields from a ZIP upload\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                    # HTTP server on 127.0.0.1:8080\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --host=0.0.0.0 --port=8081         # server on all interfaces\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=stdio --dir=/path/to/pdfs   # MCP tool server\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  DOCFILL_MODE       Run mode\n")
		fmt.Fprintf(os.Stderr, "  DOCFILL_HOST       Server host\n")
		fmt.Fprintf(os.Stderr, "  DOCFILL_PORT       Server port\n")
		fmt.Fprintf(os.Stderr, "  DOCFILL_PATTERNS   Label patterns file\n")
		fmt.Fprintf(os.Stderr, "  DOCFILL_MAPPING    Field mapping file\n")
		fmt.Fprintf(os.Stderr, "  DOCFILL_DIR        Working directory (stdio mode)\n")
		fmt.Fprintf(os.Stderr, "  DOCFILL_LOGLEVEL   Log level\n")
		fmt.Fprintf(os.Stderr, "  DOCFILL_MAXUPLOAD  Maximum upload size\n")
	}
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.PatternsFile = viper.GetString("patterns")
	cfg.MappingFile = viper.GetString("mapping")
	cfg.WorkDir = viper.GetString("dir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxUploadSize = viper.GetInt64("maxupload")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.PatternsFile == "" {
		return errors.New("patterns file cannot be empty")
	}
	if c.MappingFile == "" {
		return errors.New("mapping file cannot be empty")
	}

	if c.Mode == ModeStdio {
		if c.WorkDir == "" {
			return errors.New("working directory cannot be empty")
		}
		if info, err := os.Stat(c.WorkDir); err != nil {
			return fmt.Errorf("cannot access working directory %s: %w", c.WorkDir, err)
		} else if !info.IsDir() {
			return fmt.Errorf("working directory %s is not a directory", c.WorkDir)
		}
	}

	if c.MaxUploadSize <= 0 {
		return errors.New("maximum upload size must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, Patterns: %s, Mapping: %s, LogLevel: %s, MaxUploadSize: %d}",
		c.Mode, c.Host, c.Port, c.PatternsFile, c.MappingFile, c.LogLevel, c.MaxUploadSize)
}

// IsServerMode returns true if running the HTTP upload endpoint
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if running the MCP tool server
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
