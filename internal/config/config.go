package config

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Keys understood by Load. Each also binds to the upper-cased environment variable.
const (
	KeyServerPort       = "server_port"
	KeyTenantID         = "tenant_id"
	KeyClientID         = "client_id"
	KeyServerName       = "server_name"
	KeyServerVersion    = "server_version"
	KeyProtocolVersion  = "protocol_version"
	KeyTools            = "tools"
	KeyCapabilities     = "capabilities"
	KeyCORSAllowHeaders = "cors_allow_headers"
	KeyRedactSecrets    = "redact_secrets"
	KeyGitleaksConfig   = "gitleaks_config"
	KeyLogLevel         = "log_level"
	KeyLogFormat        = "log_format"
)

type Config struct {
	InstanceID       string
	ServerPort       int
	TenantID         string // reported by get_info, opaque
	ClientID         string // reported by get_info, opaque
	ServerName       string
	ServerVersion    string
	ProtocolVersion  string
	Tools            []string // ordered tool set exposed by this deployment
	Capabilities     []string
	CORSAllowHeaders string
	RedactSecrets    bool
	GitleaksConfig   string // empty means built-in gitleaks rules
	LogLevel         string
	LogFormat        string
}

// New returns a viper instance with defaults and environment binding applied.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyServerPort, 7071)
	v.SetDefault(KeyTenantID, "")
	v.SetDefault(KeyClientID, "")
	v.SetDefault(KeyServerName, "mcp-server")
	v.SetDefault(KeyServerVersion, "1.0.0")
	v.SetDefault(KeyProtocolVersion, "2024-11-05")
	v.SetDefault(KeyTools, []string{"get_info", "echo_message"})
	v.SetDefault(KeyCapabilities, []string{"tools"})
	v.SetDefault(KeyCORSAllowHeaders, "*")
	v.SetDefault(KeyRedactSecrets, true)
	v.SetDefault(KeyGitleaksConfig, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.AutomaticEnv()
	return v
}

// BindFlags binds the serve command's flags to their configuration keys.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for key, name := range map[string]string{
		KeyServerPort: "port",
		KeyLogLevel:   "log-level",
		KeyLogFormat:  "log-format",
	} {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}
	return nil
}

// Load reads an optional config file and builds the immutable Config.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		InstanceID:       uuid.NewString(),
		ServerPort:       v.GetInt(KeyServerPort),
		TenantID:         v.GetString(KeyTenantID),
		ClientID:         v.GetString(KeyClientID),
		ServerName:       v.GetString(KeyServerName),
		ServerVersion:    v.GetString(KeyServerVersion),
		ProtocolVersion:  v.GetString(KeyProtocolVersion),
		Tools:            getList(v, KeyTools),
		Capabilities:     getList(v, KeyCapabilities),
		CORSAllowHeaders: v.GetString(KeyCORSAllowHeaders),
		RedactSecrets:    v.GetBool(KeyRedactSecrets),
		GitleaksConfig:   v.GetString(KeyGitleaksConfig),
		LogLevel:         v.GetString(KeyLogLevel),
		LogFormat:        v.GetString(KeyLogFormat),
	}

	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		return nil, fmt.Errorf("invalid server port %d", cfg.ServerPort)
	}
	return cfg, nil
}

// getList reads a string list that may arrive as a YAML/TOML array or as a
// comma separated environment variable.
func getList(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
