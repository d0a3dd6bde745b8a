// Package config loads server settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Settings is the resolved server configuration.
type Settings struct {
	ServerName    string
	ServerVersion string
	LogLevel      string
	Transport     string
	HTTPAddr      string
	CORSOrigins   []string

	DockerEnabled          bool
	DockerHost             string
	DockerRegistryUsername string
	DockerRegistryPassword string
	DockerRegistryServer   string
	DockerConfigPath       string

	DigitalOceanToken  string
	DigitalOceanAPIURL string

	CloudflareAPIToken string
	CloudflareEmail    string
	CloudflareAPIKey   string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequireAPIKey  bool
	APIKeyHeader   string
	AllowedAPIKeys []string

	EnforcePermissions bool
}

// envAliases binds keys to the environment names used before the keys were
// namespaced. The namespaced name (e.g. AUTH_REQUIRE_API_KEY) still wins.
var envAliases = map[string]string{
	"auth.require_api_key":  "REQUIRE_API_KEY",
	"auth.api_key_header":   "API_KEY_HEADER",
	"auth.allowed_api_keys": "ALLOWED_API_KEYS",
}

func defaults(v *viper.Viper) {
	v.SetDefault("mcp.server_name", "CargoShipper")
	v.SetDefault("mcp.server_version", "1.0.0")
	v.SetDefault("mcp.log_level", "info")
	v.SetDefault("mcp.transport", "stdio")
	v.SetDefault("mcp.http_addr", ":8000")
	v.SetDefault("mcp.cors_origins", []string{"*"})
	v.SetDefault("docker.enabled", true)
	v.SetDefault("docker.host", "")
	v.SetDefault("docker.registry_username", "")
	v.SetDefault("docker.registry_password", "")
	v.SetDefault("docker.registry_server", "")
	v.SetDefault("docker.config_path", "")
	v.SetDefault("digitalocean.token", "")
	v.SetDefault("digitalocean.api_url", "")
	v.SetDefault("cloudflare.api_token", "")
	v.SetDefault("cloudflare.email", "")
	v.SetDefault("cloudflare.api_key", "")
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", 60)
	v.SetDefault("auth.require_api_key", false)
	v.SetDefault("auth.api_key_header", "X-API-Key")
	v.SetDefault("auth.allowed_api_keys", "")
	v.SetDefault("permissions.enforce", true)
}

// Load reads settings. When path is empty, cargoshipper.yaml is searched
// in the working directory and $HOME/.config/cargoshipper-mcp; a missing
// file is not an error. Environment variables override the file.
func Load(path string) (*Settings, error) {
	v := viper.New()
	defaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("cargoshipper")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "cargoshipper-mcp"))
		}
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		if err := v.BindEnv(key, strings.ToUpper(strings.NewReplacer(".", "_").Replace(key)), alias); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return &Settings{
		ServerName:    v.GetString("mcp.server_name"),
		ServerVersion: v.GetString("mcp.server_version"),
		LogLevel:      strings.ToLower(v.GetString("mcp.log_level")),
		Transport:     strings.ToLower(v.GetString("mcp.transport")),
		HTTPAddr:      v.GetString("mcp.http_addr"),
		CORSOrigins:   v.GetStringSlice("mcp.cors_origins"),

		DockerEnabled:          v.GetBool("docker.enabled"),
		DockerHost:             v.GetString("docker.host"),
		DockerRegistryUsername: v.GetString("docker.registry_username"),
		DockerRegistryPassword: v.GetString("docker.registry_password"),
		DockerRegistryServer:   v.GetString("docker.registry_server"),
		DockerConfigPath:       v.GetString("docker.config_path"),

		DigitalOceanToken:  v.GetString("digitalocean.token"),
		DigitalOceanAPIURL: v.GetString("digitalocean.api_url"),

		CloudflareAPIToken: v.GetString("cloudflare.api_token"),
		CloudflareEmail:    v.GetString("cloudflare.email"),
		CloudflareAPIKey:   v.GetString("cloudflare.api_key"),

		RateLimitRequests: v.GetInt("rate_limit.requests"),
		RateLimitWindow:   time.Duration(v.GetInt("rate_limit.window")) * time.Second,

		RequireAPIKey:  v.GetBool("auth.require_api_key"),
		APIKeyHeader:   v.GetString("auth.api_key_header"),
		AllowedAPIKeys: splitKeys(v.Get("auth.allowed_api_keys")),

		EnforcePermissions: v.GetBool("permissions.enforce"),
	}, nil
}

// splitKeys accepts a comma-separated string (from the environment) or a
// YAML list.
func splitKeys(raw any) []string {
	var parts []string
	switch val := raw.(type) {
	case string:
		parts = strings.Split(val, ",")
	case []any:
		for _, p := range val {
			parts = append(parts, fmt.Sprint(p))
		}
	case []string:
		parts = val
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// HasDigitalOcean reports whether a DigitalOcean token is configured.
func (s *Settings) HasDigitalOcean() bool { return s.DigitalOceanToken != "" }

// HasCloudflare reports whether a token or a key/email pair is configured.
func (s *Settings) HasCloudflare() bool {
	return s.CloudflareAPIToken != "" || (s.CloudflareEmail != "" && s.CloudflareAPIKey != "")
}

// HasRegistryAuth reports whether explicit registry credentials are set.
func (s *Settings) HasRegistryAuth() bool {
	return s.DockerRegistryUsername != "" && s.DockerRegistryPassword != ""
}

// Validate reports every problem with the settings at once.
func (s *Settings) Validate() error {
	var result *multierror.Error

	if _, err := zapcore.ParseLevel(s.LogLevel); err != nil {
		result = multierror.Append(result, fmt.Errorf("mcp.log_level: %w", err))
	}
	switch s.Transport {
	case "stdio":
	case "http":
		if s.HTTPAddr == "" {
			result = multierror.Append(result, errors.New("mcp.http_addr: required for the http transport"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("mcp.transport: %q is not one of stdio, http", s.Transport))
	}
	if s.RateLimitRequests < 0 {
		result = multierror.Append(result, errors.New("rate_limit.requests: must not be negative"))
	}
	if s.RateLimitRequests > 0 && s.RateLimitWindow <= 0 {
		result = multierror.Append(result, errors.New("rate_limit.window: must be positive"))
	}
	if s.RequireAPIKey {
		if s.APIKeyHeader == "" {
			result = multierror.Append(result, errors.New("auth.api_key_header: required when auth.require_api_key is set"))
		}
		if len(s.AllowedAPIKeys) == 0 {
			result = multierror.Append(result, errors.New("auth.allowed_api_keys: required when auth.require_api_key is set"))
		}
	}
	if (s.DockerRegistryUsername == "") != (s.DockerRegistryPassword == "") {
		result = multierror.Append(result, errors.New("docker.registry_username and docker.registry_password must be set together"))
	}
	if s.CloudflareAPIToken == "" && (s.CloudflareEmail == "") != (s.CloudflareAPIKey == "") {
		result = multierror.Append(result, errors.New("cloudflare.email and cloudflare.api_key must be set together"))
	}

	return result.ErrorOrNil()
}
