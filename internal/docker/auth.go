package docker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	cliconfig "github.com/docker/cli/cli/config"
	"github.com/docker/cli/cli/config/configfile"
	"github.com/docker/docker/api/types/registry"
	"github.com/google/go-containerregistry/pkg/name"
)

// dockerHubAuthKey is the key the docker CLI stores Docker Hub credentials
// under.
const dockerHubAuthKey = "https://index.docker.io/v1/"

// Authenticator finds registry credentials for an image reference. Explicit
// credentials win over the docker CLI config file.
type Authenticator struct {
	username   string
	password   string
	server     string
	configPath string
}

// NewAuthenticator builds an Authenticator from cfg.
func NewAuthenticator(cfg Config) *Authenticator {
	return &Authenticator{
		username:   cfg.RegistryUsername,
		password:   cfg.RegistryPassword,
		server:     cfg.RegistryServer,
		configPath: cfg.ConfigPath,
	}
}

// Resolve returns credentials for ref's registry and where they came from,
// or nil when none are configured.
func (a *Authenticator) Resolve(ref string) (*registry.AuthConfig, string, error) {
	parsed, err := name.ParseReference(ref)
	if err != nil {
		return nil, "", fmt.Errorf("parse image reference: %w", err)
	}
	host := parsed.Context().RegistryStr()
	key := host
	if host == name.DefaultRegistry {
		key = dockerHubAuthKey
	}

	if a.username != "" && a.password != "" && a.matchesServer(host) {
		server := a.server
		if server == "" {
			server = key
		}
		return &registry.AuthConfig{
			Username:      a.username,
			Password:      a.password,
			ServerAddress: server,
		}, "explicit", nil
	}

	cf, err := a.loadConfigFile()
	if err != nil {
		return nil, "", err
	}
	if cf == nil {
		return nil, "", nil
	}
	ac, err := cf.GetAuthConfig(key)
	if err != nil {
		return nil, "", fmt.Errorf("read credentials for %s: %w", host, err)
	}
	if ac.Username == "" && ac.IdentityToken == "" && ac.RegistryToken == "" {
		return nil, "", nil
	}
	return &registry.AuthConfig{
		Username:      ac.Username,
		Password:      ac.Password,
		ServerAddress: ac.ServerAddress,
		IdentityToken: ac.IdentityToken,
		RegistryToken: ac.RegistryToken,
	}, "config_file", nil
}

// matchesServer reports whether explicit credentials apply to host. Without
// a configured server they apply to every registry.
func (a *Authenticator) matchesServer(host string) bool {
	if a.server == "" {
		return true
	}
	want, err := name.NewRegistry(trimScheme(a.server))
	if err != nil {
		return false
	}
	return want.RegistryStr() == host
}

func (a *Authenticator) loadConfigFile() (*configfile.ConfigFile, error) {
	if a.configPath == "" {
		cf, err := cliconfig.Load(cliconfig.Dir())
		if err != nil {
			return nil, fmt.Errorf("load docker config: %w", err)
		}
		return cf, nil
	}

	f, err := os.Open(a.configPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open docker config: %w", err)
	}
	defer f.Close()

	cf := configfile.New(filepath.Clean(a.configPath))
	if err := cf.LoadFromReader(f); err != nil {
		return nil, fmt.Errorf("parse docker config %s: %w", a.configPath, err)
	}
	return cf, nil
}

func trimScheme(s string) string {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "https://"), "http://")
	s = strings.TrimSuffix(s, "/")
	return strings.TrimSuffix(s, "/v1")
}
