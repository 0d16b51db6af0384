package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".siteclone"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// SiteConfig holds site-specific configuration for a single host.
// This is how protected sites get cloned: the cookie and headers are
// injected into every request to that host (and sanitized out of logs).
type SiteConfig struct {
	// Cookie is an HTTP cookie string sent with requests to this host.
	// Format: "name=value" or "name1=value1; name2=value2".
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers for requests to this host.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the default crawl depth for this host.
	// Zero means use the global depth.
	Depth int `yaml:"depth,omitempty"`
}

// File represents the structure of the .siteclone configuration file.
type File struct {
	// Sites maps hostnames to their site-specific configurations.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults is applied to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a host, merging the
// site-specific entry over the defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults

	if site, ok := cf.Sites[host]; ok {
		if site.Cookie != "" {
			result.Cookie = site.Cookie
		}
		if site.Depth != 0 {
			result.Depth = site.Depth
		}
		if len(site.Headers) > 0 {
			if result.Headers == nil {
				result.Headers = make(map[string]string)
			}
			for k, v := range site.Headers {
				result.Headers[k] = v
			}
		}
	}

	return result
}

// LoadConfigFile loads site configurations from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound; callers
// decide whether that matters based on whether the path was explicit.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file:
//  1. The explicit path, if given
//  2. .siteclone in the current directory
//  3. .siteclone in the user's home directory
//
// Returns the path if found, or empty string.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
