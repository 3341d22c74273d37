package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/hearthchat/backend/internal/auth"
	"github.com/hearthchat/backend/internal/model/identity"
)

// Config aggregates every setting the server reads from the environment.
type Config struct {
	Server ServerConfig
	Store  StoreConfig
	Auth   AuthConfig
	CORS   CORSConfig
}

// Load parses configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	storeCfg, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	authCfg, err := loadAuthConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		Store:  storeCfg,
		Auth:   authCfg,
		CORS:   CORSConfig{AllowOrigin: getEnvOrDefault("CORS_ALLOW_ORIGIN", "*")},
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// Store drivers selectable via STORE_DRIVER.
const (
	StoreDriverMemory = "memory"
	StoreDriverPebble = "pebble"
)

// StoreConfig selects and configures the document store driver.
type StoreConfig struct {
	Driver string
	Path   string // pebble data directory
}

func loadStoreConfig() (StoreConfig, error) {
	driver := getEnvOrDefault("STORE_DRIVER", StoreDriverMemory)
	switch driver {
	case StoreDriverMemory:
		return StoreConfig{Driver: driver}, nil
	case StoreDriverPebble:
		path := strings.TrimSpace(os.Getenv("STORE_PATH"))
		if path == "" {
			return StoreConfig{}, fmt.Errorf("STORE_PATH is required for the pebble driver")
		}
		return StoreConfig{Driver: driver, Path: path}, nil
	default:
		return StoreConfig{}, fmt.Errorf("unknown STORE_DRIVER %q", driver)
	}
}

// AuthConfig is the bearer-token table for the HTTP surface.
type AuthConfig struct {
	Tokens auth.TokenTable
}

// loadAuthConfig parses AUTH_TOKENS, a comma-separated list of
// token=id|displayName|avatarRef entries. The avatar segment may be empty.
func loadAuthConfig() (AuthConfig, error) {
	raw := strings.TrimSpace(os.Getenv("AUTH_TOKENS"))
	tokens := make(auth.TokenTable)
	if raw == "" {
		return AuthConfig{Tokens: tokens}, nil
	}

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		token, value, ok := strings.Cut(entry, "=")
		if !ok {
			return AuthConfig{}, fmt.Errorf("invalid AUTH_TOKENS entry %q", entry)
		}
		parts := strings.SplitN(value, "|", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return AuthConfig{}, fmt.Errorf("invalid AUTH_TOKENS entry %q: want token=id|name|avatar", entry)
		}
		principal := identity.Principal{ID: parts[0], DisplayName: parts[1]}
		if len(parts) == 3 {
			principal.AvatarRef = parts[2]
		}
		tokens[strings.TrimSpace(token)] = principal
	}
	return AuthConfig{Tokens: tokens}, nil
}

// CORSConfig describes the allowed browser origin.
type CORSConfig struct {
	AllowOrigin string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}
