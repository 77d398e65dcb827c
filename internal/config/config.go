package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-ini/ini"
)

// DefaultAdminSecret is the placeholder shipped in the sample config. The
// service refuses to start while it is still in place.
const DefaultAdminSecret = "change-me"

type Server struct {
	ListenAddress string `ini:"listen_address"`
	Port          int    `ini:"port"`
	AdminUser     string `ini:"admin_user"`
	AdminPassword string `ini:"admin_password"`
	AdminSecret   string `ini:"admin_secret"`
	AllowedOrigin string `ini:"allowed_origin"`
	BaseAddress   string `ini:"base_address"`
}

type Database struct {
	Engine   string `ini:"engine"`
	Path     string `ini:"path"`
	Host     string `ini:"host"`
	Port     int    `ini:"port"`
	User     string `ini:"user"`
	Password string `ini:"password"`
	Schema   string `ini:"schema"`
}

type Policy struct {
	Enabled           bool `ini:"enabled"`
	ShadowMode        bool `ini:"shadow_mode"`
	SoftWarnThreshold int  `ini:"soft_warn_threshold"`
	ThrottleThreshold int  `ini:"throttle_threshold"`
	BlockThreshold    int  `ini:"block_threshold"`
}

type Config struct {
	Server   Server
	Database Database
	Policy   Policy
}

func defaults() *Config {
	return &Config{
		Server: Server{
			ListenAddress: "127.0.0.1",
			Port:          5001,
			AdminUser:     "admin",
			BaseAddress:   "swg",
		},
		Database: Database{
			Engine: "sqlite",
			Path:   "stationgate.db",
			Host:   "127.0.0.1",
			Port:   3306,
		},
		Policy: Policy{
			ShadowMode:        true,
			SoftWarnThreshold: 35,
			ThrottleThreshold: 60,
			BlockThreshold:    85,
		},
	}
}

// Load reads the ini file at path, applies environment overrides, and
// validates the result. Precedence: environment over file over defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()

	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	if err := file.Section("server").MapTo(&cfg.Server); err != nil {
		return nil, fmt.Errorf("parse [server]: %w", err)
	}
	if err := file.Section("database").MapTo(&cfg.Database); err != nil {
		return nil, fmt.Errorf("parse [database]: %w", err)
	}
	if err := file.Section("policy").MapTo(&cfg.Policy); err != nil {
		return nil, fmt.Errorf("parse [policy]: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if password := os.Getenv("STATIONGATE_DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
	if port := os.Getenv("PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = n
		}
	}
}

func (c *Config) Validate() error {
	switch c.Database.Engine {
	case "sqlite", "mariadb":
	default:
		return fmt.Errorf("unsupported database engine %q; expected sqlite or mariadb", c.Database.Engine)
	}

	if c.Database.Engine == "mariadb" {
		if c.Database.User == "" || c.Database.Schema == "" {
			return fmt.Errorf("database engine mariadb requires user and schema")
		}
	}
	if c.Database.Engine == "sqlite" && c.Database.Path == "" {
		return fmt.Errorf("database engine sqlite requires path")
	}

	if c.Server.AdminSecret == "" || c.Server.AdminSecret == DefaultAdminSecret {
		return fmt.Errorf("admin_secret must be set to a non-default value")
	}
	if c.Server.AdminUser == "" || c.Server.AdminPassword == "" {
		return fmt.Errorf("admin_user and admin_password must be set")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}
