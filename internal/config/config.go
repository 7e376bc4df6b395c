package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/shlex"
	"gopkg.in/yaml.v3"
)

// CommandSet переопределяет команды операций; каждая строка разбирается как shell-слова.
type CommandSet struct {
	Install   []string `yaml:"install"`
	Update    []string `yaml:"update"`
	Uninstall []string `yaml:"uninstall"`
}

// Config описывает основные параметры агента.
type Config struct {
	Agent struct {
		LogLevel string `yaml:"log_level"`
		DryRun   bool   `yaml:"dry_run"`
	} `yaml:"agent"`
	Docker struct {
		Binary          string                `yaml:"binary"`
		VersionBanner   string                `yaml:"version_banner"`
		Package         string                `yaml:"package"`
		WindowsPackage  string                `yaml:"windows_package"`
		Service         string                `yaml:"service"`
		DataDir         string                `yaml:"data_dir"`
		CommandTimeoutS int                   `yaml:"command_timeout_s"`
		Commands        map[string]CommandSet `yaml:"commands"`
	} `yaml:"docker"`
	SQLite struct {
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"sqlite"`
	Scheduler struct {
		IntervalSeconds int `yaml:"interval_seconds"`
	} `yaml:"scheduler"`
	Web struct {
		ListenAddr       string `yaml:"listen_addr"`
		ReadTimeoutMS    int    `yaml:"read_timeout_ms"`
		WriteTimeoutMS   int    `yaml:"write_timeout_ms"`
		RequestTimeoutMS int    `yaml:"request_timeout_ms"`
		ShutdownTimeoutS int    `yaml:"shutdown_timeout_s"`
		RateLimit        struct {
			Operations int `yaml:"operations"`
			WindowS    int `yaml:"window_s"`
		} `yaml:"rate_limit"`
		CORS struct {
			AllowedOrigins []string `yaml:"allowed_origins"`
			AllowedMethods []string `yaml:"allowed_methods"`
			AllowedHeaders []string `yaml:"allowed_headers"`
		} `yaml:"cors"`
	} `yaml:"web"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() Config {
	var cfg Config
	cfg.Agent.LogLevel = "info"
	cfg.Docker.Binary = "docker"
	cfg.Docker.VersionBanner = "Docker version"
	cfg.Docker.Package = "docker-ce"
	cfg.Docker.WindowsPackage = "Docker.DockerDesktop"
	cfg.Docker.Service = "docker"
	cfg.Docker.DataDir = "/var/lib/docker"
	cfg.SQLite.Path = "/var/lib/dockman/state.db"
	cfg.SQLite.RetentionDays = 30
	cfg.Scheduler.IntervalSeconds = 60
	cfg.Web.ListenAddr = "127.0.0.1:5000"
	cfg.Web.ReadTimeoutMS = 5000
	// установка пакетов занимает минуты, ответ не ограничиваем
	cfg.Web.WriteTimeoutMS = 0
	cfg.Web.RequestTimeoutMS = 10000
	cfg.Web.ShutdownTimeoutS = 5
	cfg.Web.RateLimit.WindowS = 60
	return cfg
}

// Load читает конфиг из файла YAML, поверх значений по умолчанию.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- путь к конфигу задается доверенным оператором.
	if err != nil {
		return cfg, err
	}
	if len(data) == 0 {
		return cfg, errors.New("config file is empty")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate проверяет значения, которые нельзя исправить умолчаниями.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Docker.Binary) == "" {
		return errors.New("docker.binary is empty")
	}
	if c.Web.RateLimit.Operations < 0 || c.Web.RateLimit.WindowS < 0 {
		return errors.New("web.rate_limit values must not be negative")
	}
	if c.Docker.CommandTimeoutS < 0 {
		return errors.New("docker.command_timeout_s must not be negative")
	}
	for name, set := range c.Docker.Commands {
		for op, lines := range map[string][]string{"install": set.Install, "update": set.Update, "uninstall": set.Uninstall} {
			if _, err := ParseCommands(lines); err != nil {
				return fmt.Errorf("docker.commands.%s.%s: %w", name, op, err)
			}
		}
	}
	return nil
}

// ParseCommands разбирает строки команд в argv.
func ParseCommands(lines []string) ([][]string, error) {
	out := make([][]string, 0, len(lines))
	for _, line := range lines {
		args, err := shlex.Split(line)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", line, err)
		}
		if len(args) == 0 {
			return nil, fmt.Errorf("parse %q: empty command", line)
		}
		out = append(out, args)
	}
	return out, nil
}
