package docker

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/go-units"

	"dockman/internal/executor"
	"dockman/internal/modules/host"
)

// Config параметры менеджера, вычисляемые один раз при старте процесса.
type Config struct {
	OS            host.OS
	Binary        string
	VersionBanner string
	// Plans переопределяет планы по умолчанию; пустые планы заполняются из Package.
	Plans   Plans
	Package PackageOptions
}

// PrivilegeChecker источник информации о правах процесса.
type PrivilegeChecker interface {
	Privilege() host.Privilege
}

// Status состояние runtime на узле; пересчитывается при каждом вызове.
type Status struct {
	Installed          bool    `json:"installed"`
	Version            *string `json:"version"`
	OS                 host.OS `json:"os"`
	RequiresPrivileges bool    `json:"requires_privileges"`
}

// Manager управляет установкой Docker на узле.
// Все операции синхронны; параллельные вызовы не сериализуются.
type Manager struct {
	cfg    Config
	runner executor.Runner
	privs  PrivilegeChecker
	logger *slog.Logger
}

// New создает менеджер.
func New(cfg Config, runner executor.Runner, privs PrivilegeChecker, logger *slog.Logger) *Manager {
	if cfg.Binary == "" {
		cfg.Binary = "docker"
	}
	if cfg.VersionBanner == "" {
		cfg.VersionBanner = "Docker version"
	}
	if cfg.Package == (PackageOptions{}) {
		cfg.Package = DefaultPackageOptions()
	}
	if defaults, ok := DefaultPlans(cfg.OS, cfg.Package); ok {
		if len(cfg.Plans.Install) == 0 {
			cfg.Plans.Install = defaults.Install
		}
		if len(cfg.Plans.Update) == 0 {
			cfg.Plans.Update = defaults.Update
		}
		if len(cfg.Plans.Uninstall) == 0 {
			cfg.Plans.Uninstall = defaults.Uninstall
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:    cfg,
		runner: runner,
		privs:  privs,
		logger: logger.With("module", "docker", "os", string(cfg.OS)),
	}
}

// OS возвращает OS, для которой построен менеджер.
func (m *Manager) OS() host.OS { return m.cfg.OS }

// Status опрашивает узел заново.
func (m *Manager) Status(ctx context.Context) Status {
	st := Status{
		OS:                 m.cfg.OS,
		RequiresPrivileges: !m.privs.Privilege().Granted(),
	}
	out, err := m.versionOutput(ctx)
	if err == nil && strings.Contains(out, m.cfg.VersionBanner) {
		st.Installed = true
		st.Version = &out
	}
	return st
}

// IsInstalled true только при успешном `docker --version` с ожидаемым баннером.
func (m *Manager) IsInstalled(ctx context.Context) bool {
	out, err := m.versionOutput(ctx)
	return err == nil && strings.Contains(out, m.cfg.VersionBanner)
}

// Version возвращает вывод `docker --version`; false при любой ошибке.
func (m *Manager) Version(ctx context.Context) (string, bool) {
	out, err := m.versionOutput(ctx)
	if err != nil {
		return "", false
	}
	return out, true
}

func (m *Manager) versionOutput(ctx context.Context) (string, error) {
	out, err := m.runner.Output(ctx, m.cfg.Binary, "--version")
	if err != nil {
		m.logger.Debug("version check failed", "err", err)
	}
	return out, err
}

// Install устанавливает Docker, если он еще не установлен.
func (m *Manager) Install(ctx context.Context) Result {
	return m.do(ctx, OpInstall, func(ctx context.Context) error {
		if m.IsInstalled(ctx) {
			return ErrAlreadyInstalled
		}
		if err := m.checkSupported(); err != nil {
			return err
		}
		return m.run(ctx, m.cfg.Plans.Install)
	})
}

// Update обновляет установленный Docker.
func (m *Manager) Update(ctx context.Context) Result {
	return m.do(ctx, OpUpdate, func(ctx context.Context) error {
		before, ok := m.Version(ctx)
		if !ok || !strings.Contains(before, m.cfg.VersionBanner) {
			return ErrNotInstalled
		}
		if err := m.checkSupported(); err != nil {
			return err
		}
		if err := m.run(ctx, m.cfg.Plans.Update); err != nil {
			return err
		}
		after, _ := m.Version(ctx)
		m.logVersionChange(before, after)
		return nil
	})
}

// Uninstall удаляет Docker и его данные.
func (m *Manager) Uninstall(ctx context.Context) Result {
	return m.do(ctx, OpUninstall, func(ctx context.Context) error {
		if !m.IsInstalled(ctx) {
			return ErrNotInstalled
		}
		if err := m.checkSupported(); err != nil {
			return err
		}
		return m.run(ctx, m.cfg.Plans.Uninstall)
	})
}

func (m *Manager) do(ctx context.Context, op Operation, f func(ctx context.Context) error) Result {
	start := time.Now()
	err := f(ctx)
	res := resultFor(op, err)
	took := units.HumanDuration(time.Since(start))
	if res.Success {
		m.logger.Info("operation finished", "op", op, "took", took)
	} else {
		m.logger.Warn("operation failed", "op", op, "code", res.Code, "err", err, "took", took)
	}
	return res
}

func (m *Manager) run(ctx context.Context, plan Plan) error {
	chain := executor.NewChain(m.logger)
	for _, step := range plan {
		chain.Stage(step.Stage)
		chain.AddCommand(m.runner, step.Args...)
	}
	return chain.Exec(ctx)
}

func (m *Manager) logVersionChange(before, after string) {
	from, errFrom := ParseVersion(before)
	to, errTo := ParseVersion(after)
	if errFrom != nil || errTo != nil {
		m.logger.Info("runtime version after update", "before", before, "after", after)
		return
	}
	m.logger.Info("runtime version after update",
		"before", from.String(), "after", to.String(), "upgraded", from.LessThan(*to))
}

// checkSupported выполняется после проверки установки: состояние runtime важнее OS.
func (m *Manager) checkSupported() error {
	switch m.cfg.OS {
	case host.OSLinux, host.OSWindows:
		return nil
	default:
		return &unsupportedOSError{os: string(m.cfg.OS)}
	}
}
