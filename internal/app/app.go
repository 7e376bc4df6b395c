package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dockman/internal/config"
	"dockman/internal/core"
	"dockman/internal/executor"
	"dockman/internal/modules/docker"
	"dockman/internal/modules/host"
	"dockman/internal/storage"
	"dockman/internal/storage/sqlite"
	"dockman/internal/transports/web"
	"dockman/pkg/logger"
)

// App агрегирует зависимости агента.
type App struct {
	Manager    *docker.Manager
	Probe      *host.Probe
	Transports *core.TransportManager
	Store      storage.Store
	Config     config.Config

	logger *slog.Logger
}

// Open читает конфиг и строит приложение; dryRun дополняет agent.dry_run.
func Open(configPath string, dryRun bool) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dryRun {
		cfg.Agent.DryRun = true
	}
	return NewApp(cfg, logger.New(cfg.Agent.LogLevel))
}

// NewApp строит приложение: probe, менеджер runtime, хранилище и транспорты.
func NewApp(cfg config.Config, lg *slog.Logger) (*App, error) {
	if lg == nil {
		lg = slog.Default()
	}
	probe := host.NewProbe(lg)

	execRunner := executor.NewExecRunner(lg)
	execRunner.Timeout = time.Duration(cfg.Docker.CommandTimeoutS) * time.Second
	var runner executor.Runner = execRunner
	if cfg.Agent.DryRun {
		runner = executor.NewDryRunner(execRunner, lg)
	}

	managerCfg, err := managerConfig(cfg, host.Current())
	if err != nil {
		return nil, err
	}
	manager := docker.New(managerCfg, runner, probe, lg)

	st, err := openStore(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	transports := core.NewTransportManager()
	webAdapter := web.NewAdapter(manager, probe, st, lg, web.Config{
		ListenAddr:         cfg.Web.ListenAddr,
		ReadTimeout:        time.Duration(cfg.Web.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:       time.Duration(cfg.Web.WriteTimeoutMS) * time.Millisecond,
		RequestTimeout:     time.Duration(cfg.Web.RequestTimeoutMS) * time.Millisecond,
		ShutdownTimeout:    time.Duration(cfg.Web.ShutdownTimeoutS) * time.Second,
		OperationLimit:     cfg.Web.RateLimit.Operations,
		OperationWindow:    time.Duration(cfg.Web.RateLimit.WindowS) * time.Second,
		CORSAllowedOrigins: cfg.Web.CORS.AllowedOrigins,
		CORSAllowedMethods: cfg.Web.CORS.AllowedMethods,
		CORSAllowedHeaders: cfg.Web.CORS.AllowedHeaders,
	})
	if err := transports.Register(webAdapter); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("register web transport: %w", err)
	}

	return &App{
		Manager:    manager,
		Probe:      probe,
		Transports: transports,
		Store:      st,
		Config:     cfg,
		logger:     lg,
	}, nil
}

func openStore(path string) (storage.Store, error) {
	if strings.TrimSpace(path) == "" {
		return storage.Nop{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	return sqlite.Open(path)
}

// managerConfig переводит секцию docker конфига в параметры менеджера для os.
func managerConfig(cfg config.Config, target host.OS) (docker.Config, error) {
	out := docker.Config{
		OS:            target,
		Binary:        cfg.Docker.Binary,
		VersionBanner: cfg.Docker.VersionBanner,
		Package: docker.PackageOptions{
			Package:        cfg.Docker.Package,
			WindowsPackage: cfg.Docker.WindowsPackage,
			Service:        cfg.Docker.Service,
			DataDir:        cfg.Docker.DataDir,
		},
	}
	set, ok := cfg.Docker.Commands[string(target)]
	if !ok {
		return out, nil
	}
	var err error
	if out.Plans.Install, err = planFromLines(set.Install); err != nil {
		return out, fmt.Errorf("docker.commands.%s.install: %w", target, err)
	}
	if out.Plans.Update, err = planFromLines(set.Update); err != nil {
		return out, fmt.Errorf("docker.commands.%s.update: %w", target, err)
	}
	if out.Plans.Uninstall, err = planFromLines(set.Uninstall); err != nil {
		return out, fmt.Errorf("docker.commands.%s.uninstall: %w", target, err)
	}
	return out, nil
}

func planFromLines(lines []string) (docker.Plan, error) {
	cmds, err := config.ParseCommands(lines)
	if err != nil {
		return nil, err
	}
	plan := make(docker.Plan, 0, len(cmds))
	for _, args := range cmds {
		plan = append(plan, docker.Step{Stage: strings.Join(args, " "), Args: args})
	}
	return plan, nil
}

// Status возвращает текущее состояние runtime.
func (a *App) Status(ctx context.Context) docker.Status {
	return a.Manager.Status(ctx)
}

// System возвращает расширенные сведения об узле.
func (a *App) System(ctx context.Context) (host.Details, error) {
	return a.Probe.Details(ctx)
}

// History возвращает журнал операций.
func (a *App) History(ctx context.Context, q storage.OperationQuery) ([]storage.OperationRecord, error) {
	return a.Store.QueryOperations(ctx, q)
}

// Run выполняет операцию из CLI и записывает ее в журнал.
func (a *App) Run(ctx context.Context, op docker.Operation) docker.Result {
	start := time.Now()
	var res docker.Result
	switch op {
	case docker.OpInstall:
		res = a.Manager.Install(ctx)
	case docker.OpUpdate:
		res = a.Manager.Update(ctx)
	case docker.OpUninstall:
		res = a.Manager.Uninstall(ctx)
	default:
		return docker.Result{Message: fmt.Sprintf("unknown operation %q", op)}
	}
	if err := a.Store.SaveOperation(context.WithoutCancel(ctx), storage.OperationRecord{
		Action:     string(op),
		Success:    res.Success,
		ErrorCode:  string(res.Code),
		Message:    res.Message,
		Source:     "cli",
		DurationMS: time.Since(start).Milliseconds(),
	}); err != nil {
		a.logger.Warn("save operation failed", "op", op, "err", err)
	}
	return res
}

// Close высвобождает ресурсы приложения.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// Serve запускает транспорты и планировщик до отмены контекста.
func (a *App) Serve(ctx context.Context) error {
	a.logger.Info("starting agent", "os", a.Manager.OS(), "dry_run", a.Config.Agent.DryRun, "transports", a.Transports.Names())
	if err := a.Transports.StartAll(ctx); err != nil {
		return fmt.Errorf("start transports: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Duration(a.Config.Web.ShutdownTimeoutS)*time.Second)
		defer cancel()
		if err := a.Transports.StopAll(stopCtx); err != nil {
			a.logger.Warn("stop transports failed", "err", err)
		}
	}()

	interval := time.Duration(a.Config.Scheduler.IntervalSeconds) * time.Second
	if interval <= 0 {
		a.logger.Info("scheduler disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	sched := core.NewScheduler(interval, a.logger)
	sched.Add("status-snapshot", a.snapshot)
	if a.Config.SQLite.RetentionDays > 0 {
		sched.Add("retention", a.prune)
	}
	sched.Start(ctx)
	return ctx.Err()
}

func (a *App) snapshot(ctx context.Context) error {
	status := a.Manager.Status(ctx)
	payload, err := sqlite.MarshalPayload(status)
	if err != nil {
		return err
	}
	return a.Store.SaveSnapshot(ctx, storage.SnapshotRecord{Payload: payload})
}

func (a *App) prune(ctx context.Context) error {
	before := time.Now().Add(-time.Duration(a.Config.SQLite.RetentionDays) * 24 * time.Hour)
	n, err := a.Store.Prune(ctx, before)
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}
	if n > 0 {
		a.logger.Info("pruned history", "rows", n, "before", before.UTC().Format(time.RFC3339))
	}
	return nil
}
