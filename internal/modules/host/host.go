package host

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// OS нормализованное имя операционной системы.
type OS string

const (
	OSLinux   OS = "linux"
	OSWindows OS = "windows"
	OSDarwin  OS = "darwin"
	OSUnknown OS = "unknown"
)

// NormalizeOS приводит идентификатор платформы к одному из известных OS.
func NormalizeOS(platform string) OS {
	switch OS(strings.ToLower(strings.TrimSpace(platform))) {
	case OSLinux:
		return OSLinux
	case OSWindows:
		return OSWindows
	case OSDarwin:
		return OSDarwin
	default:
		return OSUnknown
	}
}

// Current возвращает OS текущего процесса.
func Current() OS { return NormalizeOS(runtime.GOOS) }

// SystemInfo описывает узел с точки зрения текущего процесса.
type SystemInfo struct {
	OS            OS     `json:"os"`
	OSVersion     string `json:"os_version"`
	Architecture  string `json:"architecture"`
	HasPrivileges bool   `json:"has_privileges"`
}

// Details расширяет SystemInfo базовыми метриками узла.
type Details struct {
	SystemInfo
	Hostname   string  `json:"hostname"`
	Kernel     string  `json:"kernel"`
	UptimeSec  uint64  `json:"uptime_sec"`
	BootTime   string  `json:"boot_time"`
	MemTotal   uint64  `json:"mem_total"`
	MemUsed    uint64  `json:"mem_used"`
	MemUsedPct float64 `json:"mem_used_pct"`
	Load1      float64 `json:"load1"`
	Load5      float64 `json:"load5"`
	Load15     float64 `json:"load15"`
}

// Probe опрашивает узел. Каждый вызов читает состояние заново.
type Probe struct {
	goos       string
	hostInfo   func(ctx context.Context) (*host.InfoStat, error)
	privileges func() (Privilege, error)
	logger     *slog.Logger
}

// NewProbe создает probe для текущего узла.
func NewProbe(logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Probe{
		goos:       runtime.GOOS,
		hostInfo:   host.InfoWithContext,
		privileges: checkPrivileges,
		logger:     logger,
	}
}

// Info возвращает SystemInfo; ошибки опроса не возвращаются вызывающему.
func (p *Probe) Info(ctx context.Context) SystemInfo {
	info := SystemInfo{
		OS:           NormalizeOS(p.goos),
		Architecture: runtime.GOARCH,
	}
	if hInfo, err := p.hostInfo(ctx); err != nil {
		p.logger.Warn("host info failed", "err", err)
	} else {
		info.OSVersion = hInfo.PlatformVersion
		if hInfo.KernelArch != "" {
			info.Architecture = hInfo.KernelArch
		}
	}
	info.HasPrivileges = p.Privilege().Granted()
	return info
}

// Privilege проверяет права процесса; сбой проверки дает PrivilegeUnknown.
func (p *Probe) Privilege() Privilege {
	priv, err := p.privileges()
	if err != nil {
		p.logger.Error("privilege check failed", "err", err)
		return PrivilegeUnknown
	}
	return priv
}

// Details собирает SystemInfo и метрики узла.
func (p *Probe) Details(ctx context.Context) (Details, error) {
	d := Details{SystemInfo: p.Info(ctx)}
	hInfo, err := p.hostInfo(ctx)
	if err != nil {
		return Details{}, fmt.Errorf("host info: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Details{}, fmt.Errorf("memory info: %w", err)
	}
	d.Hostname = hInfo.Hostname
	d.Kernel = hInfo.KernelVersion
	d.UptimeSec = hInfo.Uptime
	d.BootTime = time.Unix(int64(hInfo.BootTime), 0).UTC().Format(time.RFC3339)
	d.MemTotal = vm.Total
	d.MemUsed = vm.Used
	d.MemUsedPct = vm.UsedPercent

	// load average недоступен на windows
	if ld, err := load.AvgWithContext(ctx); err == nil {
		d.Load1, d.Load5, d.Load15 = ld.Load1, ld.Load5, ld.Load15
	}
	return d, nil
}
