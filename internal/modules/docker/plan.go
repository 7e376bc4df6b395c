package docker

import (
	"dockman/internal/modules/host"
)

// Step одна команда плана.
type Step struct {
	Stage string
	Args  []string
}

// Plan упорядоченная последовательность команд.
type Plan []Step

// Plans набор планов одной OS.
type Plans struct {
	Install   Plan
	Update    Plan
	Uninstall Plan
}

// PackageOptions параметры пакетов, из которых строятся планы по умолчанию.
type PackageOptions struct {
	Package        string
	WindowsPackage string
	Service        string
	DataDir        string
}

// DefaultPackageOptions возвращает параметры для docker-ce и Docker Desktop.
func DefaultPackageOptions() PackageOptions {
	return PackageOptions{
		Package:        "docker-ce",
		WindowsPackage: "Docker.DockerDesktop",
		Service:        "docker",
		DataDir:        "/var/lib/docker",
	}
}

// DefaultPlans возвращает планы для OS; false для неподдерживаемых систем.
func DefaultPlans(os host.OS, opts PackageOptions) (Plans, bool) {
	switch os {
	case host.OSLinux:
		return linuxPlans(opts), true
	case host.OSWindows:
		return windowsPlans(opts), true
	default:
		return Plans{}, false
	}
}

func linuxPlans(o PackageOptions) Plans {
	refresh := Step{Stage: "refreshing package index", Args: []string{"sudo", "apt-get", "update"}}
	return Plans{
		Install: Plan{
			refresh,
			{Stage: "installing " + o.Package, Args: []string{"sudo", "apt-get", "install", "-y", o.Package}},
			{Stage: "enabling " + o.Service + " service", Args: []string{"sudo", "systemctl", "enable", o.Service}},
			{Stage: "starting " + o.Service + " service", Args: []string{"sudo", "systemctl", "start", o.Service}},
		},
		Update: Plan{
			refresh,
			{Stage: "upgrading " + o.Package, Args: []string{"sudo", "apt-get", "upgrade", "-y", o.Package}},
		},
		Uninstall: Plan{
			{Stage: "removing " + o.Package, Args: []string{"sudo", "apt-get", "remove", "-y", o.Package}},
			{Stage: "purging " + o.Package, Args: []string{"sudo", "apt-get", "purge", "-y", o.Package}},
			{Stage: "deleting " + o.DataDir, Args: []string{"sudo", "rm", "-rf", o.DataDir}},
		},
	}
}

func windowsPlans(o PackageOptions) Plans {
	// winget install также обновляет уже установленный пакет
	install := Plan{{
		Stage: "installing " + o.WindowsPackage,
		Args: []string{"winget", "install", "-e", "--id", o.WindowsPackage,
			"--accept-package-agreements", "--accept-source-agreements"},
	}}
	return Plans{
		Install: install,
		Update:  install,
		Uninstall: Plan{{
			Stage: "uninstalling " + o.WindowsPackage,
			Args:  []string{"winget", "uninstall", "-e", "--id", o.WindowsPackage},
		}},
	}
}
