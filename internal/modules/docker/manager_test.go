package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"dockman/internal/executor"
	"dockman/internal/modules/host"
)

const banner = "Docker version 24.0.7, build afdd53b"

type fakeRunner struct {
	installed bool
	version   string
	failOn    string
	runs      []string
	outputs   int
}

func (f *fakeRunner) Run(ctx context.Context, args ...string) error {
	line := strings.Join(args, " ")
	f.runs = append(f.runs, line)
	if line == f.failOn {
		return &executor.CommandError{Args: args, Err: errors.New("exit status 100"), Output: "E: Unable to locate package docker-ce"}
	}
	return nil
}

func (f *fakeRunner) Output(ctx context.Context, args ...string) (string, error) {
	f.outputs++
	if !f.installed {
		return "", &executor.CommandError{Args: args, Err: errors.New(`exec: "docker": executable file not found in $PATH`)}
	}
	if f.version != "" {
		return f.version, nil
	}
	return banner, nil
}

type fakePrivs struct{ p host.Privilege }

func (f fakePrivs) Privilege() host.Privilege { return f.p }

func newManager(os host.OS, r *fakeRunner, p host.Privilege) *Manager {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Config{OS: os}, r, fakePrivs{p}, logger)
}

func TestStatusNotInstalled(t *testing.T) {
	m := newManager(host.OSLinux, &fakeRunner{}, host.PrivilegeDenied)
	st := m.Status(context.Background())
	if st.Installed || st.Version != nil {
		t.Fatalf("unexpected status: %#v", st)
	}
	if st.OS != host.OSLinux {
		t.Fatalf("os = %q, want linux", st.OS)
	}
	if !st.RequiresPrivileges {
		t.Fatalf("requires_privileges must be inverse of has_privileges")
	}
}

func TestStatusInstalled(t *testing.T) {
	m := newManager(host.OSLinux, &fakeRunner{installed: true}, host.PrivilegeGranted)
	st := m.Status(context.Background())
	if !st.Installed || st.Version == nil || *st.Version != banner {
		t.Fatalf("unexpected status: %#v", st)
	}
	if st.RequiresPrivileges {
		t.Fatalf("root must not require privileges")
	}
}

func TestStatusIsIdempotent(t *testing.T) {
	m := newManager(host.OSLinux, &fakeRunner{installed: true}, host.PrivilegeUnknown)
	a := m.Status(context.Background())
	b := m.Status(context.Background())
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("status differs: %#v vs %#v", a, b)
	}
}

func TestIsInstalledRequiresBanner(t *testing.T) {
	r := &fakeRunner{installed: true, version: "podman version 4.9.3"}
	m := newManager(host.OSLinux, r, host.PrivilegeDenied)
	if m.IsInstalled(context.Background()) {
		t.Fatalf("output without banner must not count as installed")
	}
	if v, ok := m.Version(context.Background()); !ok || v != "podman version 4.9.3" {
		t.Fatalf("version = %q, %v", v, ok)
	}
}

func TestIsInstalledMissingBinary(t *testing.T) {
	m := newManager(host.OSLinux, &fakeRunner{}, host.PrivilegeDenied)
	if m.IsInstalled(context.Background()) {
		t.Fatalf("missing binary must be not installed")
	}
	if _, ok := m.Version(context.Background()); ok {
		t.Fatalf("missing binary must have no version")
	}
}

func TestInstallAlreadyInstalled(t *testing.T) {
	r := &fakeRunner{installed: true}
	m := newManager(host.OSLinux, r, host.PrivilegeGranted)
	res := m.Install(context.Background())
	if res.Success || res.Message != "Docker is already installed" || res.Code != CodeAlreadyInstalled {
		t.Fatalf("unexpected result: %#v", res)
	}
	if len(r.runs) != 0 {
		t.Fatalf("no commands expected, got %v", r.runs)
	}
}

func TestInstallLinuxSequence(t *testing.T) {
	r := &fakeRunner{}
	m := newManager(host.OSLinux, r, host.PrivilegeGranted)
	res := m.Install(context.Background())
	if !res.Success || res.Message != "Docker installed successfully" {
		t.Fatalf("unexpected result: %#v", res)
	}
	want := []string{
		"sudo apt-get update",
		"sudo apt-get install -y docker-ce",
		"sudo systemctl enable docker",
		"sudo systemctl start docker",
	}
	if !reflect.DeepEqual(r.runs, want) {
		t.Fatalf("runs = %v, want %v", r.runs, want)
	}
}

func TestInstallLinuxStopsOnPackageFailure(t *testing.T) {
	r := &fakeRunner{failOn: "sudo apt-get install -y docker-ce"}
	m := newManager(host.OSLinux, r, host.PrivilegeGranted)
	res := m.Install(context.Background())
	if res.Success {
		t.Fatalf("expected failure")
	}
	if res.Code != CodeCommandFailed {
		t.Fatalf("code = %q, want command_failed", res.Code)
	}
	if !strings.Contains(res.Message, "exit status 100") || !strings.Contains(res.Message, "Unable to locate package") {
		t.Fatalf("message must carry the underlying error: %q", res.Message)
	}
	if len(r.runs) != 2 {
		t.Fatalf("enable/start must not run after failure, runs: %v", r.runs)
	}
}

func TestInstallWindows(t *testing.T) {
	r := &fakeRunner{}
	m := newManager(host.OSWindows, r, host.PrivilegeGranted)
	res := m.Install(context.Background())
	if !res.Success {
		t.Fatalf("unexpected result: %#v", res)
	}
	if len(r.runs) != 1 || !strings.HasPrefix(r.runs[0], "winget install -e --id Docker.DockerDesktop") {
		t.Fatalf("unexpected runs: %v", r.runs)
	}
}

func TestUnsupportedOS(t *testing.T) {
	cases := []struct {
		op        Operation
		installed bool
		want      string
	}{
		{OpInstall, false, "Unsupported OS: %s"},
		{OpInstall, true, "Docker is already installed"},
		{OpUpdate, false, "Docker not installed"},
		{OpUpdate, true, "Unsupported OS: %s"},
		{OpUninstall, false, "Docker not installed"},
		{OpUninstall, true, "Unsupported OS: %s"},
	}
	for _, os := range []host.OS{host.OSDarwin, host.OSUnknown} {
		for _, tc := range cases {
			r := &fakeRunner{installed: tc.installed}
			m := newManager(os, r, host.PrivilegeGranted)
			ops := map[Operation]func(context.Context) Result{
				OpInstall:   m.Install,
				OpUpdate:    m.Update,
				OpUninstall: m.Uninstall,
			}
			res := ops[tc.op](context.Background())
			want := tc.want
			if strings.Contains(want, "%s") {
				want = fmt.Sprintf(want, os)
			}
			if res.Success || res.Message != want {
				t.Fatalf("%s on %s (installed=%v): got %#v, want message %q", tc.op, os, tc.installed, res, want)
			}
			if len(r.runs) != 0 {
				t.Fatalf("no commands expected on %s, got %v", os, r.runs)
			}
		}
	}
}

func TestUpdateLinux(t *testing.T) {
	r := &fakeRunner{installed: true}
	m := newManager(host.OSLinux, r, host.PrivilegeGranted)
	res := m.Update(context.Background())
	if !res.Success || res.Message != "Docker updated successfully" {
		t.Fatalf("unexpected result: %#v", res)
	}
	want := []string{"sudo apt-get update", "sudo apt-get upgrade -y docker-ce"}
	if !reflect.DeepEqual(r.runs, want) {
		t.Fatalf("runs = %v, want %v", r.runs, want)
	}
}

func TestUpdateWindowsReusesInstall(t *testing.T) {
	r := &fakeRunner{installed: true}
	m := newManager(host.OSWindows, r, host.PrivilegeGranted)
	if res := m.Update(context.Background()); !res.Success {
		t.Fatalf("unexpected result: %#v", res)
	}
	if len(r.runs) != 1 || !strings.HasPrefix(r.runs[0], "winget install") {
		t.Fatalf("unexpected runs: %v", r.runs)
	}
}

func TestUpdateAndUninstallRequireInstalled(t *testing.T) {
	r := &fakeRunner{}
	m := newManager(host.OSLinux, r, host.PrivilegeGranted)
	for _, res := range []Result{m.Update(context.Background()), m.Uninstall(context.Background())} {
		if res.Success || res.Message != "Docker not installed" || res.Code != CodeNotInstalled {
			t.Fatalf("unexpected result: %#v", res)
		}
	}
	if len(r.runs) != 0 {
		t.Fatalf("no commands expected, got %v", r.runs)
	}
}

func TestUninstallLinux(t *testing.T) {
	r := &fakeRunner{installed: true}
	m := newManager(host.OSLinux, r, host.PrivilegeGranted)
	res := m.Uninstall(context.Background())
	if !res.Success || res.Message != "Docker uninstalled successfully" {
		t.Fatalf("unexpected result: %#v", res)
	}
	want := []string{
		"sudo apt-get remove -y docker-ce",
		"sudo apt-get purge -y docker-ce",
		"sudo rm -rf /var/lib/docker",
	}
	if !reflect.DeepEqual(r.runs, want) {
		t.Fatalf("runs = %v, want %v", r.runs, want)
	}
}

func TestUninstallLinuxPurgeFailure(t *testing.T) {
	r := &fakeRunner{installed: true, failOn: "sudo apt-get purge -y docker-ce"}
	m := newManager(host.OSLinux, r, host.PrivilegeGranted)
	res := m.Uninstall(context.Background())
	if res.Success || !strings.HasPrefix(res.Message, "Failed to uninstall Docker: error at 'purging docker-ce'") {
		t.Fatalf("unexpected result: %#v", res)
	}
	if len(r.runs) != 2 {
		t.Fatalf("data dir must not be removed after failure, runs: %v", r.runs)
	}
}

func TestPlanOverrides(t *testing.T) {
	r := &fakeRunner{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := New(Config{
		OS: host.OSLinux,
		Plans: Plans{Install: Plan{
			{Stage: "custom", Args: []string{"apt", "install", "-y", "docker.io"}},
		}},
	}, r, fakePrivs{host.PrivilegeGranted}, logger)

	if res := m.Install(context.Background()); !res.Success {
		t.Fatalf("unexpected result: %#v", res)
	}
	if !reflect.DeepEqual(r.runs, []string{"apt install -y docker.io"}) {
		t.Fatalf("override not used: %v", r.runs)
	}
	if len(m.cfg.Plans.Uninstall) != 3 {
		t.Fatalf("missing plans must fall back to defaults")
	}
}
