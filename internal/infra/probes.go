package infra

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/focuslock/sessiond/internal/domain"
)

// DefaultProbeApps is the fixed list of common applications checked for
// liveness by the known-apps probe, and doubles as the catalog behind
// the "popular apps" query surface.
var DefaultProbeApps = []string{
	"Safari",
	"Google Chrome",
	"Firefox",
	"Arc",
	"Visual Studio Code",
	"Xcode",
	"Terminal",
	"iTerm2",
	"Slack",
	"Discord",
	"Spotify",
	"Music",
	"Notes",
	"Notion",
	"Obsidian",
	"Messages",
	"Mail",
	"Zoom.us",
	"Preview",
	"Pages",
}

// FallbackApps is returned when every probe fails. Stale data is
// preferable to an empty enforcement cycle aborting the session.
var FallbackApps = []string{"Safari", "Google Chrome", "Notes", "Music"}

// DefaultProbes returns the ordered discovery cascade. Earlier probes
// are more accurate; later ones trade accuracy for availability.
func DefaultProbes(runner CommandRunner) []domain.ProbeStrategy {
	return []domain.ProbeStrategy{
		&AccessibilityProbe{Runner: runner},
		&ProcessTableProbe{},
		&SpotlightProbe{Runner: runner},
		&WindowServerProbe{Runner: runner},
		&KnownAppsProbe{Apps: DefaultProbeApps},
	}
}

// AccessibilityProbe asks System Events for every non-background
// application process. The most accurate probe, but requires
// accessibility permission and an active osascript.
type AccessibilityProbe struct {
	Runner CommandRunner
}

func (p *AccessibilityProbe) Name() string { return "accessibility" }

func (p *AccessibilityProbe) Probe(ctx context.Context) ([]string, error) {
	out, err := p.Runner.Output("osascript", "-e",
		`tell application "System Events" to get name of every application process whose background only is false`)
	if err != nil {
		return nil, err
	}
	return splitAppleScriptList(string(out)), nil
}

// splitAppleScriptList parses osascript's comma-separated list output.
func splitAppleScriptList(out string) []string {
	var names []string
	for _, part := range strings.Split(out, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// ProcessTableProbe scans the process table for executables living
// inside application bundles.
type ProcessTableProbe struct{}

func (p *ProcessTableProbe) Name() string { return "process-table" }

func (p *ProcessTableProbe) Probe(ctx context.Context) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, proc := range procs {
		exe, err := proc.ExeWithContext(ctx)
		if err != nil {
			continue // Process may have exited
		}
		if name, ok := bundleAppName(exe); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// bundleAppName extracts "Safari" from
// "/Applications/Safari.app/Contents/MacOS/Safari".
func bundleAppName(exePath string) (string, bool) {
	idx := strings.Index(exePath, ".app/Contents/MacOS/")
	if idx < 0 {
		return "", false
	}
	name := filepath.Base(exePath[:idx])
	if name == "" || name == "." || name == "/" {
		return "", false
	}
	return name, true
}

// SpotlightProbe lists installed application bundles via the metadata
// index. Returns installed rather than running apps; terminating an app
// that is not running is a harmless no-op, so the imprecision is
// accepted in exchange for working without accessibility permission.
type SpotlightProbe struct {
	Runner CommandRunner
}

func (p *SpotlightProbe) Name() string { return "spotlight" }

func (p *SpotlightProbe) Probe(ctx context.Context) ([]string, error) {
	out, err := p.Runner.Output("mdfind",
		"kMDItemContentType==com.apple.application-bundle",
		"-onlyin", "/Applications")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasSuffix(line, ".app") {
			continue
		}
		names = append(names, strings.TrimSuffix(filepath.Base(line), ".app"))
	}
	return names, nil
}

// WindowServerProbe lists applications holding a window-server
// connection via lsappinfo.
type WindowServerProbe struct {
	Runner CommandRunner
}

func (p *WindowServerProbe) Name() string { return "window-server" }

func (p *WindowServerProbe) Probe(ctx context.Context) ([]string, error) {
	out, err := p.Runner.Output("lsappinfo", "list")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, line := range strings.Split(string(out), "\n") {
		if name, ok := lsappinfoName(line); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// lsappinfoName extracts the quoted app name from an lsappinfo summary
// line such as `12) "Safari" ASN:0x0-0x1a01a0:`.
func lsappinfoName(line string) (string, bool) {
	if !strings.Contains(line, ") \"") {
		return "", false
	}
	start := strings.Index(line, "\"")
	if start < 0 {
		return "", false
	}
	end := strings.Index(line[start+1:], "\"")
	if end < 0 {
		return "", false
	}
	name := line[start+1 : start+1+end]
	if name == "" {
		return "", false
	}
	return name, true
}

// KnownAppsProbe checks a fixed list of common applications for
// liveness, one by one. Last resort before the hardcoded fallback.
type KnownAppsProbe struct {
	Apps []string
}

func (p *KnownAppsProbe) Name() string { return "known-apps" }

func (p *KnownAppsProbe) Probe(ctx context.Context) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	running := make(map[string]bool, len(procs))
	for _, proc := range procs {
		if name, err := proc.NameWithContext(ctx); err == nil {
			running[strings.ToLower(name)] = true
		}
	}

	var names []string
	for _, app := range p.Apps {
		if running[strings.ToLower(app)] {
			names = append(names, app)
		}
	}
	return names, nil
}

// Ensure probes satisfy the interface.
var (
	_ domain.ProbeStrategy = (*AccessibilityProbe)(nil)
	_ domain.ProbeStrategy = (*ProcessTableProbe)(nil)
	_ domain.ProbeStrategy = (*SpotlightProbe)(nil)
	_ domain.ProbeStrategy = (*WindowServerProbe)(nil)
	_ domain.ProbeStrategy = (*KnownAppsProbe)(nil)
)
