package watch

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessProbe answers whether the target process is currently running.
type ProcessProbe interface {
	Running(ctx context.Context, name string) (bool, error)
}

// WindowProbe answers whether the target application's window currently has
// focus, and with what title.
type WindowProbe interface {
	Active(ctx context.Context, processName string) (active bool, title string, err error)
}

// SystemProcessProbe scans the process table. A process matches when its name
// starts with the target name, case-insensitively, so "Claude" matches both
// "Claude" and "Claude Helper".
type SystemProcessProbe struct{}

func (SystemProcessProbe) Running(ctx context.Context, name string) (bool, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return false, fmt.Errorf("list processes: %w", err)
	}

	want := strings.ToLower(strings.TrimSpace(name))
	if want == "" {
		return false, nil
	}

	for _, p := range procs {
		// Individual processes can vanish mid-scan; skip them.
		pname, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if strings.HasPrefix(strings.ToLower(pname), want) {
			return true, nil
		}
	}
	return false, nil
}

// CommandWindowProbe shells out to a configured command, appending the target
// process name as the final argument. The command prints "1" or "0" on the
// first line and optionally the focused window title on the second. This is
// how the osascript/xdotool wrappers plug in without the agent linking any
// platform GUI API.
type CommandWindowProbe struct {
	Argv []string
}

func (p *CommandWindowProbe) Active(ctx context.Context, processName string) (bool, string, error) {
	if len(p.Argv) == 0 {
		return false, "", fmt.Errorf("window probe command not configured")
	}

	args := append(append([]string{}, p.Argv[1:]...), processName)
	out, err := exec.CommandContext(ctx, p.Argv[0], args...).Output()
	if err != nil {
		return false, "", fmt.Errorf("window probe: %w", err)
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	active := strings.TrimSpace(lines[0]) == "1"
	title := ""
	if len(lines) > 1 {
		title = strings.TrimSpace(lines[1])
	}
	return active, title, nil
}

// ProcessFollowsProbe treats the window as focused whenever the process runs.
// Used when no window probe command is configured; capture then covers the
// whole process lifetime instead of focus intervals, which is degraded but
// workable.
type ProcessFollowsProbe struct {
	Proc ProcessProbe
}

func (p *ProcessFollowsProbe) Active(ctx context.Context, processName string) (bool, string, error) {
	running, err := p.Proc.Running(ctx, processName)
	return running, "", err
}
