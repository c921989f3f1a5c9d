//go:build darwin

package svcquery

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// GetStatus queries a launchd service by label via launchctl list.
func GetStatus(ctx context.Context, name string) (ServiceInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "launchctl", "list")
	output, err := cmd.Output()
	if err != nil {
		return ServiceInfo{Name: name, Status: StatusUnknown}, fmt.Errorf("svcquery: launchctl list: %w", err)
	}

	for _, line := range strings.Split(string(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		label := fields[2]
		if label == name || strings.HasSuffix(label, "."+name) {
			pid := fields[0]
			info := ServiceInfo{
				Name:   label,
				Status: StatusStopped,
			}
			if pid != "-" {
				info.Status = StatusRunning
			}
			return info, nil
		}
	}

	// Not in launchctl list: check if plist exists (installed but not loaded)
	plistPaths := []string{
		"/Library/LaunchDaemons/" + name + ".plist",
		"/Library/LaunchAgents/" + name + ".plist",
	}
	for _, p := range plistPaths {
		if _, err := os.Stat(p); err == nil {
			return ServiceInfo{Name: name, Status: StatusStopped}, nil
		}
	}

	return ServiceInfo{Name: name, Status: StatusUnknown}, fmt.Errorf("svcquery: service %s not found", name)
}
