//go:build linux

package svcquery

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// GetStatus queries a systemd unit via systemctl show. The unit name may be
// given with or without the .service suffix.
func GetStatus(ctx context.Context, name string) (ServiceInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	unit := name
	if !strings.Contains(unit, ".") {
		unit += ".service"
	}

	cmd := exec.CommandContext(ctx, "systemctl", "show", unit,
		"--property=ActiveState,LoadState,UnitFileState,Description")
	output, err := cmd.Output()
	if err != nil {
		return ServiceInfo{Name: name, Status: StatusUnknown}, fmt.Errorf("svcquery: systemctl show %s: %w", unit, err)
	}

	info, err := parseSystemctlShow(name, string(output))
	if err != nil {
		return ServiceInfo{Name: name, Status: StatusUnknown}, err
	}
	return info, nil
}

func parseSystemctlShow(name, output string) (ServiceInfo, error) {
	props := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		props[k] = v
	}

	if props["LoadState"] == "not-found" {
		return ServiceInfo{}, fmt.Errorf("svcquery: service %s not found", name)
	}

	info := ServiceInfo{
		Name:        name,
		DisplayName: props["Description"],
		Status:      StatusStopped,
		StartType:   props["UnitFileState"],
	}
	switch props["ActiveState"] {
	case "active", "activating", "reloading":
		info.Status = StatusRunning
	case "inactive", "deactivating", "failed":
		info.Status = StatusStopped
	case "":
		info.Status = StatusUnknown
	}
	if props["UnitFileState"] == "disabled" && info.Status == StatusStopped {
		info.Status = StatusDisabled
	}
	return info, nil
}
