//go:build !windows && !darwin && !linux

package svcquery

import (
	"context"
	"fmt"
)

// GetStatus has no service manager to consult on this platform.
func GetStatus(_ context.Context, name string) (ServiceInfo, error) {
	return ServiceInfo{Name: name, Status: StatusUnknown}, fmt.Errorf("svcquery: not implemented on this platform")
}
