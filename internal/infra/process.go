// Package infra implements infrastructure concerns (processes, transport, updates, files).
package infra

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/focusd/prod_mon/internal/domain"
)

// ProcessListerImpl implements domain.ProcessLister using gopsutil.
type ProcessListerImpl struct{}

// NewProcessLister creates a new process lister.
func NewProcessLister() *ProcessListerImpl {
	return &ProcessListerImpl{}
}

// RunningProcessNames returns the names of all running processes.
// Processes that exit while being listed are skipped.
func (pl *ProcessListerImpl) RunningProcessNames(ctx context.Context) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	names := make([]string, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue // Process may have exited
		}
		names = append(names, name)
	}
	return names, nil
}

// Ensure ProcessListerImpl implements domain.ProcessLister.
var _ domain.ProcessLister = (*ProcessListerImpl)(nil)
