// Package procwatch reports whether the game client process is alive.
package procwatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// Lister enumerates process names. The default walks the process table.
type Lister func(ctx context.Context) ([]string, error)

// Watcher looks for one process by executable name, case-insensitively.
type Watcher struct {
	name string
	list Lister
}

func New(name string) *Watcher {
	return &Watcher{name: name, list: processNames}
}

// NewWithLister is New over a custom process source.
func NewWithLister(name string, list Lister) *Watcher {
	return &Watcher{name: name, list: list}
}

// Running reports whether a process named like the watched one exists. An
// empty name is always running, so crash checks stay off.
func (w *Watcher) Running(ctx context.Context) (bool, error) {
	if w.name == "" {
		return true, nil
	}
	names, err := w.list(ctx)
	if err != nil {
		return false, fmt.Errorf("list processes: %w", err)
	}
	for _, n := range names {
		if strings.EqualFold(n, w.name) {
			return true, nil
		}
	}
	return false, nil
}

func processNames(ctx context.Context) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(procs))
	for _, p := range procs {
		// processes can exit between listing and lookup
		n, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		names = append(names, n)
	}
	return names, nil
}
