// Package adapters
// Author: momentics <momentics@gmail.com>
//
// Control adapter implementing api.Control using control package primitives.

package adapters

import (
	"github.com/momentics/hioload-fib/api"
	"github.com/momentics/hioload-fib/control"
)

type ControlAdapter struct {
	journal *control.Journal
	debug   *control.DebugProbes
}

// NewControlAdapter exposes journal contents and debug probes as Stats.
func NewControlAdapter(j *control.Journal) api.Control {
	return &ControlAdapter{
		journal: j,
		debug:   control.NewDebugProbes(),
	}
}

func (c *ControlAdapter) Stats() map[string]any {
	combined := make(map[string]any)
	for k, v := range c.debug.DumpState() {
		combined["debug."+k] = v
	}
	if c.journal != nil {
		combined["journal.recent"] = c.journal.Snapshot()
		combined["journal.dropped"] = c.journal.Dropped()
	}
	return combined
}

func (c *ControlAdapter) RegisterDebugProbe(name string, fn func() any) {
	c.debug.RegisterProbe(name, fn)
}
