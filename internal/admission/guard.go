// Package admission implements the background worker's accept-path gate:
// a periodic CPU/memory sample consulted only by the connection accept
// loop, never by an already-established session (§4.12).
package admission

import (
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Sample is one CPU/memory reading (§3.1's AdmissionSample).
type Sample struct {
	CPUPercent float64
	MemPercent float64
	SampledAt  time.Time
}

// Guard holds the latest sample and the configured reject thresholds.
// Refresh is called by the background worker's ticker; ShouldAccept is
// called by the accept loop. Both are safe for concurrent use.
type Guard struct {
	cpuThreshold float64
	memThreshold float64
	sample       atomic.Value // Sample
}

// New returns a guard that rejects once CPU or memory exceeds the given
// percentage thresholds. An initial zero-valued sample is stored so
// ShouldAccept never observes an uninitialized value.
func New(cpuThreshold, memThreshold float64) *Guard {
	g := &Guard{cpuThreshold: cpuThreshold, memThreshold: memThreshold}
	g.sample.Store(Sample{})
	return g
}

// Refresh samples current CPU and memory usage and stores the result.
// The 100ms CPU sample window keeps this non-blocking enough to run on the
// worker's own ticker without materially delaying the next tick.
func (g *Guard) Refresh() error {
	percents, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return err
	}
	var cpuPct float64
	if len(percents) > 0 {
		cpuPct = percents[0]
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return err
	}

	g.sample.Store(Sample{
		CPUPercent: cpuPct,
		MemPercent: vm.UsedPercent,
		SampledAt:  time.Now(),
	})
	return nil
}

// Latest returns the most recently stored sample.
func (g *Guard) Latest() Sample {
	return g.sample.Load().(Sample)
}

// ShouldAccept reports whether a new connection should be admitted given
// the most recent sample, and a human-readable reason when it should not.
func (g *Guard) ShouldAccept() (bool, string) {
	s := g.Latest()
	if s.CPUPercent > g.cpuThreshold {
		return false, "cpu over threshold"
	}
	if s.MemPercent > g.memThreshold {
		return false, "memory over threshold"
	}
	return true, ""
}
