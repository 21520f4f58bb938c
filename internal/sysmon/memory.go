// Package sysmon samples host resource utilization for the pipeline's
// memory-pressure gate.
package sysmon

import (
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/aquarig/fintrack/internal/monitoring"
)

// Sampler returns the current system memory utilization as a 0-1
// fraction. The recorder polls it at display-tick cadence, not per
// frame.
type Sampler func() float64

// MemoryUtilization samples system memory via gopsutil. A sampling
// failure reads as zero pressure so the recording path degrades open
// rather than silently dropping every frame; the failure is logged on
// the ops stream.
func MemoryUtilization() float64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		monitoring.Opsf("memory sampler failed, assuming no pressure: %v", err)
		return 0
	}
	return vm.UsedPercent / 100
}

// Fixed returns a sampler that always reports v. Test helper.
func Fixed(v float64) Sampler {
	return func() float64 { return v }
}
