// Package profiling wraps runtime/pprof and runtime/trace behind
// file-based capture methods used by vecdb's long-running commands
// (serve, ingest) to diagnose CPU, memory, and goroutine behavior.
package profiling

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// Profiler captures pprof and execution-trace profiles to disk.
type Profiler struct {
	cpuFile   *os.File
	traceFile *os.File
}

// NewProfiler returns a ready-to-use Profiler.
func NewProfiler() *Profiler {
	return &Profiler{}
}

// StartCPU begins CPU profiling into path. The returned stop func must be
// called to flush and close the profile.
func (p *Profiler) StartCPU(path string) (stop func(), err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create CPU profile file: %w", err)
	}

	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to start CPU profile: %w", err)
	}
	p.cpuFile = f

	return func() {
		pprof.StopCPUProfile()
		_ = p.cpuFile.Close()
		p.cpuFile = nil
	}, nil
}

// StartTrace begins execution tracing into path. The returned stop func
// must be called to flush and close the trace.
func (p *Profiler) StartTrace(path string) (stop func(), err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace file: %w", err)
	}

	if err := trace.Start(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to start trace: %w", err)
	}
	p.traceFile = f

	return func() {
		trace.Stop()
		_ = p.traceFile.Close()
		p.traceFile = nil
	}, nil
}

// WriteHeap captures a point-in-time heap profile to path, forcing a GC
// first so the snapshot reflects live objects rather than garbage.
func (p *Profiler) WriteHeap(path string) error {
	return writeNamedProfile(path, "heap", 0, true)
}

// WriteAllocs captures a profile of all past allocations (not just live
// objects) to path.
func (p *Profiler) WriteAllocs(path string) error {
	return writeNamedProfile(path, "allocs", 0, true)
}

// WriteGoroutine captures stack traces of every running goroutine to path.
func (p *Profiler) WriteGoroutine(path string) error {
	return writeNamedProfile(path, "goroutine", 1, false)
}

// WriteBlock captures where goroutines are blocked on synchronization
// primitives to path.
func (p *Profiler) WriteBlock(path string) error {
	return writeNamedProfile(path, "block", 0, false)
}

// writeNamedProfile creates path and writes the named pprof.Lookup profile
// to it at the given debug verbosity, optionally forcing a GC beforehand
// for profiles sensitive to collectible garbage.
func writeNamedProfile(path, name string, debug int, forceGC bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s profile file: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	if forceGC {
		runtime.GC()
	}

	if err := pprof.Lookup(name).WriteTo(f, debug); err != nil {
		return fmt.Errorf("failed to write %s profile: %w", name, err)
	}

	return nil
}

// MemStats returns a fresh snapshot of runtime memory statistics.
func MemStats() runtime.MemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m
}

// Unit thresholds for FormatBytes, largest first.
const (
	gigabyte = 1024 * 1024 * 1024
	megabyte = 1024 * 1024
	kilobyte = 1024
)

// FormatBytes renders a byte count using the largest unit (B/KB/MB/GB)
// that keeps the displayed value at or above 1.
func FormatBytes(bytes uint64) string {
	switch {
	case bytes >= gigabyte:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(gigabyte))
	case bytes >= megabyte:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(megabyte))
	case bytes >= kilobyte:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(kilobyte))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
