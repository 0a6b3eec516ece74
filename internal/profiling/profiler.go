// Package profiling captures pprof profiles of a refresh run.
package profiling

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// Profile file names written into the session directory.
const (
	CPUFile   = "cpu.prof"
	TraceFile = "trace.out"
	HeapFile  = "heap.prof"
)

// Session records a CPU profile and an execution trace from Start until
// Stop, then snapshots the heap.
type Session struct {
	dir       string
	cpuFile   *os.File
	traceFile *os.File
}

// Start creates dir and begins CPU profiling and tracing into it. Only one
// session can run per process.
func Start(dir string) (*Session, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}
	s := &Session{dir: dir}

	cpu, err := os.Create(filepath.Join(dir, CPUFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create CPU profile file: %w", err)
	}
	if err := pprof.StartCPUProfile(cpu); err != nil {
		_ = cpu.Close()
		return nil, fmt.Errorf("failed to start CPU profile: %w", err)
	}
	s.cpuFile = cpu

	tf, err := os.Create(filepath.Join(dir, TraceFile))
	if err != nil {
		s.stopCPU()
		return nil, fmt.Errorf("failed to create trace file: %w", err)
	}
	if err := trace.Start(tf); err != nil {
		_ = tf.Close()
		s.stopCPU()
		return nil, fmt.Errorf("failed to start trace: %w", err)
	}
	s.traceFile = tf

	return s, nil
}

// Dir returns the directory profiles are written to.
func (s *Session) Dir() string { return s.dir }

// Stop ends profiling and writes the heap profile. Calling Stop twice is a
// no-op.
func (s *Session) Stop() error {
	if s.cpuFile == nil {
		return nil
	}
	var errs []error
	if s.traceFile != nil {
		trace.Stop()
		errs = append(errs, s.traceFile.Close())
		s.traceFile = nil
	}
	errs = append(errs, s.stopCPU(), writeHeap(filepath.Join(s.dir, HeapFile)))
	return errors.Join(errs...)
}

func (s *Session) stopCPU() error {
	pprof.StopCPUProfile()
	err := s.cpuFile.Close()
	s.cpuFile = nil
	return err
}

func writeHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create heap profile file: %w", err)
	}
	defer func() { _ = f.Close() }()

	// Collect first so the profile shows live objects only.
	runtime.GC()

	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("failed to write heap profile: %w", err)
	}
	return nil
}
