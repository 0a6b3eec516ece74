package ui

import (
	"sync"
	"time"
)

// etaSmoothingFactor weights a new ETA sample against the previous one.
const etaSmoothingFactor = 0.3

// ProgressTracker tracks per-locale document throughput.
// It is safe for concurrent use.
type ProgressTracker struct {
	mu          sync.RWMutex
	stage       Stage
	locale      string
	current     int
	total       int
	startTime   time.Time
	localeStart time.Time
	errors      []ErrorEvent
	warnings    []ErrorEvent

	lastETA       time.Duration
	lastCurrent   int
	lastSpeedCalc time.Time
	currentSpeed  float64
	peakSpeed     float64
}

// ProgressStats contains a snapshot of current progress.
type ProgressStats struct {
	Stage      Stage
	Locale     string
	Current    int
	Total      int
	Progress   float64
	ETA        time.Duration
	Speed      float64
	PeakSpeed  float64
	ErrorCount int
	WarnCount  int
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		stage:         StagePreparing,
		startTime:     now,
		localeStart:   now,
		lastSpeedCalc: now,
	}
}

// BeginLocale resets counters for a new locale.
func (p *ProgressTracker) BeginLocale(code string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.stage = StageIndexing
	p.locale = code
	p.total = total
	p.current = 0
	p.localeStart = now
	p.lastETA = 0
	p.lastCurrent = 0
	p.lastSpeedCalc = now
	p.currentSpeed = 0
}

// SetStage changes the stage without touching counters.
func (p *ProgressTracker) SetStage(stage Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage = stage
}

// Update records the number of documents processed for the current locale.
func (p *ProgressTracker) Update(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current

	// Sample speed at most twice a second to avoid noise.
	now := time.Now()
	elapsed := now.Sub(p.lastSpeedCalc)
	if elapsed < 500*time.Millisecond {
		return
	}
	if delta := current - p.lastCurrent; delta > 0 {
		p.currentSpeed = float64(delta) / elapsed.Seconds()
		if p.currentSpeed > p.peakSpeed {
			p.peakSpeed = p.currentSpeed
		}
	}
	p.lastCurrent = current
	p.lastSpeedCalc = now
}

// AddError records an error or warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings = append(p.warnings, event)
	} else {
		p.errors = append(p.errors, event)
	}
}

// Progress returns current progress in the range 0.0-1.0.
func (p *ProgressTracker) Progress() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.progress()
}

// Elapsed returns time since tracker creation.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.Since(p.startTime)
}

// Stats returns a snapshot. It takes the write lock because the ETA is smoothed.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return ProgressStats{
		Stage:      p.stage,
		Locale:     p.locale,
		Current:    p.current,
		Total:      p.total,
		Progress:   p.progress(),
		ETA:        p.calculateETA(),
		Speed:      p.currentSpeed,
		PeakSpeed:  p.peakSpeed,
		ErrorCount: len(p.errors),
		WarnCount:  len(p.warnings),
	}
}

// Errors returns the recorded errors.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]ErrorEvent, len(p.errors))
	copy(result, p.errors)
	return result
}

// Warnings returns the recorded warnings.
func (p *ProgressTracker) Warnings() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]ErrorEvent, len(p.warnings))
	copy(result, p.warnings)
	return result
}

func (p *ProgressTracker) progress() float64 {
	if p.total == 0 {
		return 0.0
	}
	progress := float64(p.current) / float64(p.total)
	if progress > 1.0 {
		return 1.0
	}
	return progress
}

// calculateETA must be called with the lock held.
func (p *ProgressTracker) calculateETA() time.Duration {
	progress := p.progress()
	if progress <= 0 || progress >= 1.0 {
		return 0
	}

	elapsed := time.Since(p.localeStart)
	raw := time.Duration(float64(elapsed)/progress) - elapsed
	if raw < 0 {
		return 0
	}
	if p.lastETA == 0 {
		p.lastETA = raw
		return raw
	}

	smoothed := time.Duration(etaSmoothingFactor*float64(raw) + (1-etaSmoothingFactor)*float64(p.lastETA))
	p.lastETA = smoothed
	return smoothed
}
