package ui

import (
	"sync"
	"time"
)

// speedSampleInterval bounds how often Update recomputes throughput, so a
// burst of small updates doesn't produce noisy per-call speed readings.
const speedSampleInterval = 500 * time.Millisecond

// speedSmoothing is the exponential-smoothing factor applied to the
// rolling average speed: 0.2 favors recent samples but damps spikes.
const speedSmoothing = 0.2

// etaSmoothingFactor controls how much weight a new ETA estimate gets
// against the previous one: 0.3 new + 0.7 old keeps the countdown from
// jumping around as per-batch embedding time varies.
const etaSmoothingFactor = 0.3

// throughputTracker accumulates items/sec samples and feeds a Sparkline
// for the TUI's live speed panel.
type throughputTracker struct {
	lastCount int
	lastCalc  time.Time
	current   float64
	avg       float64
	peak      float64
	samples   int
	history   *Sparkline
}

func newThroughputTracker() throughputTracker {
	return throughputTracker{
		lastCalc: time.Now(),
		history:  NewSparkline(defaultSparklineWidth),
	}
}

func (t *throughputTracker) reset() {
	*t = newThroughputTracker()
}

// observe folds in a new cumulative count, recording a speed sample once
// at least speedSampleInterval has elapsed since the last one.
func (t *throughputTracker) observe(count int, now time.Time) {
	elapsed := now.Sub(t.lastCalc)
	if elapsed < speedSampleInterval {
		return
	}

	delta := count - t.lastCount
	if delta > 0 && elapsed > 0 {
		speed := float64(delta) / elapsed.Seconds()
		t.current = speed

		t.samples++
		if t.samples == 1 {
			t.avg = speed
		} else {
			t.avg = speedSmoothing*speed + (1-speedSmoothing)*t.avg
		}

		if speed > t.peak {
			t.peak = speed
		}
		t.history.Add(speed)
	}

	t.lastCount = count
	t.lastCalc = now
}

func (t *throughputTracker) stats() SpeedStats {
	return SpeedStats{Current: t.current, Avg: t.avg, Peak: t.peak}
}

// ProgressTracker holds the mutable state behind an indexing run's live
// display: stage, item counts, throughput, and any errors/warnings seen
// so far. Safe for concurrent use.
type ProgressTracker struct {
	mu          sync.RWMutex
	stage       Stage
	current     int
	total       int
	currentFile string
	startTime   time.Time
	stageStart  time.Time
	errors      []ErrorEvent
	warnings    []ErrorEvent
	lastETA     time.Duration
	speed       throughputTracker
}

// SpeedStats is a point-in-time throughput snapshot for display.
type SpeedStats struct {
	Current float64
	Avg     float64
	Peak    float64
}

// ProgressStats is a point-in-time snapshot of the whole tracker, taken
// under a single lock so every field reflects the same instant.
type ProgressStats struct {
	Stage       Stage
	Current     int
	Total       int
	Progress    float64
	ETA         time.Duration
	CurrentFile string
	ErrorCount  int
	WarnCount   int
	Speed       SpeedStats
}

// NewProgressTracker returns a tracker starting in StageScanning.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		stage:      StageScanning,
		startTime:  now,
		stageStart: now,
		speed:      newThroughputTracker(),
	}
}

// SetStage transitions to a new stage, resetting per-stage counters
// (progress, ETA smoothing, throughput history).
func (p *ProgressTracker) SetStage(stage Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = stage
	p.total = total
	p.current = 0
	p.currentFile = ""
	p.stageStart = time.Now()
	p.lastETA = 0
	p.speed.reset()
}

// Update records progress within the current stage and, at most once per
// speedSampleInterval, a new throughput sample.
func (p *ProgressTracker) Update(current int, file string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current
	if file != "" {
		p.currentFile = file
	}
	p.speed.observe(current, time.Now())
}

// AddError records an error or, if event.IsWarn, a warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings = append(p.warnings, event)
	} else {
		p.errors = append(p.errors, event)
	}
}

// Progress returns current progress as a fraction in [0, 1].
func (p *ProgressTracker) Progress() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return fractionDone(p.current, p.total)
}

// ETA estimates remaining time for the current stage, exponentially
// smoothed against the previous estimate.
func (p *ProgressTracker) ETA() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.calculateETA()
}

// Elapsed returns time since the tracker was created.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return time.Since(p.startTime)
}

// Stats takes a consistent snapshot of every tracked field.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return ProgressStats{
		Stage:       p.stage,
		Current:     p.current,
		Total:       p.total,
		Progress:    fractionDone(p.current, p.total),
		ETA:         p.calculateETA(),
		CurrentFile: p.currentFile,
		ErrorCount:  len(p.errors),
		WarnCount:   len(p.warnings),
		Speed:       p.speed.stats(),
	}
}

// fractionDone returns current/total clamped to [0, 1], or 0 if total is 0.
func fractionDone(current, total int) float64 {
	if total == 0 {
		return 0.0
	}
	f := float64(current) / float64(total)
	if f > 1.0 {
		return 1.0
	}
	return f
}

// calculateETA must be called with p.mu held; it both reads and updates
// lastETA for smoothing.
func (p *ProgressTracker) calculateETA() time.Duration {
	if p.current == 0 || p.total == 0 {
		return 0
	}

	elapsed := time.Since(p.stageStart)
	progress := float64(p.current) / float64(p.total)
	if progress <= 0 || progress >= 1.0 {
		return 0
	}

	totalEstimate := time.Duration(float64(elapsed) / progress)
	rawRemaining := totalEstimate - elapsed
	if rawRemaining < 0 {
		return 0
	}

	if p.lastETA == 0 {
		p.lastETA = rawRemaining
		return rawRemaining
	}

	smoothed := time.Duration(
		etaSmoothingFactor*float64(rawRemaining) +
			(1-etaSmoothingFactor)*float64(p.lastETA),
	)
	p.lastETA = smoothed
	return smoothed
}

// Errors returns a copy of the recorded errors.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]ErrorEvent, len(p.errors))
	copy(result, p.errors)
	return result
}

// Warnings returns a copy of the recorded warnings.
func (p *ProgressTracker) Warnings() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]ErrorEvent, len(p.warnings))
	copy(result, p.warnings)
	return result
}

// RenderSparkline renders the throughput history at width, or at the
// tracker's default width if width <= 0.
func (p *ProgressTracker) RenderSparkline(width int) string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.speed.history == nil {
		return ""
	}
	if width <= 0 {
		return p.speed.history.Render()
	}
	return p.speed.history.RenderWithWidth(width)
}

// SpeedStats returns the current throughput snapshot.
func (p *ProgressTracker) SpeedStats() SpeedStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.speed.stats()
}
