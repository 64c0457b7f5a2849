package live

import (
	"log/slog"
	"sync"
	"time"
)

// ActivitySink receives synthesized speech boundary signals and forwarded
// audio. The provider session implements this interface.
type ActivitySink interface {
	// SignalStart marks the beginning of user speech.
	SignalStart() error

	// SignalEnd marks the end of user speech.
	SignalEnd() error

	// SendAudio forwards an audio frame captured while speech is active.
	SendAudio(frame []byte) error
}

// ActivityConfig configures energy-based speech activity detection.
type ActivityConfig struct {
	// EnergyThreshold is the RMS level at or above which a frame counts as
	// speech. Range 0.0 to 1.0.
	EnergyThreshold float64 `json:"energy_threshold"`

	// SilenceTimeout is how long energy must stay below the threshold
	// before the current utterance is considered finished.
	SilenceTimeout time.Duration `json:"silence_timeout"`
}

// DefaultActivityConfig returns an ActivityConfig with sensible defaults.
func DefaultActivityConfig() ActivityConfig {
	return ActivityConfig{
		EnergyThreshold: 0.015,
		SilenceTimeout:  900 * time.Millisecond,
	}
}

// ActivityDetector synthesizes discrete speech start/end boundaries from
// continuous audio energy. The downstream provider runs with automatic
// activity detection disabled, so these boundaries are the only turn
// delimiters it ever sees.
//
// State alternates strictly: start, end, start, end. Every frame received
// while active is forwarded to the sink regardless of its own energy;
// frames received while inactive are dropped. A silence timer debounces
// brief energy dips so one utterance does not fragment into many turns.
//
// Sink errors are logged and swallowed: a failed signal must never crash
// the connection, and the local transition always completes.
type ActivityDetector struct {
	cfg    ActivityConfig
	logger *slog.Logger

	mu     sync.Mutex
	sink   ActivitySink
	active bool

	// timerGen invalidates scheduled silence callbacks. Every cancel path
	// bumps the generation before (re)arming so a stale timer that already
	// fired cannot apply its transition.
	timer    *time.Timer
	timerGen uint64
}

// NewActivityDetector creates a detector that signals into sink.
func NewActivityDetector(cfg ActivityConfig, sink ActivitySink, logger *slog.Logger) *ActivityDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityDetector{cfg: cfg, sink: sink, logger: logger}
}

// Active reports whether speech is currently detected.
func (d *ActivityDetector) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Process handles one inbound audio frame.
func (d *ActivityDetector) Process(frame []byte) {
	energy := RMSEnergy(frame)

	d.mu.Lock()
	defer d.mu.Unlock()

	if energy >= d.cfg.EnergyThreshold {
		d.cancelTimerLocked()
		if !d.active {
			d.active = true
			if err := d.sink.SignalStart(); err != nil {
				d.logger.Warn("activity: signal start failed", "error", err)
			}
		}
		d.armTimerLocked()
	}

	if d.active {
		if err := d.sink.SendAudio(frame); err != nil {
			d.logger.Warn("activity: forward audio failed", "error", err)
		}
	}
}

// ForceEnd ends the current utterance immediately without waiting for
// silence. A no-op when inactive.
func (d *ActivityDetector) ForceEnd() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return
	}
	d.cancelTimerLocked()
	d.endLocked()
}

// Reset forces the detector inactive without emitting a signal, clearing
// any pending silence timer. Called when the provider reports turn
// completion to resynchronize for the next utterance. Safe against a
// silence timer firing concurrently.
func (d *ActivityDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelTimerLocked()
	d.active = false
}

// Stop cancels any pending timer. Called on connection close.
func (d *ActivityDetector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelTimerLocked()
}

func (d *ActivityDetector) armTimerLocked() {
	d.timerGen++
	gen := d.timerGen
	d.timer = time.AfterFunc(d.cfg.SilenceTimeout, func() {
		d.silenceExpired(gen)
	})
}

func (d *ActivityDetector) cancelTimerLocked() {
	d.timerGen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *ActivityDetector) silenceExpired(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if gen != d.timerGen || !d.active {
		return
	}
	d.timer = nil
	d.endLocked()
}

func (d *ActivityDetector) endLocked() {
	d.active = false
	if err := d.sink.SignalEnd(); err != nil {
		d.logger.Warn("activity: signal end failed", "error", err)
	}
}
