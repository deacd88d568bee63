package haptic

import (
	"log/slog"
	"sync"
)

// Driver plays raw effect sequences. *DRV2605 implements it.
type Driver interface {
	Play(effects []uint8) error
	SetIntensity(percent int) error
}

// DefaultIntensity is the drive strength in percent used until SetIntensity.
const DefaultIntensity = 80

// Player gates pattern playback on the user's haptic setting. A Player without
// a driver accepts every call and plays nothing, so boards without the chip
// behave like boards with haptics switched off.
type Player struct {
	mu        sync.Mutex
	drv       Driver
	enabled   bool
	intensity int
	played    uint64
	logger    *slog.Logger
}

// NewPlayer returns an enabled player. drv may be nil.
func NewPlayer(drv Driver, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{drv: drv, enabled: true, intensity: DefaultIntensity, logger: logger}
}

// Available reports whether a driver is attached.
func (p *Player) Available() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.drv != nil
}

// SetEnabled switches playback on or off.
func (p *Player) SetEnabled(on bool) {
	p.mu.Lock()
	p.enabled = on
	p.mu.Unlock()
}

func (p *Player) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// SetIntensity clamps percent to 0-100 and forwards it to the driver.
func (p *Player) SetIntensity(percent int) error {
	percent = clampPercent(percent)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.intensity = percent
	if p.drv == nil {
		return nil
	}
	return p.drv.SetIntensity(percent)
}

func (p *Player) Intensity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.intensity
}

// Play plays pat when enabled. It reports whether anything was sent to the chip.
func (p *Player) Play(pat Pattern) (bool, error) {
	seq := pat.Sequence()
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.enabled || p.drv == nil || len(seq) == 0 || p.intensity == 0 {
		return false, nil
	}
	if err := p.drv.Play(seq); err != nil {
		p.logger.Warn("haptic playback failed", "pattern", pat.String(), "error", err)
		return false, err
	}
	p.played++
	p.logger.Debug("haptic", "pattern", pat.String(), "effects", seq)
	return true, nil
}

// Played returns the number of patterns sent to the chip.
func (p *Player) Played() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.played
}
