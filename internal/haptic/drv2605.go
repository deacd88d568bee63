package haptic

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Addr is the fixed I2C address of the DRV2605.
const Addr uint16 = 0x5A

// Registers.
const (
	regStatus       = 0x00
	regMode         = 0x01
	regRTPInput     = 0x02
	regLibrary      = 0x03
	regWaveSeq1     = 0x04
	regGo           = 0x0C
	regOverdrive    = 0x0D
	regSustainPos   = 0x0E
	regSustainNeg   = 0x0F
	regBrake        = 0x10
	regRatedVoltage = 0x16
)

const (
	modeInternalTrigger = 0x00
	libraryERM          = 0x01

	// ratedVoltageMax is the rated-voltage register value used at 100% intensity.
	ratedVoltageMax = 0x90
)

// ErrNotFound is returned when the chip does not answer on the bus.
var ErrNotFound = errors.New("haptic: DRV2605 not found")

// DRV2605 is a DRV2605 haptic controller in internal-trigger mode.
type DRV2605 struct {
	mu     sync.Mutex
	dev    *i2c.Dev
	closer i2c.BusCloser
}

// Open initializes the periph host drivers, opens busName ("" for the first
// available bus) and configures the chip.
func Open(busName string) (*DRV2605, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}
	d, err := NewDRV2605(bus)
	if err != nil {
		bus.Close()
		return nil, err
	}
	d.closer = bus
	return d, nil
}

// NewDRV2605 checks for and configures a DRV2605 on bus.
func NewDRV2605(bus i2c.Bus) (*DRV2605, error) {
	d := &DRV2605{dev: &i2c.Dev{Bus: bus, Addr: Addr}}

	status := make([]byte, 1)
	if err := d.dev.Tx([]byte{regStatus}, status); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if status[0] == 0xFF {
		return nil, ErrNotFound
	}

	setup := [][2]byte{
		{regMode, modeInternalTrigger}, // out of standby
		{regRTPInput, 0x00},
		{regLibrary, libraryERM},
		{regOverdrive, 0x00},
		{regSustainPos, 0x00},
		{regSustainNeg, 0x00},
		{regBrake, 0x00},
	}
	for _, rv := range setup {
		if err := d.write(rv[0], rv[1]); err != nil {
			return nil, fmt.Errorf("configure DRV2605 register 0x%02X: %w", rv[0], err)
		}
	}
	return d, nil
}

func (d *DRV2605) write(reg, value byte) error {
	return d.dev.Tx([]byte{reg, value}, nil)
}

// Play loads up to eight effects into the waveform sequencer and fires GO.
func (d *DRV2605) Play(effects []uint8) error {
	if len(effects) == 0 {
		return nil
	}
	if len(effects) > maxSequence {
		effects = effects[:maxSequence]
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Sequencer slots auto-increment from WAVESEQ1; a zero terminates the sequence.
	w := make([]byte, 0, 2+len(effects))
	w = append(w, regWaveSeq1)
	w = append(w, effects...)
	if len(effects) < maxSequence {
		w = append(w, 0)
	}
	if err := d.dev.Tx(w, nil); err != nil {
		return fmt.Errorf("load waveform sequence: %w", err)
	}
	if err := d.write(regGo, 0x01); err != nil {
		return fmt.Errorf("trigger playback: %w", err)
	}
	return nil
}

// SetIntensity scales the rated drive voltage to percent (0-100).
func (d *DRV2605) SetIntensity(percent int) error {
	percent = clampPercent(percent)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.write(regRatedVoltage, byte(percent*ratedVoltageMax/100))
}

// Close puts the chip in standby and releases the bus when Open created it.
func (d *DRV2605) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.write(regMode, 0x40)
	if d.closer != nil {
		if cerr := d.closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
