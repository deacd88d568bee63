//go:build !linux

package rotary

import (
	"errors"
	"log/slog"
)

// CdevSource is only available on Linux.
type CdevSource struct{ Source }

// OpenCdev reports that GPIO character devices are unsupported on this platform.
func OpenCdev(chipName string, cfg Config, logger *slog.Logger) (*CdevSource, error) {
	return nil, errors.New("rotary: gpio character device requires linux")
}
