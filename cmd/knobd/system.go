package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"strings"
)

// hostSystem is the System backed by the local machine.
type hostSystem struct {
	rebootCmd []string
	logger    *slog.Logger
}

func newHostSystem(rebootCmd []string, logger *slog.Logger) *hostSystem {
	return &hostSystem{rebootCmd: rebootCmd, logger: logger}
}

func (h *hostSystem) Info() SystemInfo {
	info := SystemInfo{IP: primaryIPv4()}
	uptime, free, err := readSysinfo()
	if err != nil {
		h.logger.Debug("sysinfo unavailable", "error", err)
		return info
	}
	info.Uptime = uptime
	info.FreeMem = free
	return info
}

// Reboot runs the configured reboot command. With none configured it only logs.
func (h *hostSystem) Reboot(ctx context.Context) error {
	if len(h.rebootCmd) == 0 {
		h.logger.Warn("reboot requested but system.reboot_command is empty; ignoring")
		return nil
	}
	h.logger.Info("rebooting", "command", strings.Join(h.rebootCmd, " "))
	out, err := exec.CommandContext(ctx, h.rebootCmd[0], h.rebootCmd[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("reboot command: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// primaryIPv4 returns the first non-loopback IPv4 address, or "" when offline.
func primaryIPv4() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok || ipn.IP.IsLoopback() {
			continue
		}
		if v4 := ipn.IP.To4(); v4 != nil {
			return v4.String()
		}
	}
	return ""
}
