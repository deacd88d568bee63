//go:build !linux

package main

import (
	"errors"
	"net"
	"time"
)

var errUnsupportedPlatform = errors.New("not supported on this platform")

func readSysinfo() (time.Duration, uint64, error) {
	return 0, 0, errUnsupportedPlatform
}

type peerCred struct {
	PID int32
	UID uint32
	GID uint32
}

func peerCredentials(net.Conn) (peerCred, error) {
	return peerCred{}, errUnsupportedPlatform
}
