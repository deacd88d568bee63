//go:build linux

package main

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// readSysinfo returns system uptime and free RAM.
func readSysinfo() (time.Duration, uint64, error) {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return 0, 0, fmt.Errorf("sysinfo: %w", err)
	}
	uptime := time.Duration(int64(si.Uptime)) * time.Second
	free := uint64(si.Freeram) * uint64(si.Unit)
	return uptime, free, nil
}

// peerCred identifies the process on the other end of a unix socket.
type peerCred struct {
	PID int32
	UID uint32
	GID uint32
}

// peerCredentials reads SO_PEERCRED from a unix socket connection.
func peerCredentials(conn net.Conn) (peerCred, error) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return peerCred{}, fmt.Errorf("not a unix connection: %T", conn)
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return peerCred{}, err
	}

	var cred *unix.Ucred
	var credErr error
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return peerCred{}, err
	}
	if credErr != nil {
		return peerCred{}, fmt.Errorf("SO_PEERCRED: %w", credErr)
	}
	return peerCred{PID: cred.Pid, UID: cred.Uid, GID: cred.Gid}, nil
}
