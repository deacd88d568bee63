package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// startTestIPC serves a socket under a short temp dir; unix socket paths are
// limited to ~108 bytes, which t.TempDir() can exceed.
func startTestIPC(t *testing.T, events chan Event) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "knobd")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	sock := filepath.Join(dir, "ipc.sock")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- runIPCServer(ctx, sock, events, quietLogger()) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("runIPCServer: %v", err)
			}
		case <-time.After(time.Second):
			t.Errorf("IPC server did not stop")
		}
	})

	waitUntil(t, time.Second, func() bool {
		_, err := os.Stat(sock)
		return err == nil
	}, "IPC socket not created")
	return sock
}

func TestIPC_SendEventDelivers(t *testing.T) {
	events := make(chan Event, 4)
	sock := startTestIPC(t, events)

	if err := SendIPCEvent(sock, SetScreen{Screen: "energy"}, time.Second); err != nil {
		t.Fatalf("SendIPCEvent: %v", err)
	}
	select {
	case ev := <-events:
		if ev != (SetScreen{Screen: "energy"}) {
			t.Fatalf("unexpected event %#v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("event not delivered")
	}

	fi, err := os.Stat(sock)
	if err != nil {
		t.Fatal(err)
	}
	if perm := fi.Mode().Perm(); perm != 0o660 {
		t.Fatalf("expected socket mode 0660, got %o", perm)
	}
}

func TestIPC_InvalidLineGetsErrorResponse(t *testing.T) {
	events := make(chan Event, 4)
	sock := startTestIPC(t, events)

	err := SendIPCLine(sock, []byte(`{"type":"volume_up"}`), time.Second)
	if err == nil || !strings.Contains(err.Error(), "unknown event type") {
		t.Fatalf("expected unknown event type error, got %v", err)
	}
	err = SendIPCLine(sock, []byte(`{oops`), time.Second)
	if err == nil || !strings.Contains(err.Error(), "parse event") {
		t.Fatalf("expected parse error, got %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("invalid lines must not produce events")
	}
}

func TestIPC_FullQueueIsReported(t *testing.T) {
	events := make(chan Event, 1)
	events <- PressButton{}
	sock := startTestIPC(t, events)

	err := SendIPCEvent(sock, PressButton{}, time.Second)
	if err == nil || !strings.Contains(err.Error(), "event queue full") {
		t.Fatalf("expected queue full error, got %v", err)
	}
}

func TestIPC_SocketRemovedOnShutdown(t *testing.T) {
	dir, err := os.MkdirTemp("", "knobd")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	sock := filepath.Join(dir, "ipc.sock")

	// A stale file at the path is replaced.
	if err := os.WriteFile(sock, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- runIPCServer(ctx, sock, make(chan Event, 1), quietLogger()) }()

	waitUntil(t, time.Second, func() bool {
		fi, err := os.Stat(sock)
		return err == nil && fi.Mode()&os.ModeSocket != 0
	}, "IPC socket not created")

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("runIPCServer: %v", err)
	}
	if _, err := os.Stat(sock); !os.IsNotExist(err) {
		t.Fatalf("expected socket removed, stat err=%v", err)
	}
}
