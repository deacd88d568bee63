package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// ============================================================================
// knob-ctl - Command-line IPC Client
// ============================================================================
// Sends one request to knobd over its unix socket and prints the response.
//
// Usage:
//   knob-ctl next
//   knob-ctl press
//   knob-ctl screen energy
//   knob-ctl brightness 50
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/knobd.sock)
// ============================================================================

const (
	defaultSocketPath = "/tmp/knobd.sock"
	requestTimeout    = 3 * time.Second
	origin            = "knob-ctl"
)

// Request payloads (duplicated from knobd for a standalone binary).
type rotateData struct {
	Direction string `json:"direction"`
}

type screenData struct {
	Screen string `json:"screen"`
}

type brightnessData struct {
	Brightness int    `json:"brightness"`
	Origin     string `json:"origin"`
}

type hapticData struct {
	Mode   string `json:"mode"`
	Origin string `json:"origin"`
}

type deviceData struct {
	Command string `json:"command"`
	Origin  string `json:"origin"`
}

type patternData struct {
	Pattern string `json:"pattern"`
}

// envelope is the wire form knobd expects, one per line.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type ipcResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func main() {
	socketPath := defaultSocketPath

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage()
		return
	}

	line, err := buildRequest(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		printUsage()
		os.Exit(1)
	}

	if err := send(socketPath, line); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("ok")
}

// buildRequest turns command-line arguments into one encoded envelope.
func buildRequest(args []string) ([]byte, error) {
	need := func(what string) (string, error) {
		if len(args) < 2 {
			return "", fmt.Errorf("%s requires %s", args[0], what)
		}
		return args[1], nil
	}

	var env envelope
	var payload any

	switch args[0] {
	case "next", "cw":
		env.Type, payload = "rotate", rotateData{Direction: "cw"}
	case "prev", "ccw":
		env.Type, payload = "rotate", rotateData{Direction: "ccw"}
	case "press", "button":
		env.Type = "button"

	case "screen":
		name, err := need("a screen name")
		if err != nil {
			return nil, err
		}
		env.Type, payload = "set_screen", screenData{Screen: name}

	case "brightness":
		v, err := need("a percentage")
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 100 {
			return nil, fmt.Errorf("invalid brightness %q: want 0-100", v)
		}
		env.Type, payload = "set_brightness", brightnessData{Brightness: n, Origin: origin}

	case "haptic":
		mode, err := need("on, off or toggle")
		if err != nil {
			return nil, err
		}
		env.Type, payload = "set_haptic", hapticData{Mode: strings.ToLower(mode), Origin: origin}

	case "play":
		p, err := need("a pattern name")
		if err != nil {
			return nil, err
		}
		env.Type, payload = "play_haptic", patternData{Pattern: p}

	case "status", "reboot", "factory-reset", "wifi-reset":
		cmd := strings.ReplaceAll(args[0], "-", "_")
		env.Type, payload = "device_command", deviceData{Command: cmd, Origin: origin}

	default:
		return nil, fmt.Errorf("unknown command: %s", args[0])
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", env.Type, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

func send(socketPath string, line []byte) error {
	conn, err := net.DialTimeout("unix", socketPath, requestTimeout)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(requestTimeout))

	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	var resp ipcResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Status == "error" {
		return fmt.Errorf("daemon error: %s", resp.Error)
	}
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `knob-ctl - Control knobd via IPC

Usage:
  knob-ctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: /tmp/knobd.sock)

Commands:
  next, cw                  Rotate one step clockwise
  prev, ccw                 Rotate one step counter-clockwise
  press, button             Press the knob button
  screen <name>             Jump to hello|settings|clock|energy|weather|house
  brightness <0-100>        Set display brightness
  haptic <on|off|toggle>    Switch haptic feedback
  play <pattern>            Play a haptic pattern (e.g. success, double_click)
  status                    Publish the device status document
  reboot                    Reboot the device
  factory-reset             Restore default settings
  wifi-reset                Request a Wi-Fi reset
  help, -h, --help          Show this help message

Examples:
  knob-ctl screen energy
  knob-ctl brightness 50
  knob-ctl -socket /run/knobd.sock press
`)
}
