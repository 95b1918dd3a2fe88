// Package config holds the typed tuning parameters a Session is built from.
//
// Credential/secret loading is an external collaborator of this module (the
// application embedding it owns authentication), so this package only
// covers the session/pipeline parameters the core actually consumes: encoder
// selection, bitrates, framerate, and gamepad/display defaults.
package config

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Config holds the tunable parameters for one streaming session.
type Config struct {
	Video     VideoConfig
	Audio     AudioConfig
	Gamepad   GamepadConfig
	Display   DisplayConfig
}

// VideoConfig controls the video pipeline and encoder profile.
type VideoConfig struct {
	Encoder             string // profile name, e.g. "x264", "nvh264", "vah264"
	BitrateKbps         int
	FramerateFPS         int
	KeyframeDistanceSec float64 // -1 means infinite GOP
	PacketLossPercent   int
}

// AudioConfig controls the audio pipeline.
type AudioConfig struct {
	BitrateKbps int
}

// GamepadConfig controls virtual gamepad defaults.
type GamepadConfig struct {
	SocketDir  string
	MaxPads    int
}

// DisplayConfig controls the resizer and cursor defaults.
type DisplayConfig struct {
	Screen           string
	CursorSize       int
	CursorScale      float64
}

// Default returns a Config populated with the defaults the original
// implementation ships with.
func Default() *Config {
	return &Config{
		Video: VideoConfig{
			Encoder:             "x264",
			BitrateKbps:         4000,
			FramerateFPS:        30,
			KeyframeDistanceSec: -1,
			PacketLossPercent:   0,
		},
		Audio: AudioConfig{
			BitrateKbps: 128,
		},
		Gamepad: GamepadConfig{
			SocketDir: "/tmp/selkies-gamepad",
			MaxPads:   4,
		},
		Display: DisplayConfig{
			Screen:      "screen",
			CursorSize:  32,
			CursorScale: 1.0,
		},
	}
}

// Load reads configuration from a line-oriented key=value file, the same
// format and decoding rules (trim, skip blanks/comments, URL-unescape
// values) the rest of this project's ambient config loading uses.
func Load(envPath string) (*Config, error) {
	file, err := os.Open(envPath)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		decodedValue, err := url.QueryUnescape(value)
		if err != nil {
			decodedValue = value
		}

		if err := cfg.set(key, decodedValue); err != nil {
			return nil, fmt.Errorf("config line %q: %w", key, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) set(key, value string) error {
	switch key {
	case "video_encoder":
		c.Video.Encoder = value
	case "video_bitrate_kbps":
		return setInt(&c.Video.BitrateKbps, value)
	case "video_framerate":
		return setInt(&c.Video.FramerateFPS, value)
	case "video_packetloss_percent":
		return setInt(&c.Video.PacketLossPercent, value)
	case "audio_bitrate_kbps":
		return setInt(&c.Audio.BitrateKbps, value)
	case "gamepad_socket_dir":
		c.Gamepad.SocketDir = value
	case "gamepad_max_pads":
		return setInt(&c.Gamepad.MaxPads, value)
	case "display_screen":
		c.Display.Screen = value
	default:
		// Unknown keys are ignored; this file format is shared with
		// deployment tooling that may carry extra settings this core
		// does not consume.
	}
	return nil
}

func setInt(dst *int, value string) error {
	var v int
	if _, err := fmt.Sscanf(value, "%d", &v); err != nil {
		return fmt.Errorf("invalid integer %q: %w", value, err)
	}
	*dst = v
	return nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Video.Encoder == "" {
		return fmt.Errorf("missing video_encoder")
	}
	if c.Video.BitrateKbps <= 0 {
		return fmt.Errorf("video_bitrate_kbps must be positive")
	}
	if c.Video.FramerateFPS <= 0 {
		return fmt.Errorf("video_framerate must be positive")
	}
	if c.Audio.BitrateKbps <= 0 {
		return fmt.Errorf("audio_bitrate_kbps must be positive")
	}
	if c.Gamepad.MaxPads < 0 || c.Gamepad.MaxPads > 4 {
		return fmt.Errorf("gamepad_max_pads must be between 0 and 4")
	}
	return nil
}
