package config

import (
	"fmt"
	"os"
)

// Default configuration values (production).
const (
	DefaultDomain = "meet.tfn.network"
	DefaultSTUN   = "stun:stun.l.google.com:19302"
	DefaultTURN   = "" // optional, disabled by default
)

// Config holds conference client configuration.
type Config struct {
	// Domain is the coordinator server domain.
	Domain string

	// WebSocketURL is constructed from the domain.
	WebSocketURL string

	// ICE servers for WebRTC.
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// ForceRelay restricts ICE to TURN relay candidates.
	ForceRelay bool

	// ReconnectAttempts bounds the signaling reconnect loop; zero
	// disables reconnection entirely.
	ReconnectAttempts int
}

// Options for loading config with CLI flag overrides.
type Options struct {
	Domain            string
	STUNServer        string
	TURNServer        string
	TURNUser          string
	TURNPass          string
	ForceRelay        bool
	ReconnectAttempts int
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := firstNonEmpty(opts.Domain, os.Getenv("TFN_DOMAIN"), DefaultDomain)
	stun := firstNonEmpty(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN)
	turn := firstNonEmpty(opts.TURNServer, os.Getenv("TURN_SERVER"), DefaultTURN)
	turnUser := firstNonEmpty(opts.TURNUser, os.Getenv("TURN_USERNAME"))
	turnPass := firstNonEmpty(opts.TURNPass, os.Getenv("TURN_PASSWORD"))

	cfg := &Config{
		Domain:            domain,
		WebSocketURL:      fmt.Sprintf("wss://%s/ws", domain),
		STUNServer:        stun,
		TURNServer:        turn,
		TURNUser:          turnUser,
		TURNPass:          turnPass,
		ForceRelay:        opts.ForceRelay,
		ReconnectAttempts: opts.ReconnectAttempts,
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// GetRoomLink returns the webapp URL for a room ID.
func (c *Config) GetRoomLink(roomID string) string {
	return fmt.Sprintf("https://%s/live/%s", c.Domain, roomID)
}

// GetSTUNServers returns STUN server URLs as strings.
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured.
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
		fmt.Sprintf("turns:%s:5349?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password.
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
