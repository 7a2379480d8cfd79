package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Domain != DefaultDomain {
		t.Errorf("domain = %q, want %q", cfg.Domain, DefaultDomain)
	}
	if cfg.WebSocketURL != "wss://"+DefaultDomain+"/ws" {
		t.Errorf("ws url = %q", cfg.WebSocketURL)
	}
	if cfg.STUNServer != DefaultSTUN {
		t.Errorf("stun = %q, want %q", cfg.STUNServer, DefaultSTUN)
	}
	if cfg.GetTURNServers() != nil {
		t.Error("TURN servers configured by default")
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("TFN_DOMAIN", "env.example.com")
	t.Setenv("STUN_SERVER", "stun:env.example.com:3478")

	cfg, err := Load(Options{Domain: "flag.example.com"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Domain != "flag.example.com" {
		t.Errorf("domain = %q, flag should win over env", cfg.Domain)
	}
	if cfg.STUNServer != "stun:env.example.com:3478" {
		t.Errorf("stun = %q, env should win over default", cfg.STUNServer)
	}
}

func TestForceRelayRequiresTURN(t *testing.T) {
	if _, err := Load(Options{ForceRelay: true}); err == nil {
		t.Fatal("force relay without TURN accepted")
	}

	cfg, err := Load(Options{ForceRelay: true, TURNServer: "turn:relay.example.com"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	servers := cfg.GetTURNServers()
	if len(servers) != 3 {
		t.Fatalf("TURN variants = %d, want udp, tcp and turns", len(servers))
	}
	for _, s := range servers {
		if !strings.Contains(s, "relay.example.com") {
			t.Errorf("TURN url %q missing host", s)
		}
	}
}

func TestGetRoomLink(t *testing.T) {
	cfg, err := Load(Options{Domain: "meet.example.com"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	link := cfg.GetRoomLink("brave-otter-nebula")
	if link != "https://meet.example.com/live/brave-otter-nebula" {
		t.Errorf("room link = %q", link)
	}
}

func TestTURNCredentials(t *testing.T) {
	t.Setenv("TURN_USERNAME", "user")
	t.Setenv("TURN_PASSWORD", "pass")

	cfg, err := Load(Options{TURNServer: "turn:relay.example.com"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	user, pass := cfg.GetTURNCredentials()
	if user != "user" || pass != "pass" {
		t.Errorf("credentials = %q/%q", user, pass)
	}
}
