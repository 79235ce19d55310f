package config

import (
	"fmt"
	"strings"
)

// NetworkPreset tunes input delay and prediction for a kind of link.
type NetworkPreset string

const (
	NetworkLocal NetworkPreset = "local" // Keep the configured values
	NetworkLAN   NetworkPreset = "lan"   // Low latency, short window
	NetworkWAN   NetworkPreset = "wan"   // Internet play
	NetworkLossy NetworkPreset = "lossy" // High jitter, long window
)

// AllPresets returns all available presets.
func AllPresets() []NetworkPreset {
	return []NetworkPreset{NetworkLocal, NetworkLAN, NetworkWAN, NetworkLossy}
}

// String returns the string representation of a preset.
func (p NetworkPreset) String() string {
	return string(p)
}

// DisplayName returns a human-readable name for the preset.
func (p NetworkPreset) DisplayName() string {
	switch p {
	case NetworkLocal:
		return "Local"
	case NetworkLAN:
		return "LAN"
	case NetworkWAN:
		return "WAN"
	case NetworkLossy:
		return "Lossy"
	default:
		return "Unknown"
	}
}

// ParsePreset parses a string into a NetworkPreset.
func ParsePreset(s string) (NetworkPreset, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "local":
		return NetworkLocal, nil
	case "lan":
		return NetworkLAN, nil
	case "wan", "internet":
		return NetworkWAN, nil
	case "lossy":
		return NetworkLossy, nil
	default:
		return NetworkLocal, fmt.Errorf("unknown network preset %q", s)
	}
}

// ApplyPreset modifies the session settings for a preset. The check
// distance is clamped into the new window.
func ApplyPreset(cfg *EngineConfig, preset NetworkPreset) {
	s := &cfg.Session
	switch preset {
	case NetworkLAN:
		s.InputDelay = 1
		s.MaxPredictionWindow = 8
	case NetworkWAN:
		s.InputDelay = 2
		s.MaxPredictionWindow = 12
	case NetworkLossy:
		s.InputDelay = 3
		s.MaxPredictionWindow = 20
	}
	s.CheckDistance = min(s.CheckDistance, s.MaxPredictionWindow)
}
