package core

import (
	"errors"
	"testing"
)

func TestInputRecordBitLayout(t *testing.T) {
	tests := []struct {
		name     string
		flag     InputRecord
		expected uint8
	}{
		{"up", InputUp, 0b0001},
		{"down", InputDown, 0b0010},
		{"left", InputLeft, 0b0100},
		{"right", InputRight, 0b1000},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if uint8(tc.flag) != tc.expected {
				t.Errorf("%s = %04b, expected %04b", tc.name, tc.flag, tc.expected)
			}
		})
	}
}

func TestInputAdapterRead(t *testing.T) {
	a := NewInputAdapter(DefaultBindings())

	tests := []struct {
		name     string
		keys     []Key
		expected InputRecord
	}{
		{"nothing held", nil, 0},
		{"up", []Key{KeyUp}, InputUp},
		{"down+right", []Key{KeyDown, KeyRight}, InputDown | InputRight},
		{"all", []Key{KeyUp, KeyDown, KeyLeft, KeyRight}, 0b1111},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var ks KeyState
			for _, k := range tc.keys {
				ks.Press(k)
			}
			if got := a.Read(ks); got != tc.expected {
				t.Errorf("Read() = %04b, expected %04b", got, tc.expected)
			}
			// Same sample, same record.
			if again := a.Read(ks); again != tc.expected {
				t.Error("Read is not deterministic")
			}
		})
	}
}

func TestInputAdapterCustomBindings(t *testing.T) {
	// Swapped horizontal keys.
	a := NewInputAdapter(Bindings{Up: KeyUp, Down: KeyDown, Left: KeyRight, Right: KeyLeft})
	var ks KeyState
	ks.Press(KeyLeft)
	if got := a.Read(ks); got != InputRight {
		t.Errorf("Read() = %s, expected right", got)
	}
}

func TestInputRecordAxis(t *testing.T) {
	tests := []struct {
		rec    InputRecord
		ex, ey int32
	}{
		{0, 0, 0},
		{InputUp, 0, 1},
		{InputDown, 0, -1},
		{InputLeft, -1, 0},
		{InputRight | InputUp, 1, 1},
		{InputLeft | InputRight, 0, 0},
	}

	for _, tc := range tests {
		x, y := tc.rec.Axis()
		if x != tc.ex || y != tc.ey {
			t.Errorf("%s.Axis() = (%d, %d), expected (%d, %d)", tc.rec, x, y, tc.ex, tc.ey)
		}
	}
}

func TestInputRecordBinary(t *testing.T) {
	rec := InputDown | InputLeft
	data, err := rec.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}
	if len(data) != 1 {
		t.Fatalf("encoded size = %d, expected 1", len(data))
	}

	var back InputRecord
	if err := back.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}
	if back != rec {
		t.Errorf("got %s, expected %s", back, rec)
	}

	if err := back.UnmarshalBinary([]byte{1, 2}); !errors.Is(err, ErrInputSize) {
		t.Errorf("two-byte decode error = %v, expected ErrInputSize", err)
	}
	if err := back.UnmarshalBinary([]byte{0xF1}); err != nil || back != InputUp {
		t.Errorf("high bits should be dropped, got %04b (%v)", back, err)
	}
}

func TestInputRecordString(t *testing.T) {
	if got := (InputUp | InputRight).String(); got != "up+right" {
		t.Errorf("String() = %q", got)
	}
	if got := InputRecord(0).String(); got != "none" {
		t.Errorf("String() = %q", got)
	}
}

func TestRuntimeConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*RuntimeConfig)
	}{
		{"zero tick rate", func(c *RuntimeConfig) { c.TickRate = 0 }},
		{"no players", func(c *RuntimeConfig) { c.Players = 0 }},
		{"zero window", func(c *RuntimeConfig) { c.MaxPredictionWindow = 0 }},
		{"negative delay", func(c *RuntimeConfig) { c.InputDelay = -1 }},
		{"check distance beyond window", func(c *RuntimeConfig) { c.CheckDistance = c.MaxPredictionWindow + 1 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
