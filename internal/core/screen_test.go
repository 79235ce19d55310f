package core

import (
	"strings"
	"testing"
)

func TestScreenClipping(t *testing.T) {
	s := NewScreen(10, 4)
	if s.Width() != 10 || s.Height() != 4 {
		t.Fatalf("size = %dx%d", s.Width(), s.Height())
	}
	if s.String() != strings.Repeat(strings.Repeat(" ", 10)+"\n", 3)+strings.Repeat(" ", 10) {
		t.Error("new screen is not blank")
	}

	for _, p := range [][2]int{{-1, 0}, {10, 0}, {0, -1}, {0, 4}} {
		s.Set(p[0], p[1], 'X')
		if got := s.Get(p[0], p[1]); got != ' ' {
			t.Errorf("Get(%d, %d) = %q outside the screen", p[0], p[1], got)
		}
	}

	s.DrawText(7, 1, "Hello")
	if got := s.Row(1); got != "       Hel" {
		t.Errorf("clipped text row = %q", got)
	}
	if got := s.Row(9); got != strings.Repeat(" ", 10) {
		t.Errorf("row outside the screen = %q", got)
	}

	s.Clear()
	if strings.TrimSpace(s.String()) != "" {
		t.Error("Clear left content behind")
	}
}

func TestScreenShapes(t *testing.T) {
	tests := []struct {
		name string
		draw func(*Screen)
		want []string
	}{
		{
			name: "rect",
			draw: func(s *Screen) { s.DrawRect(NewRect(1, 1, 3, 2), '#', ColorRed) },
			want: []string{
				"      ",
				" ###  ",
				" ###  ",
				"      ",
			},
		},
		{
			name: "box",
			draw: func(s *Screen) { s.DrawBox(NewRect(0, 0, 5, 4), ColorRed) },
			want: []string{
				"┌───┐ ",
				"│   │ ",
				"│   │ ",
				"└───┘ ",
			},
		},
		{
			name: "tiny box collapses",
			draw: func(s *Screen) { s.DrawBox(NewRect(2, 1, 1, 1), ColorRed) },
			want: []string{
				"      ",
				"  █   ",
				"      ",
				"      ",
			},
		},
		{
			name: "zero radius ellipse is a point",
			draw: func(s *Screen) { s.DrawEllipse(3, 2, 0, 0, 'o', ColorRed) },
			want: []string{
				"      ",
				"      ",
				"   o  ",
				"      ",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewScreen(6, 4)
			tc.draw(s)
			if got, want := s.String(), strings.Join(tc.want, "\n"); got != want {
				t.Errorf("got\n%s\nwant\n%s", got, want)
			}
			for y := range tc.want {
				for x := range s.Width() {
					if s.Get(x, y) != ' ' && s.GetCell(x, y).Color != ColorRed {
						t.Errorf("cell (%d, %d) lost its color", x, y)
					}
				}
			}
		})
	}
}

func TestScreenDrawEllipse(t *testing.T) {
	s := NewScreen(21, 11)
	s.DrawEllipse(10, 5, 6, 3, 'o', ColorCyan)

	// Extremes of both axes lie on the outline.
	for _, p := range [][2]int{{16, 5}, {4, 5}, {10, 2}, {10, 8}} {
		if s.Get(p[0], p[1]) != 'o' {
			t.Errorf("expected outline at (%d, %d), got %q", p[0], p[1], s.Get(p[0], p[1]))
		}
	}
	if s.Get(10, 5) != ' ' {
		t.Error("ellipse outline should not fill the center")
	}
}

func TestScreenResizeKeepsContent(t *testing.T) {
	s := NewScreen(10, 10)
	s.DrawText(0, 0, "Hello")

	for _, size := range [][2]int{{8, 4}, {15, 8}} {
		s.Resize(size[0], size[1])
		if s.Width() != size[0] || s.Height() != size[1] {
			t.Errorf("size = %dx%d, expected %dx%d", s.Width(), s.Height(), size[0], size[1])
		}
		if row := s.Row(0); !strings.HasPrefix(row, "Hello") || len(row) != size[0] {
			t.Errorf("row 0 after resize = %q", row)
		}
	}
}

func TestPlayerColor(t *testing.T) {
	if PlayerColor(-1) != ColorDefault {
		t.Error("scenery should use the default color")
	}
	if PlayerColor(0) == PlayerColor(1) {
		t.Error("first two players share a color")
	}
	if PlayerColor(0) != PlayerColor(6) {
		t.Error("palette should wrap")
	}
}
