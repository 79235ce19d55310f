package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/rollback-engine/internal/core"
	"github.com/vovakirdan/rollback-engine/internal/maths"
	"github.com/vovakirdan/rollback-engine/internal/transform"
)

// colorStyles maps core.Color to lipgloss styles.
var colorStyles = map[core.Color]lipgloss.Style{
	core.ColorDefault: lipgloss.NewStyle(),
	core.ColorRed:     lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	core.ColorGreen:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	core.ColorYellow:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	core.ColorBlue:    lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
	core.ColorMagenta: lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
	core.ColorCyan:    lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	core.ColorWhite:   lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
	core.ColorGray:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
}

// RenderScreen converts a Screen buffer to a styled string for display.
// Groups adjacent cells with the same color to minimize ANSI escape sequences.
func RenderScreen(s *core.Screen) string {
	var sb strings.Builder
	// Pre-allocate with extra space for ANSI codes
	sb.Grow(s.Width()*s.Height()*2 + s.Height())

	for y := range s.Height() {
		if y > 0 {
			sb.WriteRune('\n')
		}

		// Group consecutive cells with the same color for efficiency
		x := 0
		for x < s.Width() {
			cell := s.GetCell(x, y)
			startColor := cell.Color

			// Collect consecutive cells with same color
			var run strings.Builder
			for x < s.Width() {
				cell = s.GetCell(x, y)
				if cell.Color != startColor {
					break
				}
				run.WriteRune(cell.Rune)
				x++
			}

			// Apply style to the run
			style, ok := colorStyles[startColor]
			if !ok {
				style = colorStyles[core.ColorDefault]
			}
			sb.WriteString(style.Render(run.String()))
		}
	}
	return sb.String()
}

// FrameView holds what DrawFrame needs besides the frame.
type FrameView struct {
	Title    string
	Viewport core.Viewport
	// Debug draws every collider outline and the state checksum.
	Debug bool
	// Status is an extra line shown under the header, such as a replay
	// verdict.
	Status string
}

// DrawFrame draws a presentation frame. Bodies are drawn from their
// collider outlines; entities without a body are drawn as a glyph.
func DrawFrame(dst *core.Screen, f transform.Frame, v FrameView) {
	dst.Clear()

	owners := make(map[[2]float64]int, len(f.Items))
	for _, it := range f.Items {
		if it.Player >= 0 {
			owners[[2]float64{it.Pose.X, it.Pose.Y}] = it.Player
		}
	}

	bodies := make(map[[2]float64]bool, len(f.Outlines))
	for _, o := range f.Outlines {
		at := [2]float64{o.Center.X.Float64(), o.Center.Y.Float64()}
		bodies[at] = true
		owner, isPlayer := owners[at]
		drawOutline(dst, v.Viewport, o, owner, isPlayer, v.Debug)
	}

	for _, it := range f.Items {
		if bodies[[2]float64{it.Pose.X, it.Pose.Y}] {
			continue
		}
		x, y := v.Viewport.ToScreen(poseVector(it.Pose))
		glyph, c := '*', core.ColorGray
		if it.Player >= 0 {
			glyph, c = rune('1'+it.Player%9), core.PlayerColor(it.Player)
		}
		dst.SetColored(x, y, glyph, c)
	}

	header := fmt.Sprintf(" %s  tick %d  rollbacks %d", v.Title, f.Tick, f.Rollbacks)
	if v.Debug {
		header += fmt.Sprintf("  checksum %016x  bodies %d", f.Checksum, len(f.Outlines))
	}
	dst.DrawText(0, 0, header)
	if v.Status != "" {
		dst.DrawText(0, 1, " "+v.Status)
	}
	footer := " arrows/wasd: move  tab: debug  esc: menu  q: quit"
	dst.DrawText(0, dst.Height()-1, footer)
}

func drawOutline(dst *core.Screen, vp core.Viewport, o transform.Outline, owner int, isPlayer, debug bool) {
	c := core.ColorGray
	switch {
	case isPlayer:
		c = core.PlayerColor(owner)
	case debug && !o.Sleeping:
		c = core.ColorWhite
	}

	switch o.Kind {
	case transform.OutlineBall:
		cx, cy := vp.ToScreen(o.Center)
		rx := max(vp.Cells(o.HalfExtents.X), 0)
		ry := max(int(math.Round(float64(rx)/2)), 0)
		glyph := 'o'
		if debug {
			glyph = '·'
		}
		dst.DrawEllipse(cx, cy, rx, ry, glyph, c)
	case transform.OutlineCuboid:
		r := cellRect(vp, o.Center, o.HalfExtents)
		switch {
		case debug:
			dst.DrawBox(r, c)
		case isPlayer:
			dst.DrawRect(r, '█', c)
		default:
			dst.DrawRect(r, '▒', c)
		}
	}
}

// cellRect returns the cells covered by a box given by center and half
// extents in world units.
func cellRect(vp core.Viewport, center, half maths.Vector2) core.Rect {
	x0, y0 := vp.ToScreen(maths.NewVector2(center.X.Sub(half.X), center.Y.Add(half.Y)))
	x1, y1 := vp.ToScreen(maths.NewVector2(center.X.Add(half.X), center.Y.Sub(half.Y)))
	return core.NewRect(x0, y0, max(x1-x0, 1), max(y1-y0, 1))
}

func poseVector(p transform.Pose) maths.Vector2 {
	x, _ := maths.FromFloat(p.X)
	y, _ := maths.FromFloat(p.Y)
	return maths.NewVector2(x, y)
}

// fitViewport centers the viewport on everything in f and picks a scale
// that fits it on a screen of w by h cells.
func fitViewport(f transform.Frame, w, h int) core.Viewport {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	grow := func(x, y, hx, hy float64) {
		minX, maxX = math.Min(minX, x-hx), math.Max(maxX, x+hx)
		minY, maxY = math.Min(minY, y-hy), math.Max(maxY, y+hy)
	}
	for _, it := range f.Items {
		grow(it.Pose.X, it.Pose.Y, 0, 0)
	}
	for _, o := range f.Outlines {
		grow(o.Center.X.Float64(), o.Center.Y.Float64(), o.HalfExtents.X.Float64(), o.HalfExtents.Y.Float64())
	}
	if math.IsInf(minX, 1) {
		return core.NewViewport(w, h, maths.One)
	}

	// Leave room for the header and footer lines and a margin.
	cols, rows := float64(max(w-4, 1)), float64(max(h-4, 1))
	spanX, spanY := math.Max(maxX-minX, 40), math.Max(maxY-minY, 20)
	upc := math.Max(spanX/cols, spanY/(2*rows))
	scale, err := maths.FromFloat(math.Ceil(upc*4) / 4)
	if err != nil || scale.Sign() <= 0 {
		scale = maths.One
	}
	vp := core.NewViewport(w, h, scale)
	cx, _ := maths.FromFloat((minX + maxX) / 2)
	cy, _ := maths.FromFloat((minY + maxY) / 2)
	vp.Origin = maths.NewVector2(cx, cy)
	return vp
}
