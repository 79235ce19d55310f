package core

// Color represents a foreground color for a screen cell.
// Uses ANSI 256-color codes for terminal compatibility.
type Color uint8

// Predefined colors for rendered entities.
const (
	ColorDefault Color = iota
	ColorRed
	ColorGreen
	ColorYellow
	ColorBlue
	ColorMagenta
	ColorCyan
	ColorWhite
	ColorGray
)

// PlayerColor returns the color assigned to a player slot.
func PlayerColor(handle int) Color {
	palette := [...]Color{ColorCyan, ColorMagenta, ColorYellow, ColorGreen, ColorRed, ColorBlue}
	if handle < 0 {
		return ColorDefault
	}
	return palette[handle%len(palette)]
}
