package renderer

import (
	"fmt"
	"image/color"
	"strings"

	"golang.org/x/image/colornames"
)

var black = color.RGBA{A: 255}

// parseColor accepts #rgb, #rrggbb, #rrggbbaa, CSS colour names and "none".
// Anything else yields fallback.
func parseColor(s string, fallback color.Color) color.Color {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return fallback
	case "none", "transparent":
		return color.Transparent
	}
	if c, ok := colornames.Map[s]; ok {
		return c
	}
	if !strings.HasPrefix(s, "#") {
		return fallback
	}

	hex := s[1:]
	c := color.RGBA{A: 255}
	var err error
	switch len(hex) {
	case 3:
		_, err = fmt.Sscanf(hex, "%1x%1x%1x", &c.R, &c.G, &c.B)
		c.R, c.G, c.B = c.R*17, c.G*17, c.B*17
	case 6:
		_, err = fmt.Sscanf(hex, "%02x%02x%02x", &c.R, &c.G, &c.B)
	case 8:
		n := color.NRGBA{}
		if _, err := fmt.Sscanf(hex, "%02x%02x%02x%02x", &n.R, &n.G, &n.B, &n.A); err != nil {
			return fallback
		}
		return n
	default:
		return fallback
	}
	if err != nil {
		return fallback
	}
	return c
}
