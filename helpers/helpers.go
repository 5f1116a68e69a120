package helpers

import (
	"fmt"
	"image/color"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/mdp/qrterminal/v3"
	"github.com/muesli/gamut"
)

// ShortenAddr shortens an Ethereum address for display
func ShortenAddr(addr string) string {
	if len(addr) < 10 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

// FormatWaveTime formats a wave timestamp the way the list shows it
func FormatWaveTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Local().Format("Mon Jan 02 2006 15:04:05 MST")
}

// Hyperlink wraps text in an OSC 8 terminal hyperlink to url
func Hyperlink(url, text string) string {
	if url == "" {
		return text
	}
	return fmt.Sprintf("\x1b]8;;%s\x1b\\%s\x1b]8;;\x1b\\", url, text)
}

// GenerateQRCode renders text as a half-block QR code for the terminal
func GenerateQRCode(text string) string {
	var sb strings.Builder
	qrterminal.GenerateHalfBlock(text, qrterminal.L, &sb)
	return sb.String()
}

// FadeString creates a gradient colored string
func FadeString(s string, firstColor string, lastColor string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return ""
	}
	blends := gamut.Blends(lipgloss.Color(firstColor), lipgloss.Color(lastColor), len(runes))
	return rainbow(lipgloss.NewStyle(), runes, blends)
}

func rainbow(baseStyle lipgloss.Style, runes []rune, colors []color.Color) string {
	var sb strings.Builder
	for i, c := range runes {
		col, _ := colorful.MakeColor(colors[i%len(colors)])
		sb.WriteString(baseStyle.Foreground(lipgloss.Color(col.Hex())).Render(string(c)))
	}
	return sb.String()
}

// Plural formats a count with a noun, adding "s" unless n is 1
func Plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// Max returns the maximum of two integers
func Max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Min returns the minimum of two integers
func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
