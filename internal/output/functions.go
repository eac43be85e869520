package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// ProgressBar renders a fraction in [0,1] as a fixed-width bar.
func ProgressBar(fraction float64, width int) string {
	if width <= 0 {
		width = 30
	}
	fraction = max(0, min(fraction, 1))
	filled := max(0, min(int(fraction*float64(width)), width))
	bar := StyleSymbols["bullet"]
	bar += strings.Repeat(StyleSymbols["hline"], filled)
	if filled < width {
		bar += strings.Repeat(" ", width-filled)
	}
	bar += StyleSymbols["bullet"]
	return fmt.Sprintf("%s %.1f%%", bar, fraction*100)
}

// terminalWidth reports the width of w when it is a terminal.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 80
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return 80 // Default fallback width
	}
	return width
}

// IsTerminal reports whether w is attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func wrapText(text string, maxWidth int) []string {
	if maxWidth <= 10 {
		maxWidth = 80
	}
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		if utf8.RuneCountInString(paragraph) <= maxWidth {
			lines = append(lines, paragraph)
			continue
		}
		currentLine := ""
		currentWidth := 0
		for _, word := range strings.Fields(paragraph) {
			wordWidth := utf8.RuneCountInString(word)
			if currentWidth > 0 && currentWidth+1+wordWidth > maxWidth {
				lines = append(lines, currentLine)
				currentLine, currentWidth = "", 0
			}
			if currentWidth > 0 {
				currentLine += " "
				currentWidth++
			}
			currentLine += word
			currentWidth += wordWidth
		}
		if currentLine != "" {
			lines = append(lines, currentLine)
		}
	}
	return lines
}
