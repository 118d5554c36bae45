package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the agentflow ASCII art banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	// Using a subtle gradient-like color scheme (Indigo/Violet)
	lines := []struct {
		text  string
		color string
	}{
		{"                       _    __ _", "#818cf8"},
		{"   __ _  __ _  ___ _ __ | |_ / _| | _____      __", "#a78bfa"},
		{"  / _` |/ _` |/ _ \\ '_ \\| __| |_| |/ _ \\ \\ /\\ / /", "#c084fc"},
		{" | (_| | (_| |  __/ | | | |_|  _| | (_) \\ V  V /", "#e879f9"},
		{"  \\__,_|\\__, |\\___|_| |_|\\__|_| |_|\\___/ \\_/\\_/", "#f472b6"},
		{"        |___/", "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
