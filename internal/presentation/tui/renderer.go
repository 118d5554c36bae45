package tui

import (
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// Renderer transforms markdown before it is written out.
type Renderer func(string) (string, error)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() Renderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return Plain
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// Plain returns the markdown unchanged.
func Plain(markdown string) (string, error) {
	return markdown, nil
}

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// RendererFor picks glamour for terminals and plain markdown otherwise.
func RendererFor(f *os.File) Renderer {
	if IsInteractive(f) {
		return NewRenderer()
	}
	return Plain
}
