package ui

import "fmt"

// ANSI SGR codes for the plain-text renderer's color accents. Kept to a
// single accent plus the three status colors — there's no TUI layout to
// theme, just status words in roux stats output.
const (
	ansiGreen  = "32"
	ansiYellow = "33"
	ansiRed    = "31"
	ansiBold   = "1"
)

// style wraps text in an SGR escape when enabled, and is a no-op otherwise.
type style struct {
	code    string
	enabled bool
}

// Render applies the style's color code to s, or returns s unchanged when
// the style is disabled (NO_COLOR, non-TTY output, or --no-color).
func (st style) Render(s string) string {
	if !st.enabled || st.code == "" {
		return s
	}
	return fmt.Sprintf("\x1b[%sm%s\x1b[0m", st.code, s)
}

// Styles holds the handful of accents the plain renderer uses.
type Styles struct {
	Header  style
	Success style
	Warning style
	Error   style
	Dim     style
}

// GetStyles returns color-enabled styles, or all-plain styles when noColor
// is set.
func GetStyles(noColor bool) Styles {
	enabled := !noColor
	return Styles{
		Header:  style{code: ansiBold, enabled: enabled},
		Success: style{code: ansiGreen, enabled: enabled},
		Warning: style{code: ansiYellow, enabled: enabled},
		Error:   style{code: ansiRed, enabled: enabled},
		Dim:     style{enabled: false},
	}
}
