package present

import (
	"github.com/jedib0t/go-pretty/v6/text"
)

type Style int

const (
	StylePlain Style = iota
	StyleSuccess
	StyleWarning
	StyleFailure
	StyleStatus
	StyleMuted
	StyleKey
	StyleValue
)

type styleSpec struct {
	prefix string
	colors text.Colors
}

var styles = map[Style]styleSpec{
	StyleSuccess: {prefix: "SUCCESS: ", colors: text.Colors{text.FgHiGreen}},
	StyleWarning: {prefix: "WARNING: ", colors: text.Colors{text.FgCyan}},
	StyleFailure: {prefix: "FAILED: ", colors: text.Colors{text.FgHiRed}},
	StyleStatus:  {prefix: "STATUS: ", colors: text.Colors{text.FgCyan}},
	StyleMuted:   {colors: text.Colors{text.FgWhite}},
	StyleKey:     {colors: text.Colors{text.FgCyan}},
	StyleValue:   {colors: text.Colors{text.FgHiGreen}},
}

// Format decorates msg with the style's prefix and, when color is set, its
// terminal colors.
func Format(style Style, msg string, color bool) string {
	spec, ok := styles[style]
	if !ok {
		return msg
	}
	msg = spec.prefix + msg
	if !color {
		return msg
	}
	return spec.colors.Sprint(msg)
}
