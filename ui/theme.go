package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// widgetTheme scales the default theme to the configured font size and
// keeps the message log readable when entries are disabled during a send
type widgetTheme struct {
	fontSize float32
	base     fyne.Theme
}

func newWidgetTheme(fontSize int) fyne.Theme {
	if fontSize <= 0 {
		fontSize = 13
	}
	return &widgetTheme{
		fontSize: float32(fontSize),
		base:     theme.DefaultTheme(),
	}
}

func (t *widgetTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	// Disabled text stays at full contrast so the log does not grey out
	// while the send control is locked
	if name == theme.ColorNameDisabled {
		return t.base.Color(theme.ColorNameForeground, variant)
	}
	return t.base.Color(name, variant)
}

func (t *widgetTheme) Font(style fyne.TextStyle) fyne.Resource {
	return t.base.Font(style)
}

func (t *widgetTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return t.base.Icon(name)
}

func (t *widgetTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNameText:
		return t.fontSize
	case theme.SizeNameHeadingText:
		return t.fontSize * 1.5
	case theme.SizeNameSubHeadingText:
		return t.fontSize * 1.2
	case theme.SizeNameCaptionText:
		return t.fontSize * 0.85
	default:
		return t.base.Size(name)
	}
}
