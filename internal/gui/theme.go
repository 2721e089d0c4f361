package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// spdlTheme keeps the default theme with green accents.
type spdlTheme struct{}

var (
	accentGreen = color.NRGBA{R: 0x1D, G: 0xB9, B: 0x54, A: 0xFF}
	failRed     = color.NRGBA{R: 0xE2, G: 0x2B, B: 0x34, A: 0xFF}
	warnAmber   = color.NRGBA{R: 0xF5, G: 0x9B, B: 0x23, A: 0xFF}
)

func (t *spdlTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary, theme.ColorNameSuccess, theme.ColorNameFocus:
		return accentGreen
	case theme.ColorNameError:
		return failRed
	case theme.ColorNameWarning:
		return warnAmber
	default:
		return theme.DefaultTheme().Color(name, variant)
	}
}

func (t *spdlTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *spdlTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *spdlTheme) Size(name fyne.ThemeSizeName) float32 {
	if name == theme.SizeNameHeadingText {
		return 20
	}
	return theme.DefaultTheme().Size(name)
}
