package theme

// Styling for the Tk set picker: a light palette and the semantic widget
// styles the dialog uses.

import (
	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// Palette colors.
const (
	ColorBg      = "#f7f9fb"
	ColorSurface = "#ffffff"
	ColorPrimary = "#2563eb"
	ColorDanger  = "#dc2626"
)

// style names used with Style("start.TButton") etc.
const (
	StyleStartButton = "start.TButton"
	StyleQuitButton  = "quit.TButton"
	StyleTitleLabel  = "title.TLabel"
)

// InitStyles activates the base theme and configures the picker styles.
func InitStyles() {
	_ = ActivateTheme("azure light") // baseline metrics
	App.Configure(Background(ColorBg))

	StyleConfigure(StyleStartButton,
		Background(ColorPrimary),
		Foreground("white"),
		Padding("4p 3p"),
		Borderwidth(1),
		Relief("ridge"),
	)
	StyleConfigure(StyleQuitButton,
		Background(ColorDanger),
		Foreground("white"),
		Padding("4p 3p"),
		Borderwidth(1),
		Relief("ridge"),
	)
	StyleConfigure(StyleTitleLabel,
		Foreground(ColorPrimary),
		Background(ColorSurface),
		Padding("2p 1p"),
	)
}
