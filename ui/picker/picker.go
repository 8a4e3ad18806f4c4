// Package picker is the Tk dialog that chooses a label set before a run.
package picker

import (
	"log/slog"
	"strconv"

	"github.com/soocke/bbox-annotator/ui/images"
	"github.com/soocke/bbox-annotator/ui/model"
	"github.com/soocke/bbox-annotator/ui/theme"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// SetPicker chooses which label set to annotate.
type SetPicker struct {
	sel    *model.SelectionModel
	logger *slog.Logger

	combo *TComboboxWidget
	thumb *LabelWidget
	photo *Img
}

// NewSetPicker returns a picker that stores the chosen set in sel.
func NewSetPicker(sel *model.SelectionModel, logger *slog.Logger) *SetPicker {
	return &SetPicker{sel: sel, logger: logger}
}

// Run shows the dialog and blocks until Start or Quit. preview returns PNG
// bytes for the set at an index, or nil.
func (p *SetPicker) Run(title string, sets []string, preview func(idx int) []byte) {
	if p == nil || len(sets) == 0 {
		return
	}
	theme.InitStyles()
	App.WmTitle(title)
	WmProtocol(App, "WM_DELETE_WINDOW", p.quit)

	Grid(TLabel(Txt("Select a set to annotate:"), Style(theme.StyleTitleLabel)), Row(0), Column(0), Columnspan(2), Sticky("w"), Padx("0.4m"), Pady("0.3m"))
	p.combo = TCombobox(Values(sets), Width(40))
	Grid(p.combo, Row(1), Column(0), Columnspan(2), Sticky("we"), Padx("0.4m"), Pady("0.3m"))
	p.combo.Current(0)

	p.photo = NewPhoto(Data(placeholderPNG(preview, 0)))
	p.thumb = Label(Image(p.photo), Borderwidth(1), Relief("sunken"))
	Grid(p.thumb, Row(2), Column(0), Columnspan(2), Sticky("we"), Padx("0.4m"), Pady("0.4m"))

	Bind(p.combo, "<<ComboboxSelected>>", Command(func() {
		idx, ok := selectedIndex(p.combo.Current(nil), len(sets))
		if !ok {
			if p.logger != nil {
				p.logger.Error("set selection parse error", "value", p.combo.Current(nil))
			}
			return
		}
		p.showPreview(placeholderPNG(preview, idx))
	}))

	start := TButton(Txt("Start"), Style(theme.StyleStartButton), Command(func() {
		idx, ok := selectedIndex(p.combo.Current(nil), len(sets))
		if !ok {
			return
		}
		p.sel.SetChosen(sets[idx])
		if p.logger != nil {
			p.logger.Info("set selected", "set", sets[idx])
		}
		Destroy(App)
	}))
	Grid(start, Row(3), Column(0), Sticky("we"), Padx("0.4m"), Pady("0.3m"))
	Grid(TButton(Txt("Quit"), Style(theme.StyleQuitButton), Command(p.quit)), Row(3), Column(1), Sticky("we"), Padx("0.4m"), Pady("0.3m"))

	App.Wait()
}

func (p *SetPicker) quit() {
	p.sel.Clear()
	Destroy(App)
}

func (p *SetPicker) showPreview(png []byte) {
	if p.thumb == nil {
		return
	}
	if p.photo != nil {
		p.photo.Delete()
	}
	p.photo = NewPhoto(Data(png))
	p.thumb.Configure(Image(p.photo))
}

// placeholderPNG returns the preview for idx, or a blank tile.
func placeholderPNG(preview func(int) []byte, idx int) []byte {
	if preview != nil {
		if data := preview(idx); len(data) > 0 {
			return data
		}
	}
	return images.Placeholder(images.ThumbWidth, images.ThumbHeight)
}

// selectedIndex parses the combobox index reported by Tk.
func selectedIndex(v string, n int) (int, bool) {
	idx, err := strconv.Atoi(v)
	if err != nil || idx < 0 || idx >= n {
		return 0, false
	}
	return idx, true
}
