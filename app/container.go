package app

import (
	"fmt"
	"image"
	"log/slog"
	"sort"
	"strings"

	"github.com/soocke/bbox-annotator/config"
	"github.com/soocke/bbox-annotator/domain/annotation"
	"github.com/soocke/bbox-annotator/domain/queue"
	"github.com/soocke/bbox-annotator/domain/session"
	"github.com/soocke/bbox-annotator/ui/model"
	"github.com/soocke/bbox-annotator/ui/presenter"
)

// Container assembles models, the class table and queue layout for a run.
type AppContainer struct {
	Config    *config.Config
	Logger    *slog.Logger
	Classes   *annotation.ClassTable
	Shortcuts map[rune]string
	Layout    queue.Layout
	Progress  *model.ProgressModel
	Selection *model.SelectionModel
}

// BuildContainer validates cfg and constructs the shared components.
func BuildContainer(cfg *config.Config, logger *slog.Logger) (*AppContainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	classes, err := cfg.ClassTable()
	if err != nil {
		return nil, err
	}
	shortcuts, err := cfg.Shortcuts()
	if err != nil {
		return nil, err
	}
	return &AppContainer{
		Config:    cfg,
		Logger:    logger,
		Classes:   classes,
		Shortcuts: shortcuts,
		Layout: queue.Layout{
			ImageDir:    cfg.ImageDir,
			LabelDir:    cfg.LabelDir,
			FilteredDir: cfg.FilteredDir,
			LabelExt:    cfg.LabelExt,
		},
		Progress:  model.NewProgressModel(),
		Selection: &model.SelectionModel{},
	}, nil
}

// MaxDisplay returns the configured display box, shrunk to the screen when
// the screen size is known.
func (c *AppContainer) MaxDisplay() image.Point {
	sw, sh := screenSize()
	return fitToScreen(image.Pt(c.Config.MaxDisplayWidth, c.Config.MaxDisplayHeight), sw, sh)
}

// window chrome allowance
const (
	screenMarginX = 40
	screenMarginY = 80
)

func fitToScreen(maxSize image.Point, sw, sh int) image.Point {
	if sw > screenMarginX && maxSize.X > sw-screenMarginX {
		maxSize.X = sw - screenMarginX
	}
	if sh > screenMarginY && maxSize.Y > sh-screenMarginY {
		maxSize.Y = sh - screenMarginY
	}
	return maxSize
}

// SessionOptions derives the session configuration.
func (c *AppContainer) SessionOptions(maxSize image.Point) session.Options {
	return session.Options{
		MaxSize:    maxSize,
		UseClasses: c.Config.UseClasses,
		Classes:    c.Classes,
		Shortcuts:  c.Shortcuts,
		Reserved:   c.Config.Reserved(),
		MinBoxSize: c.Config.MinBoxSize,
		Style: annotation.Style{
			Classes:      c.Classes,
			DefaultColor: c.Config.DefaultColour.RGBA(),
			Thickness:    c.Config.LineThickness,
		},
	}
}

// NewQueuePresenter wires the run loop around proc.
func (c *AppContainer) NewQueuePresenter(items []queue.Item, proc presenter.ImageProcessor) *presenter.QueuePresenter {
	return presenter.NewQueuePresenter(queue.New(items), proc, c.Progress, c.Logger)
}

// HelpMessage lists the hotkeys and, with classes enabled, the class shortcuts.
func (c *AppContainer) HelpMessage() string {
	var sb strings.Builder
	sb.WriteString("left-drag: draw box; right-click or d: delete box under cursor; ")
	if c.Config.UseClasses {
		sb.WriteString("middle-click: cycle class; ")
	}
	sb.WriteString("n: next; p: previous; s: save even without changes; q: quit")
	if c.Config.UseClasses && len(c.Shortcuts) > 0 {
		keys := make([]string, 0, len(c.Shortcuts))
		for r, name := range c.Shortcuts {
			keys = append(keys, fmt.Sprintf("%c: %s", r, name))
		}
		sort.Strings(keys)
		sb.WriteString("; class shortcuts: ")
		sb.WriteString(strings.Join(keys, ", "))
	}
	return sb.String()
}
