package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/soocke/bbox-annotator/app"
	"github.com/soocke/bbox-annotator/config"
	"github.com/soocke/bbox-annotator/debug"
	"github.com/soocke/bbox-annotator/ui/picker"
)

type options struct {
	configPath  string
	writeConfig bool
	images      string
	labels      string
	manifests   string
	classes     bool
	startFrom   int
	debug       bool
	pick        bool
	exportKITTI string
	importKITTI string
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.configPath, "config", "annotator.json", "path to the JSON config file")
	flag.BoolVar(&o.writeConfig, "write-config", false, "write the effective config to -config and exit")
	flag.StringVar(&o.images, "images", "", "image directory (overrides config)")
	flag.StringVar(&o.labels, "labels", "", "label directory (overrides config)")
	flag.StringVar(&o.manifests, "manifests", "", "directory of JSON manifests to choose from")
	flag.BoolVar(&o.classes, "classes", false, "annotate classed boxes")
	flag.IntVar(&o.startFrom, "f", 0, "start from this queue index")
	flag.BoolVar(&o.debug, "debug", false, "enable debug logging")
	flag.BoolVar(&o.pick, "pick", false, "always show the set picker")
	flag.StringVar(&o.exportKITTI, "export-kitti", "", "export all labels as KITTI text files into this directory and exit")
	flag.StringVar(&o.importKITTI, "import-kitti", "", "import KITTI text files from this directory and exit")
	flag.Parse()
	return o
}

// apply overlays explicitly set flags onto cfg.
func (o options) apply(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "images":
			cfg.ImageDir = o.images
		case "labels":
			cfg.LabelDir = o.labels
		case "manifests":
			cfg.ManifestDir = o.manifests
		case "classes":
			cfg.UseClasses = o.classes
		case "f":
			cfg.StartFrom = o.startFrom
		case "debug":
			cfg.Debug = o.debug
		}
	})
}

func main() {
	os.Exit(run(parseFlags()))
}

func run(o options) int {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		slog.Error("load config", "path", o.configPath, "error", err)
		return 1
	}
	o.apply(cfg)

	logger := NewLogger(logLevel(cfg.Debug))

	if o.writeConfig {
		if err := cfg.Save(o.configPath); err != nil {
			logger.Error("write config", "path", o.configPath, "error", err)
			return 1
		}
		logger.Info("config written", "path", o.configPath)
		return 0
	}

	c, err := app.BuildContainer(cfg, logger)
	if err != nil {
		logger.Error("invalid config", "error", err)
		return 1
	}

	switch {
	case o.exportKITTI != "":
		return convert(logger, "export", func() (app.ConvertStats, error) { return c.ExportKITTI(o.exportKITTI) })
	case o.importKITTI != "":
		return convert(logger, "import", func() (app.ConvertStats, error) { return c.ImportKITTI(o.importKITTI) })
	}

	items, err := c.BuildQueue(o.pick, tkChooser(c))
	if errors.Is(err, app.ErrNoSelection) {
		logger.Info("nothing selected, exiting")
		return 0
	}
	if err != nil {
		logger.Error("build queue", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Debug {
		debug.StartStatsLogger(ctx, 0, logger)
	}
	if err := c.Run(ctx, items); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("interrupted, unsaved changes discarded")
			return 0
		}
		logger.Error("annotation run failed", "error", err)
		return 1
	}
	return 0
}

func convert(logger *slog.Logger, op string, fn func() (app.ConvertStats, error)) int {
	st, err := fn()
	logger.Info("kitti "+op+" finished", "converted", st.Converted, "failed", st.Failed)
	if err != nil {
		logger.Error("kitti "+op, "error", err)
		return 1
	}
	return 0
}

// tkChooser shows the Tk set picker and reports the user's choice.
func tkChooser(c *app.AppContainer) app.Chooser {
	return func(sets []string, preview func(int) []byte) (string, bool) {
		picker.NewSetPicker(c.Selection, c.Logger).Run("Choose a set", sets, preview)
		return c.Selection.Chosen()
	}
}
