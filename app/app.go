package app

import (
	"context"
	"fmt"

	"golang.org/x/exp/shiny/driver"
	"golang.org/x/exp/shiny/screen"

	"github.com/soocke/bbox-annotator/domain/queue"
	"github.com/soocke/bbox-annotator/domain/raster"
	"github.com/soocke/bbox-annotator/domain/session"
	"github.com/soocke/bbox-annotator/ui/view"
)

const windowTitle = "BBox Annotator"

// Run opens the editor window and annotates items until the queue is
// exhausted or the user quits. It must be called from the main goroutine.
func (c *AppContainer) Run(ctx context.Context, items []queue.Item) error {
	if len(items) == 0 {
		if c.Logger != nil {
			c.Logger.Info("no images queued", "image_dir", c.Config.ImageDir)
		}
		return nil
	}
	enableDPIAwareness()
	maxSize := c.MaxDisplay()
	if c.Logger != nil {
		c.Logger.Info("annotation controls", "help", c.HelpMessage())
	}

	var runErr error
	driver.Main(func(s screen.Screen) {
		win, err := view.NewCanvasWindow(s, maxSize, windowTitle, c.Logger)
		if err != nil {
			runErr = fmt.Errorf("open window: %w", err)
			return
		}
		runCtx, cancel := context.WithCancel(ctx)
		win.Watch(runCtx)
		defer func() {
			cancel()
			win.Release()
		}()

		sess, err := session.New(c.Logger, c.SessionOptions(maxSize), raster.Loader{}, win, win)
		if err != nil {
			runErr = err
			return
		}
		p := c.NewQueuePresenter(items, sess)
		runErr = p.Run(runCtx)
		p.LogSummary()
	})
	return runErr
}
