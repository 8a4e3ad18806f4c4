package presenter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/soocke/bbox-annotator/domain/queue"
	"github.com/soocke/bbox-annotator/domain/raster"
	"github.com/soocke/bbox-annotator/domain/session"
	"github.com/soocke/bbox-annotator/ui/model"
)

// ImageProcessor narrows what the presenter needs from the annotation session.
type ImageProcessor interface {
	ProcessImage(ctx context.Context, item queue.Item) (session.Signal, error)
	Dirty() bool
	Saved() bool
}

// QueuePresenter walks the image queue, hands each item to the session and
// moves the cursor by the returned signal.
type QueuePresenter struct {
	queue    *queue.Queue
	proc     ImageProcessor
	progress *model.ProgressModel
	logger   *slog.Logger
	now      func() time.Time
	// CopyFile copies a saved image into the filtered set. Defaults to copyFile.
	CopyFile func(src, dst string) error
}

// NewQueuePresenter returns a presenter over q.
func NewQueuePresenter(q *queue.Queue, proc ImageProcessor, progress *model.ProgressModel, logger *slog.Logger) *QueuePresenter {
	return &QueuePresenter{queue: q, proc: proc, progress: progress, logger: logger, now: time.Now, CopyFile: copyFile}
}

// Run processes items until the queue is exhausted or a quit signal arrives.
// Unreadable images are logged and skipped forward.
func (p *QueuePresenter) Run(ctx context.Context) error {
	if p == nil || p.queue == nil || p.proc == nil {
		return nil
	}
	for !p.queue.Done() {
		item, _ := p.queue.Current()
		p.logItem(item)

		p.progress.OnTick(true, p.now())
		sig, err := p.proc.ProcessImage(ctx, item)
		p.progress.OnTick(false, p.now())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !errors.Is(err, raster.ErrMissingResource) {
				p.progress.Record(model.OutcomeFailed)
				return fmt.Errorf("process %s: %w", item.ID, err)
			}
			if p.logger != nil {
				p.logger.Error("skipping unreadable image", "image", item.ImagePath, "error", err)
			}
			p.progress.Record(model.OutcomeFailed)
			p.queue.Next()
			continue
		}
		if p.proc.Saved() {
			p.progress.Record(model.OutcomeSaved)
		} else {
			p.progress.Record(model.OutcomeUnchanged)
		}
		if p.proc.Dirty() || sig == session.SignalSave {
			p.copyFiltered(item)
		}

		switch sig {
		case session.SignalQuit:
			return nil
		case session.SignalPrev:
			p.queue.Prev()
		default:
			p.queue.Next()
		}
	}
	if p.logger != nil {
		p.logger.Info("queue exhausted", "images", p.queue.Len())
	}
	return nil
}

// LogSummary writes the run counters.
func (p *QueuePresenter) LogSummary() {
	if p == nil || p.logger == nil {
		return
	}
	s := p.progress.Values()
	p.logger.Info("annotation run finished",
		"visited", s.Visited, "saved", s.Saved, "unchanged", s.Unchanged, "failed", s.Failed,
		"editing_time", s.Total.Round(time.Second).String())
}

func (p *QueuePresenter) logItem(item queue.Item) {
	if p.logger == nil {
		return
	}
	p.logger.Info("loading image", "image", item.ID,
		"position", fmt.Sprintf("#%d of %d in queue", p.queue.Index()+1, p.queue.Len()))
	if item.Record == nil {
		return
	}
	attrs := []any{}
	for _, k := range []string{"questionId", "question_types", "question"} {
		if v, ok := item.Record[k]; ok {
			attrs = append(attrs, k, v)
		}
	}
	if answers, ok := item.Record["answers"].([]any); ok {
		parts := make([]string, 0, len(answers))
		for _, a := range answers {
			parts = append(parts, fmt.Sprint(a))
		}
		attrs = append(attrs, "answers", strings.Join(parts, "; "))
	}
	if len(attrs) > 0 {
		p.logger.Info("record", attrs...)
	}
}

// copyFiltered mirrors the image into the filtered set once its label exists.
func (p *QueuePresenter) copyFiltered(item queue.Item) {
	if item.FilteredPath == "" || p.CopyFile == nil {
		return
	}
	if _, err := os.Stat(item.LabelPath); err != nil {
		return
	}
	if p.logger != nil {
		p.logger.Info("copying filtered image", "from", item.ImagePath, "to", item.FilteredPath)
	}
	if err := p.CopyFile(item.ImagePath, item.FilteredPath); err != nil && p.logger != nil {
		p.logger.Error("filtered copy failed", "image", item.ImagePath, "error", err)
	}
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
