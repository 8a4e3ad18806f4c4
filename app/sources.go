package app

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/soocke/bbox-annotator/domain/queue"
	"github.com/soocke/bbox-annotator/domain/raster"
	"github.com/soocke/bbox-annotator/ui/images"
)

// ErrNoSelection reports that the user left the picker without choosing a set.
var ErrNoSelection = errors.New("no label set selected")

// Chooser picks one of several named sets. preview returns PNG bytes for a
// set index. ok is false when nothing was chosen.
type Chooser func(sets []string, preview func(idx int) []byte) (chosen string, ok bool)

// BuildQueue resolves the configured source into queue items. Manifests take
// precedence over sub-directory sets, which take precedence over a flat image
// directory. The chooser runs when pick is set or several sets exist.
func (c *AppContainer) BuildQueue(pick bool, choose Chooser) ([]queue.Item, error) {
	items, err := c.resolve(pick, choose)
	if err != nil {
		return nil, err
	}
	return queue.Rotate(items, c.Config.StartFrom), nil
}

func (c *AppContainer) resolve(pick bool, choose Chooser) ([]queue.Item, error) {
	if dir := c.Config.ManifestDir; dir != "" {
		names, err := queue.Manifests(dir)
		if err != nil {
			return nil, err
		}
		if len(names) == 0 {
			return nil, errors.New("no manifests in " + dir)
		}
		name, err := c.pickOne(names, pick, choose, func(i int) []byte {
			items, err := queue.FromManifest(c.Layout, filepath.Join(dir, names[i]), c.Config.ManifestImageField)
			if err != nil || len(items) == 0 {
				return nil
			}
			return c.thumbnail(items[0].ImagePath)
		})
		if err != nil {
			return nil, err
		}
		if c.Logger != nil {
			c.Logger.Info("loading manifest", "manifest", name)
		}
		return queue.FromManifest(c.Layout, filepath.Join(dir, name), c.Config.ManifestImageField)
	}

	sets, err := queue.Subdirs(c.Layout)
	if err != nil {
		return nil, err
	}
	flat, err := queue.FromDir(c.Layout)
	if err != nil {
		return nil, err
	}
	if len(sets) == 0 || (len(flat) > 0 && !pick) {
		return flat, nil
	}
	set, err := c.pickOne(sets, pick, choose, func(i int) []byte {
		return c.thumbnail(firstImage(filepath.Join(c.Layout.ImageDir, sets[i])))
	})
	if err != nil {
		return nil, err
	}
	if c.Logger != nil {
		c.Logger.Info("loading image set", "set", set)
	}
	return queue.FromSubdir(c.Layout, set)
}

func (c *AppContainer) pickOne(names []string, pick bool, choose Chooser, preview func(int) []byte) (string, error) {
	if len(names) == 1 && !pick {
		return names[0], nil
	}
	if choose == nil {
		return names[0], nil
	}
	name, ok := choose(names, preview)
	if !ok {
		return "", ErrNoSelection
	}
	return name, nil
}

func (c *AppContainer) thumbnail(path string) []byte {
	if path == "" {
		return nil
	}
	return images.Thumbnail(path, images.ThumbWidth, images.ThumbHeight)
}

func firstImage(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if !e.IsDir() && raster.IsImageFile(e.Name()) {
			return filepath.Join(dir, e.Name())
		}
	}
	return ""
}
