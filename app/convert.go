package app

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/soocke/bbox-annotator/domain/annotation"
)

const kittiExt = ".txt"

// ConvertStats counts converted and failed label files.
type ConvertStats struct {
	Converted int
	Failed    int
}

// ExportKITTI writes a KITTI text file under outDir for every label below
// the configured label directory, mirroring sub-directories.
func (c *AppContainer) ExportKITTI(outDir string) (ConvertStats, error) {
	var st ConvertStats
	err := walkFiles(c.Config.LabelDir, c.Config.LabelExt, func(path, rel string) {
		a, err := annotation.Load(path, c.Classes)
		if err == nil {
			var buf bytes.Buffer
			if err = annotation.EncodeKITTI(&buf, a, c.Classes); err == nil {
				err = writeFile(filepath.Join(outDir, swapExt(rel, kittiExt)), buf.Bytes())
			}
		}
		c.tally(&st, "export kitti", path, err)
	})
	return st, err
}

// ImportKITTI converts every KITTI text file below srcDir into a label in the
// configured label directory.
func (c *AppContainer) ImportKITTI(srcDir string) (ConvertStats, error) {
	var st ConvertStats
	err := walkFiles(srcDir, kittiExt, func(path, rel string) {
		f, err := os.Open(path)
		if err != nil {
			c.tally(&st, "import kitti", path, err)
			return
		}
		a, err := annotation.DecodeKITTI(f, c.Classes)
		f.Close()
		if err == nil {
			err = annotation.Save(filepath.Join(c.Config.LabelDir, swapExt(rel, c.Config.LabelExt)), a)
		}
		c.tally(&st, "import kitti", path, err)
	})
	return st, err
}

func (c *AppContainer) tally(st *ConvertStats, op, path string, err error) {
	if err != nil {
		st.Failed++
		if c.Logger != nil {
			c.Logger.Error(op+" failed", "path", path, "error", err)
		}
		return
	}
	st.Converted++
	if c.Logger != nil {
		c.Logger.Debug(op, "path", path)
	}
}

// walkFiles calls fn for every regular file below root whose name ends in ext.
func walkFiles(root, ext string, fn func(path, rel string)) error {
	if _, err := os.Stat(root); err != nil {
		return fmt.Errorf("open %s: %w", root, err)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ext) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		fn(path, rel)
		return nil
	})
}

func swapExt(rel, ext string) string {
	return strings.TrimSuffix(rel, filepath.Ext(rel)) + ext
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
