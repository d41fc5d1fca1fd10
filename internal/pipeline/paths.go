package pipeline

import (
	"os"
	"path/filepath"

	"github.com/keagan/previewcut/internal/clips"
	"github.com/keagan/previewcut/internal/config"
	"github.com/keagan/previewcut/internal/preview"
	"github.com/keagan/previewcut/internal/sheet"
	"github.com/keagan/previewcut/pkg/util"
)

const blackBarsSuffix = "_black_bars"

// Paths locates everything a run reads and writes
type Paths struct {
	Source string
	Base   string
	OutDir string
	// Scratch is empty until NewScratch creates a directory for this run
	Scratch string

	Preview       map[clips.Format]string
	Sheet         map[clips.Format]string
	SheetOriginal string
	Skipped       []string
}

// Resolve computes the artifact paths for source. Targets that already exist
// are moved to Skipped unless overwrite is set.
func Resolve(cfg *config.Config, source string) Paths {
	base := util.Stem(source)
	if cfg.Preview.BlackBars {
		base += blackBarsSuffix
	}

	outDir := cfg.OutputDir
	if outDir == "" {
		outDir = filepath.Dir(source)
	}

	p := Paths{
		Source:  source,
		Base:    base,
		OutDir:  outDir,
		Preview: make(map[clips.Format]string),
		Sheet:   make(map[clips.Format]string),
	}

	for _, f := range cfg.PreviewFormats() {
		if target, ok := p.want(cfg, preview.FileName(base, f)); ok {
			p.Preview[f] = target
		}
	}
	for _, f := range cfg.SheetFormats() {
		if target, ok := p.want(cfg, sheet.FileName(base, f)); ok {
			p.Sheet[f] = target
		}
	}

	// the original render only exists as a by-product of a sheet render
	if cfg.Preview.KeepSheetOriginal && len(p.Sheet) > 0 {
		if target, ok := p.want(cfg, sheet.OriginalFileName(base)); ok {
			p.SheetOriginal = target
		}
	}

	return p
}

func (p *Paths) want(cfg *config.Config, name string) (string, bool) {
	target := filepath.Join(p.OutDir, name)
	if !cfg.Overwrite && util.FileExists(target) {
		p.Skipped = append(p.Skipped, target)
		return "", false
	}
	return target, true
}

// Empty reports whether there is nothing left to build
func (p Paths) Empty() bool {
	return len(p.Preview) == 0 && len(p.Sheet) == 0 && p.SheetOriginal == ""
}

// NewScratch creates a scratch directory no other run shares
func (p *Paths) NewScratch() error {
	if err := util.EnsureDir(p.OutDir); err != nil {
		return err
	}
	dir, err := os.MkdirTemp(p.OutDir, p.Base+"-temp-")
	if err != nil {
		return err
	}
	p.Scratch = dir
	return nil
}

// targetKey identifies the set of artifact paths a source writes to. Two
// sources with the same key would overwrite each other.
func targetKey(cfg *config.Config, source string) string {
	p := Resolve(cfg, source)
	dir, err := filepath.Abs(p.OutDir)
	if err != nil {
		dir = filepath.Clean(p.OutDir)
	}
	return filepath.Join(dir, p.Base)
}
