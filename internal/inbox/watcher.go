package inbox

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/plantcare/internal/checksum"
	"github.com/starford/plantcare/internal/models"
	"github.com/starford/plantcare/internal/storage"
)

// Run sweeps the inbox once, then watches it for new images until ctx is
// cancelled. A file is processed after it has seen no writes for the
// settle period.
func (in *Inbox) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := in.store.Root()
	if err := addDirs(w, root); err != nil {
		return err
	}
	slog.Info("inbox: watching", slog.String("root", root), slog.Duration("settle", in.settle))

	if err := in.Sweep(ctx); err != nil && ctx.Err() == nil {
		slog.Warn("inbox: startup sweep", slog.String("error", err.Error()))
	}

	pending := make(map[string]struct{})
	settleTimer := time.NewTimer(in.settle)
	settleTimer.Stop()
	defer settleTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("inbox: stopped")
			return nil

		case <-settleTimer.C:
			for abs := range pending {
				delete(pending, abs)
				in.processPath(ctx, root, abs)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			abs := ev.Name
			if hidden(root, abs) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(abs); statErr == nil && info.IsDir() {
					if addErr := addDirs(w, abs); addErr != nil {
						slog.Warn("inbox: watch new dir", slog.String("path", abs), slog.String("error", addErr.Error()))
					}
					_ = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
						if err == nil && !d.IsDir() && storage.IsImage(p) {
							pending[p] = struct{}{}
						}
						return nil
					})
					settleTimer.Reset(in.settle)
					continue
				}
			}
			if !storage.IsImage(abs) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				pending[abs] = struct{}{}
				settleTimer.Reset(in.settle)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

func (in *Inbox) processPath(ctx context.Context, root, abs string) {
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return
	}
	sum, err := checksum.SumFile(abs)
	if err != nil {
		slog.Warn("inbox: checksum", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	in.Process(ctx, models.InboxFile{
		Path:     filepath.ToSlash(rel),
		Checksum: sum,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
	})
}

// hidden reports whether p is, or lives under, a dot-named entry below root.
func hidden(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
	}
	return false
}

// addDirs adds root and its non-hidden subdirectories to the watcher.
func addDirs(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
