// Package ingest feeds images dropped into a watched directory into the
// session, as a server-side alternative to interactive upload.
package ingest

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/graysonchalmers/art-metadata-batch/internal/catalog"
	"github.com/graysonchalmers/art-metadata-batch/internal/imaging"
)

// imageExts are the file extensions picked up from the watch directory.
var imageExts = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".webp": {},
	".bmp":  {},
	".tif":  {},
	".tiff": {},
}

// Watcher ingests image files created in a directory.
type Watcher struct {
	dir    string
	store  *catalog.Store
	settle time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func NewWatcher(dir string, store *catalog.Store) *Watcher {
	return &Watcher{
		dir:    dir,
		store:  store,
		settle: 500 * time.Millisecond,
		pending: make(map[string]*time.Timer),
	}
}

// Run watches the directory until ctx is done. Per-file failures are logged
// and never stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return err
	}
	log.Info().Str("dir", w.dir).Msg("watching directory for images")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) {
				w.schedule(event.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watcher error")
		}
	}
}

// schedule (re)arms a settle timer for the path, so files still being
// written are ingested once, after the writes stop.
func (w *Watcher) schedule(path string) {
	if _, ok := imageExts[strings.ToLower(filepath.Ext(path))]; !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.ingest(path)
	})
}

func (w *Watcher) ingest(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("could not read watched file")
		return
	}

	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		log.Warn().Str("path", path).Str("mimeType", mimeType).Msg("ignoring non-image file")
		return
	}

	preview, err := imaging.Thumbnail(data, imaging.PreviewMaxSide)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("could not generate preview")
		preview = nil
	}

	id := w.store.Add(filepath.Base(path), mimeType, data, preview)
	log.Info().Str("itemId", id).Str("path", path).Msg("ingested watched file")
}
