package decodecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// followReader reads a file that is still being written. At end of file it
// blocks until the file grows again, so a decoder reading from it sees one
// unbounded stream. When another file is created or renamed at the path, as
// log rotation does, the new file is reopened and read from its start. It
// reports io.EOF once ctx is done or the file is removed or renamed away.
type followReader struct {
	ctx     context.Context
	file    *os.File
	path    string
	watcher *fsnotify.Watcher
}

func newFollowReader(ctx context.Context, path string) (*followReader, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	// Watch the directory so a file replaced at path shows up as a Create.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		file.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	return &followReader{
		ctx:     ctx,
		file:    file,
		path:    path,
		watcher: watcher,
	}, nil
}

func (r *followReader) Read(p []byte) (int, error) {
	for {
		n, err := r.file.Read(p)
		if n > 0 || (err != nil && !errors.Is(err, io.EOF)) {
			return n, err
		}

		if err := r.wait(); err != nil {
			return 0, err
		}
	}
}

// wait blocks until the followed file may have grown.
func (r *followReader) wait() error {
	for {
		select {
		case <-r.ctx.Done():
			return io.EOF

		case event, ok := <-r.watcher.Events:
			if !ok {
				return io.EOF
			}
			if filepath.Clean(event.Name) != r.path {
				continue
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				return io.EOF
			}
			if event.Op&fsnotify.Create != 0 {
				return r.reopen()
			}
			if event.Op&fsnotify.Write != 0 {
				return nil
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return io.EOF
			}
			return fmt.Errorf("file watcher error: %w", err)
		}
	}
}

// reopen switches to the file now at r.path.
func (r *followReader) reopen() error {
	file, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("reopening %s: %w", r.path, err)
	}

	old := r.file
	r.file = file
	return old.Close()
}

func (r *followReader) Close() error {
	return errors.Join(r.watcher.Close(), r.file.Close())
}
