// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package directory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ManuGH/cylinderd/internal/domain/cylinder/model"
	"github.com/ManuGH/cylinderd/internal/log"
	"github.com/ManuGH/cylinderd/internal/metrics"
	"github.com/fsnotify/fsnotify"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const reloadDebounce = 500 * time.Millisecond

type customersFile struct {
	Customers []model.Customer `yaml:"customers"`
}

// FileDirectory serves customers from a YAML file and reloads it on change.
type FileDirectory struct {
	path   string
	mem    *MemoryDirectory
	logger zerolog.Logger

	writeMu sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// OpenFileDirectory loads path. A missing file yields an empty directory
// that Put will create.
func OpenFileDirectory(path string) (*FileDirectory, error) {
	d := &FileDirectory{
		path:   path,
		mem:    NewMemoryDirectory(),
		logger: log.WithComponent("directory"),
	}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

func parseCustomers(r io.Reader) (map[string]model.Customer, error) {
	var f customersFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse customers: %w", err)
	}
	out := make(map[string]model.Customer, len(f.Customers))
	for i, c := range f.Customers {
		n, err := Normalize(c)
		if err != nil {
			return nil, fmt.Errorf("customer #%d: %w", i, err)
		}
		if _, dup := out[n.ID]; dup {
			return nil, fmt.Errorf("customer #%d: duplicate id %s", i, n.ID)
		}
		out[n.ID] = n
	}
	return out, nil
}

// Reload re-reads the file. On error the previous set stays in place.
func (d *FileDirectory) Reload() (err error) {
	defer func() { metrics.RecordDirectoryLoad("file", d.mem.len(), err) }()

	data, err := os.ReadFile(d.path)
	if errors.Is(err, os.ErrNotExist) {
		d.mem.replace(map[string]model.Customer{})
		return nil
	}
	if err != nil {
		return fmt.Errorf("read customers file: %w", err)
	}
	customers, err := parseCustomers(bytes.NewReader(data))
	if err != nil {
		return err
	}
	d.mem.replace(customers)
	d.logger.Info().
		Str(log.FieldPath, d.path).
		Int("customers", len(customers)).
		Msg("customer directory loaded")
	return nil
}

func (d *FileDirectory) Get(ctx context.Context, id string) (model.Customer, error) {
	return d.mem.Get(ctx, id)
}

func (d *FileDirectory) List(ctx context.Context) ([]model.Customer, error) {
	return d.mem.List(ctx)
}

// Put upserts c and rewrites the file atomically.
func (d *FileDirectory) Put(ctx context.Context, c model.Customer) error {
	n, err := Normalize(c)
	if err != nil {
		return err
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	list, err := d.mem.List(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range list {
		if list[i].ID == n.ID {
			list[i] = n
			replaced = true
		}
	}
	if !replaced {
		list = append(list, n)
		sortCustomers(list)
	}
	if err := d.write(list); err != nil {
		return err
	}
	return d.mem.Put(ctx, n)
}

func (d *FileDirectory) write(list []model.Customer) error {
	data, err := yaml.Marshal(customersFile{Customers: list})
	if err != nil {
		return fmt.Errorf("encode customers: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0o750); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	pf, err := renameio.NewPendingFile(d.path, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() { _ = pf.Cleanup() }()
	if _, err := pf.Write(data); err != nil {
		return fmt.Errorf("write customers: %w", err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace customers file: %w", err)
	}
	return nil
}

// Watch reloads the file after changes, debounced, until ctx ends or Close
// is called. The parent directory is watched so editors that replace the
// file by rename are seen.
func (d *FileDirectory) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(d.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch customers file: %w", err)
	}
	d.watcher = watcher
	d.done = make(chan struct{})

	d.logger.Info().
		Str(log.FieldEvent, "directory.watcher_started").
		Str(log.FieldPath, d.path).
		Msg("watching customer file for changes")

	go d.watchLoop(ctx, watcher)
	return nil
}

func (d *FileDirectory) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer close(d.done)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	target := filepath.Clean(d.path)

	for {
		select {
		case <-ctx.Done():
			_ = watcher.Close()
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if err := d.Reload(); err != nil {
					d.logger.Error().
						Err(err).
						Str(log.FieldEvent, "directory.reload_failed").
						Msg("customer file reload failed; keeping previous set")
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			d.logger.Error().Err(err).Str(log.FieldEvent, "directory.watcher_error").Msg("customer watcher error")
		}
	}
}

// Close stops the watcher, if any, and waits for its loop to exit.
func (d *FileDirectory) Close() error {
	if d.watcher == nil {
		return nil
	}
	err := d.watcher.Close()
	<-d.done
	return err
}
