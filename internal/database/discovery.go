package database

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/johan-st/dbgrid/internal/config"
)

// DiscoveredDatabase is a SQLite file found through a connection's path.
type DiscoveredDatabase struct {
	Path        string
	Name        string
	Description string
	Size        int64
	ModTime     time.Time
	Source      config.ConnectionConfig
}

// Discovery expands SQLite connections that name a directory or glob into
// database files and watches their directories for new files.
type Discovery struct {
	sources   []config.ConnectionConfig
	databases map[string]*DiscoveredDatabase
	watcher   *fsnotify.Watcher
	logger    *log.Logger
	callbacks []func(added, removed []*DiscoveredDatabase)
	stop      chan struct{}
	once      sync.Once
	mu        sync.RWMutex
}

// NewDiscovery creates a discovery service for the SQLite entries of
// sources. Other drivers are ignored.
func NewDiscovery(sources []config.ConnectionConfig, logger *log.Logger) (*Discovery, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Discovery{
		sources:   sqliteSources(sources),
		databases: make(map[string]*DiscoveredDatabase),
		watcher:   watcher,
		logger:    logger.WithPrefix("discovery"),
		stop:      make(chan struct{}),
	}, nil
}

func sqliteSources(all []config.ConnectionConfig) []config.ConnectionConfig {
	var out []config.ConnectionConfig
	for _, c := range all {
		if d, err := ParseDriver(c.Driver); err == nil && d == SQLite {
			out = append(out, c)
		}
	}
	return out
}

// OnChange registers a callback for when databases are added or removed.
func (d *Discovery) OnChange(callback func(added, removed []*DiscoveredDatabase)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callbacks = append(d.callbacks, callback)
}

// Start runs the initial scan and begins watching.
func (d *Discovery) Start() error {
	if err := d.scan(); err != nil {
		return err
	}
	go d.watch()
	return nil
}

// Stop stops the discovery service.
func (d *Discovery) Stop() {
	d.once.Do(func() {
		close(d.stop)
		d.watcher.Close()
	})
}

// GetDatabases returns all discovered databases sorted by name.
func (d *Discovery) GetDatabases() []*DiscoveredDatabase {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]*DiscoveredDatabase, 0, len(d.databases))
	for _, db := range d.databases {
		result = append(result, db)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// GetDatabase returns a database by name or path.
func (d *Discovery) GetDatabase(nameOrPath string) *DiscoveredDatabase {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if db, ok := d.databases[nameOrPath]; ok {
		return db
	}
	for _, db := range d.databases {
		if db.Name == nameOrPath {
			return db
		}
	}
	return nil
}

// scan discovers all database files from configured sources.
func (d *Discovery) scan() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	found := make(map[string]*DiscoveredDatabase)
	watchPaths := make(map[string]bool)

	for _, source := range d.sources {
		dbs, dirs, err := discoverSource(source)
		if err != nil {
			d.logger.Warn("source failed", "connection", source.Name, "path", source.Path, "err", err)
			continue
		}
		for _, db := range dbs {
			found[db.Path] = db
		}
		for _, dir := range dirs {
			watchPaths[dir] = true
		}
	}

	var added, removed []*DiscoveredDatabase
	for path, db := range found {
		if _, ok := d.databases[path]; !ok {
			added = append(added, db)
		}
	}
	for path, db := range d.databases {
		if _, ok := found[path]; !ok {
			removed = append(removed, db)
		}
	}
	d.databases = found

	for path := range watchPaths {
		if err := d.watcher.Add(path); err != nil {
			d.logger.Debug("watch failed", "path", path, "err", err)
		}
	}

	if len(added) > 0 || len(removed) > 0 {
		d.logger.Info("databases changed", "added", len(added), "removed", len(removed))
		go d.notifyCallbacks(added, removed)
	}
	return nil
}

// discoverSource expands one connection into database files and the
// directories to watch.
func discoverSource(source config.ConnectionConfig) ([]*DiscoveredDatabase, []string, error) {
	var (
		databases []*DiscoveredDatabase
		watchDirs []string
	)
	path := source.Path

	if strings.ContainsAny(path, "*?[") {
		matches, err := doublestar.FilepathGlob(path)
		if err != nil {
			return nil, nil, err
		}
		for _, match := range matches {
			if !isSQLiteFile(match) {
				continue
			}
			if db, err := newDiscoveredDB(match, source, true); err == nil {
				databases = append(databases, db)
			}
		}

		base, _ := doublestar.SplitPattern(filepath.ToSlash(path))
		if dir := filepath.FromSlash(base); dir != "" {
			watchDirs = append(watchDirs, dir)
		}
		return databases, watchDirs, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, err
	}

	if info.IsDir() {
		filepath.WalkDir(path, func(p string, e os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if e.IsDir() {
				if p != path && !source.Recursive {
					return filepath.SkipDir
				}
				watchDirs = append(watchDirs, p)
				return nil
			}
			if isSQLiteFile(p) {
				if db, err := newDiscoveredDB(p, source, true); err == nil {
					databases = append(databases, db)
				}
			}
			return nil
		})
		return databases, watchDirs, nil
	}

	// A single file is used whatever its extension.
	db, err := newDiscoveredDB(path, source, false)
	if err != nil {
		return nil, nil, err
	}
	return []*DiscoveredDatabase{db}, []string{filepath.Dir(db.Path)}, nil
}

func newDiscoveredDB(path string, source config.ConnectionConfig, multi bool) (*DiscoveredDatabase, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, err
	}

	name := source.Name
	if multi {
		stem := strings.TrimSuffix(filepath.Base(absPath), filepath.Ext(absPath))
		switch {
		case strings.Contains(name, "*"):
			name = strings.ReplaceAll(name, "*", stem)
		case name == "":
			name = stem
		default:
			name = name + "/" + stem
		}
	}

	src := source
	src.Path = absPath
	src.Name = name

	return &DiscoveredDatabase{
		Path:        absPath,
		Name:        name,
		Description: source.Description,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		Source:      src,
	}, nil
}

// isSQLiteFile checks if a file looks like a SQLite database.
func isSQLiteFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3", ".db3":
		return true
	}
	return false
}

func (d *Discovery) watch() {
	for {
		select {
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				if isSQLiteFile(event.Name) {
					d.scan()
				}
			}

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.logger.Warn("watch error", "err", err)

		case <-d.stop:
			return
		}
	}
}

func (d *Discovery) notifyCallbacks(added, removed []*DiscoveredDatabase) {
	d.mu.RLock()
	callbacks := make([]func(added, removed []*DiscoveredDatabase), len(d.callbacks))
	copy(callbacks, d.callbacks)
	d.mu.RUnlock()

	for _, cb := range callbacks {
		cb(added, removed)
	}
}

// Refresh forces a rescan of all sources.
func (d *Discovery) Refresh() error {
	return d.scan()
}

// UpdateSources replaces the sources and rescans.
func (d *Discovery) UpdateSources(sources []config.ConnectionConfig) error {
	d.mu.Lock()
	d.sources = sqliteSources(sources)
	d.mu.Unlock()

	return d.scan()
}
