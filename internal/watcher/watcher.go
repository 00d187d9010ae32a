package watcher

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"reflex/internal/logging"
	"reflex/internal/metrics"
	"reflex/internal/reload"
)

// skipDirs are directory names never worth watching.
var skipDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	".next":        {},
	"dist":         {},
	"build":        {},
}

// Options configures a Watcher.
type Options struct {
	// Root is the project directory watched recursively.
	Root string
	// ConfigFiles are basenames treated as shared infrastructure,
	// e.g. next.config.js. A change to one marks every route stale.
	ConfigFiles []string
	Logger      *logging.Logger
	Metrics     *metrics.Registry
}

// Watcher observes the project tree and reports classified file
// changes. It promises no de-duplication; the coordinator debounces.
type Watcher struct {
	source      *fsnotify.Watcher
	root        string
	configFiles map[string]struct{}
	logger      *logging.Logger
	metrics     *metrics.Registry

	mutex   sync.Mutex
	watched map[string]struct{}
	closed  bool

	events chan fsnotify.Event
	errors chan error
	done   chan struct{}
}

// New creates a watcher over options.Root and begins watching every
// directory under it.
func New(options Options) (*Watcher, error) {
	if options.Root == "" {
		return nil, errors.New("watcher root is required")
	}
	source, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	registry := options.Metrics
	if registry == nil {
		registry = metrics.Default
	}
	configFiles := make(map[string]struct{}, len(options.ConfigFiles))
	for _, name := range options.ConfigFiles {
		configFiles[name] = struct{}{}
	}

	watcher := &Watcher{
		source:      source,
		root:        options.Root,
		configFiles: configFiles,
		logger:      options.Logger,
		metrics:     registry,
		watched:     make(map[string]struct{}),
		events:      make(chan fsnotify.Event, 32),
		errors:      make(chan error, 4),
		done:        make(chan struct{}),
	}

	if err := watcher.addTree(options.Root); err != nil {
		_ = source.Close()
		return nil, err
	}

	watcher.startForwarder()
	return watcher, nil
}

// Run delivers classified changes to sink until Close or an
// unrecoverable source failure. Blocking; callers run it in a
// goroutine or an errgroup.
func (watcher *Watcher) Run(sink func(reload.FileChange)) error {
	if watcher == nil {
		return errors.New("watcher is nil")
	}
	for {
		select {
		case event := <-watcher.events:
			watcher.handleEvent(event, sink)
		case err := <-watcher.errors:
			watcher.logWarn("watch error", map[string]string{"error": err.Error()})
		case <-watcher.done:
			return nil
		}
	}
}

// Close shuts the watcher down. Safe to call more than once.
func (watcher *Watcher) Close() error {
	if watcher == nil {
		return nil
	}
	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return nil
	}
	watcher.closed = true
	watcher.mutex.Unlock()

	close(watcher.done)
	return watcher.source.Close()
}

func (watcher *Watcher) startForwarder() {
	go func() {
		for {
			select {
			case event, ok := <-watcher.source.Events:
				if !ok {
					return
				}
				select {
				case watcher.events <- event:
				case <-watcher.done:
					return
				}
			case err, ok := <-watcher.source.Errors:
				if !ok {
					return
				}
				select {
				case watcher.errors <- err:
				case <-watcher.done:
					return
				}
			case <-watcher.done:
				return
			}
		}
	}()
}

func (watcher *Watcher) handleEvent(event fsnotify.Event, sink func(reload.FileChange)) {
	path := filepath.ToSlash(event.Name)
	base := filepath.Base(path)

	if event.Op.Has(fsnotify.Create) {
		// a created directory needs its own watch before anything
		// inside it can be observed
		if watcher.isDir(event.Name) {
			if err := watcher.addTree(event.Name); err != nil {
				watcher.logWarn("watch add failed", map[string]string{
					"path":  event.Name,
					"error": err.Error(),
				})
			}
			return
		}
	}

	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return
	}

	change, relevant := watcher.classify(path, base)
	if !relevant {
		return
	}

	watcher.metrics.IncWatcherEvent()
	watcher.logDebug("file changed", map[string]string{
		"path": path,
		"op":   event.Op.String(),
	})
	if sink != nil {
		sink(change)
	}
}

// classify decides whether a path matters and how. Env files and
// registered config basenames are infrastructure; module extensions
// are graph-driven; everything else is ignored.
func (watcher *Watcher) classify(path, base string) (reload.FileChange, bool) {
	if strings.HasPrefix(base, ".env") {
		return reload.FileChange{Path: path, Class: reload.ClassEnv}, true
	}
	if _, ok := watcher.configFiles[base]; ok {
		return reload.FileChange{Path: path, Class: reload.ClassConfig}, true
	}
	if isModuleExt(path) {
		return reload.FileChange{Path: path, Class: reload.ClassModule}, true
	}
	return reload.FileChange{}, false
}

func isModuleExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".jsx", ".mjs", ".ts", ".tsx":
		return true
	default:
		return false
	}
}

func (watcher *Watcher) isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

func (watcher *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		name := entry.Name()
		if _, skip := skipDirs[name]; skip {
			return filepath.SkipDir
		}
		if name != "." && strings.HasPrefix(name, ".") && path != root {
			return filepath.SkipDir
		}
		return watcher.addWatch(path)
	})
}

func (watcher *Watcher) addWatch(path string) error {
	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return nil
	}
	if _, ok := watcher.watched[path]; ok {
		watcher.mutex.Unlock()
		return nil
	}
	watcher.watched[path] = struct{}{}
	count := len(watcher.watched)
	watcher.mutex.Unlock()

	if err := watcher.source.Add(path); err != nil {
		watcher.mutex.Lock()
		delete(watcher.watched, path)
		watcher.mutex.Unlock()
		return err
	}
	watcher.logDebug("watch added", map[string]string{
		"path":           path,
		"active_watches": strconv.Itoa(count),
	})
	return nil
}

func (watcher *Watcher) logDebug(message string, fields map[string]string) {
	if watcher == nil || watcher.logger == nil {
		return
	}
	watcher.logger.Debug(message, withWatcherFields(fields))
}

func (watcher *Watcher) logWarn(message string, fields map[string]string) {
	if watcher == nil || watcher.logger == nil {
		return
	}
	watcher.logger.Warn(message, withWatcherFields(fields))
}

func withWatcherFields(fields map[string]string) map[string]string {
	merged := make(map[string]string, len(fields)+1)
	merged["component"] = "watcher"
	for key, value := range fields {
		merged[key] = value
	}
	return merged
}
