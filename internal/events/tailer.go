package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kestrelrun/genie/internal/log"
)

// Config holds Tailer configuration options.
type Config struct {
	Dir         string
	DebounceDur time.Duration
}

// DefaultConfig returns sensible defaults for a Tailer watching dir.
func DefaultConfig(dir string) Config {
	return Config{Dir: dir, DebounceDur: 100 * time.Millisecond}
}

// Tailer watches events/*.jsonl for appended lines and emits parsed
// NormalizedEvent records on a channel, debouncing bursts of writes to the
// same files the way the teacher's database watcher debounces WAL writes.
type Tailer struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	debounce  time.Duration

	out  chan NormalizedEvent
	done chan struct{}

	mu      sync.Mutex
	offsets map[string]int64 // file path -> bytes already consumed
}

// New creates a Tailer watching cfg.Dir.
func New(cfg Config) (*Tailer, error) {
	log.Debug(log.CatEvents, "creating event tailer", "dir", cfg.Dir, "debounce", cfg.DebounceDur)
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		log.ErrorErr(log.CatEvents, "failed to create fsnotify watcher", err)
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Tailer{
		fsWatcher: fsw,
		dir:       cfg.Dir,
		debounce:  cfg.DebounceDur,
		out:       make(chan NormalizedEvent, 256),
		done:      make(chan struct{}),
		offsets:   make(map[string]int64),
	}, nil
}

// Start begins watching the events directory, returning a channel of
// parsed events. It performs an initial full read of any existing files so
// that events present before Start was called are not missed.
func (t *Tailer) Start() (<-chan NormalizedEvent, error) {
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating events directory: %w", err)
	}
	if err := t.fsWatcher.Add(t.dir); err != nil {
		log.ErrorErr(log.CatEvents, "failed to watch events directory", err, "dir", t.dir)
		return nil, fmt.Errorf("watching directory %s: %w", t.dir, err)
	}

	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return nil, fmt.Errorf("reading events directory: %w", err)
	}
	for _, e := range entries {
		if !t.isRelevantFile(e.Name()) {
			continue
		}
		t.drain(filepath.Join(t.dir, e.Name()))
	}

	log.Info(log.CatEvents, "started tailing events", "dir", t.dir)
	go t.loop()
	return t.out, nil
}

// Stop terminates the tailer and releases resources.
func (t *Tailer) Stop() error {
	log.Debug(log.CatEvents, "stopping event tailer")
	close(t.done)
	return t.fsWatcher.Close()
}

func (t *Tailer) loop() {
	var (
		timer   *time.Timer
		pending map[string]bool
	)
	pending = make(map[string]bool)

	for {
		var timerC <-chan time.Time
		if timer != nil {
			timerC = timer.C
		}

		select {
		case event, ok := <-t.fsWatcher.Events:
			if !ok {
				return
			}
			if !t.isRelevantEvent(event) {
				continue
			}
			pending[event.Name] = true

			if timer == nil {
				timer = time.NewTimer(t.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(t.debounce)
			}

		case <-timerC:
			for path := range pending {
				t.drain(path)
			}
			pending = make(map[string]bool)
			timer = nil

		case err, ok := <-t.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatEvents, "event tailer watch error", err)

		case <-t.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// drain reads and parses every new line appended to path since the last
// drain, emitting a NormalizedEvent per well-formed line. Malformed lines
// are logged and skipped so a single bad write never blocks the stream.
func (t *Tailer) drain(path string) {
	t.mu.Lock()
	offset := t.offsets[path]
	t.mu.Unlock()

	f, err := os.Open(path) //nolint:gosec // path is within the managed events directory
	if err != nil {
		log.ErrorErr(log.CatEvents, "failed to open event file", err, "path", path)
		return
	}
	defer f.Close()

	if _, err := f.Seek(offset, 0); err != nil {
		log.ErrorErr(log.CatEvents, "failed to seek event file", err, "path", path)
		return
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var consumed int64
	for scanner.Scan() {
		line := scanner.Bytes()
		consumed += int64(len(line)) + 1 // + newline
		if len(line) == 0 {
			continue
		}

		var ev NormalizedEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			log.Warn(log.CatEvents, "skipping malformed event line", "path", path, "error", err.Error())
			continue
		}

		select {
		case t.out <- ev:
		case <-t.done:
			return
		}
	}

	t.mu.Lock()
	t.offsets[path] = offset + consumed
	t.mu.Unlock()
}

func (t *Tailer) isRelevantFile(name string) bool {
	return filepath.Ext(name) == ".jsonl"
}

func (t *Tailer) isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}
	return t.isRelevantFile(filepath.Base(event.Name))
}
