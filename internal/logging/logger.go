package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultBufferSize bounds the in-memory entry buffer kept for
// diagnostics endpoints.
const DefaultBufferSize = 500

// Logger writes key=value formatted entries to an output writer,
// retains a bounded buffer of recent entries, and broadcasts entries
// to hub subscribers.
type Logger struct {
	mu       sync.Mutex
	output   io.Writer
	minLevel Level
	base     map[string]string
	buffer   *entryRing
	hub      *Hub
}

// New creates a logger writing to stdout.
func New(minLevel Level) *Logger {
	return NewWithOutput(minLevel, os.Stdout)
}

// NewWithOutput creates a logger writing to the given writer. A nil
// writer discards formatted output but still buffers and broadcasts.
func NewWithOutput(minLevel Level, output io.Writer) *Logger {
	if output == nil {
		output = io.Discard
	}
	return &Logger{
		output:   output,
		minLevel: minLevel,
		buffer:   newEntryRing(DefaultBufferSize),
		hub:      NewHub(),
	}
}

// With returns a logger that stamps every entry with the given fields.
// The returned logger shares the buffer, hub, and output.
func (logger *Logger) With(fields map[string]string) *Logger {
	if logger == nil {
		return nil
	}
	return &Logger{
		output:   logger.output,
		minLevel: logger.minLevel,
		base:     mergeFields(logger.base, fields),
		buffer:   logger.buffer,
		hub:      logger.hub,
	}
}

// Recent returns a copy of the buffered entries, oldest first.
func (logger *Logger) Recent() []Entry {
	if logger == nil {
		return nil
	}
	return logger.buffer.list()
}

// Subscribe registers a hub subscriber for live entries.
func (logger *Logger) Subscribe() (<-chan Entry, func()) {
	if logger == nil || logger.hub == nil {
		return nil, func() {}
	}
	return logger.hub.Subscribe(0)
}

func (logger *Logger) Debug(message string, fields map[string]string) {
	logger.emit(LevelDebug, message, fields)
}

func (logger *Logger) Info(message string, fields map[string]string) {
	logger.emit(LevelInfo, message, fields)
}

func (logger *Logger) Warn(message string, fields map[string]string) {
	logger.emit(LevelWarn, message, fields)
}

func (logger *Logger) Error(message string, fields map[string]string) {
	logger.emit(LevelError, message, fields)
}

func (logger *Logger) Enabled(level Level) bool {
	if logger == nil {
		return false
	}
	return level >= logger.minLevel
}

func (logger *Logger) emit(level Level, message string, fields map[string]string) {
	if !logger.Enabled(level) {
		return
	}
	entry := Entry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		LevelName: level.String(),
		Message:   message,
		Fields:    mergeFields(logger.base, fields),
	}
	if logger.buffer != nil {
		logger.buffer.add(entry)
	}
	if logger.hub != nil {
		logger.hub.Broadcast(entry)
	}
	logger.mu.Lock()
	fmt.Fprintln(logger.output, formatEntry(entry))
	logger.mu.Unlock()
}

func mergeFields(base, extra map[string]string) map[string]string {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(extra))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range extra {
		merged[key] = value
	}
	return merged
}

func formatEntry(entry Entry) string {
	builder := strings.Builder{}
	builder.WriteString(entry.Timestamp.Format(time.RFC3339))
	builder.WriteString(" level=")
	builder.WriteString(entry.Level.String())
	builder.WriteString(" msg=")
	builder.WriteString(strconv.Quote(entry.Message))

	if len(entry.Fields) == 0 {
		return builder.String()
	}

	keys := make([]string, 0, len(entry.Fields))
	for key := range entry.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		builder.WriteString(" ")
		builder.WriteString(key)
		builder.WriteString("=")
		builder.WriteString(strconv.Quote(entry.Fields[key]))
	}
	return builder.String()
}

// entryRing is a fixed-size ring of recent entries.
type entryRing struct {
	mu      sync.Mutex
	entries []Entry
	start   int
	count   int
}

func newEntryRing(size int) *entryRing {
	if size <= 0 {
		size = 1
	}
	return &entryRing{entries: make([]Entry, size)}
}

func (ring *entryRing) add(entry Entry) {
	ring.mu.Lock()
	defer ring.mu.Unlock()

	if ring.count < len(ring.entries) {
		ring.entries[(ring.start+ring.count)%len(ring.entries)] = entry
		ring.count++
		return
	}
	ring.entries[ring.start] = entry
	ring.start = (ring.start + 1) % len(ring.entries)
}

func (ring *entryRing) list() []Entry {
	ring.mu.Lock()
	defer ring.mu.Unlock()

	if ring.count == 0 {
		return nil
	}
	out := make([]Entry, ring.count)
	for i := 0; i < ring.count; i++ {
		out[i] = ring.entries[(ring.start+i)%len(ring.entries)]
	}
	return out
}
