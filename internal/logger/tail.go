package logger

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// LogTail is a bounded ring of the most recent formatted log lines of one worker.
type LogTail struct {
	mu       sync.Mutex
	lines    []string
	next     int
	full     bool
	capacity int
}

// NewLogTail creates a tail that keeps at most capacity lines.
func NewLogTail(capacity int) *LogTail {
	if capacity <= 0 {
		capacity = 1
	}

	return &LogTail{
		mu:       sync.Mutex{},
		lines:    make([]string, capacity),
		next:     0,
		full:     false,
		capacity: capacity,
	}
}

// Append adds a line, evicting the oldest one when the tail is full.
func (t *LogTail) Append(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lines[t.next] = line
	t.next = (t.next + 1) % t.capacity

	if t.next == 0 {
		t.full = true
	}
}

// Lines returns a copy of the retained lines, oldest first.
func (t *LogTail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.full {
		out := make([]string, t.next)
		copy(out, t.lines[:t.next])

		return out
	}

	out := make([]string, 0, t.capacity)
	out = append(out, t.lines[t.next:]...)
	out = append(out, t.lines[:t.next]...)

	return out
}

// Len returns the number of retained lines.
func (t *LogTail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.full {
		return t.capacity
	}

	return t.next
}

type tailCore struct {
	zapcore.LevelEnabler
	enc  zapcore.Encoder
	tail *LogTail
}

func newTailCore(tail *LogTail, level zapcore.LevelEnabler) *tailCore {
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(time.RFC3339),
		EncodeDuration: zapcore.StringDurationEncoder,
	})

	return &tailCore{LevelEnabler: level, enc: enc, tail: tail}
}

func (c *tailCore) With(fields []zapcore.Field) zapcore.Core {
	clone := c.enc.Clone()
	for _, f := range fields {
		f.AddTo(clone)
	}

	return &tailCore{LevelEnabler: c.LevelEnabler, enc: clone, tail: c.tail}
}

func (c *tailCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}

	return ce
}

func (c *tailCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}

	c.tail.Append(strings.TrimRight(buf.String(), "\n"))
	buf.Free()

	return nil
}

func (c *tailCore) Sync() error {
	return nil
}
