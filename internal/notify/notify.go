// Package notify is the user-visible alert surface shared by every
// controller.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Level classifies an alert.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarn    Level = "warning"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

// Sink receives user-visible messages.
type Sink interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Success(msg string)
}

// Message is one alert captured by a Buffer.
type Message struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

// Buffer collects alerts in order. The web server drains it into the
// next rendered page; tests assert on it.
type Buffer struct {
	mu       sync.Mutex
	messages []Message
}

func NewBuffer() *Buffer { return &Buffer{} }

func (b *Buffer) Info(msg string)    { b.add(LevelInfo, msg) }
func (b *Buffer) Warn(msg string)    { b.add(LevelWarn, msg) }
func (b *Buffer) Error(msg string)   { b.add(LevelError, msg) }
func (b *Buffer) Success(msg string) { b.add(LevelSuccess, msg) }

func (b *Buffer) add(level Level, msg string) {
	b.mu.Lock()
	b.messages = append(b.messages, Message{Level: level, Text: msg})
	b.mu.Unlock()
}

// Messages returns a copy of everything collected so far.
func (b *Buffer) Messages() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// Drain returns the collected alerts and empties the buffer.
func (b *Buffer) Drain() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.messages
	b.messages = nil
	return out
}

// Last returns the most recent alert, if any.
func (b *Buffer) Last() (Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.messages) == 0 {
		return Message{}, false
	}
	return b.messages[len(b.messages)-1], true
}

// Count returns how many alerts of the given level were collected.
func (b *Buffer) Count(level Level) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, m := range b.messages {
		if m.Level == level {
			n++
		}
	}
	return n
}

// Logger writes alerts to a structured logger.
type Logger struct {
	log *slog.Logger
}

// NewLogger returns a Sink backed by log; nil means slog.Default().
func NewLogger(log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{log: log.With(slog.String("component", "notify"))}
}

func (l *Logger) Info(msg string)  { l.log.Info(msg, slog.String("alert", string(LevelInfo))) }
func (l *Logger) Warn(msg string)  { l.log.Warn(msg, slog.String("alert", string(LevelWarn))) }
func (l *Logger) Error(msg string) { l.log.Error(msg, slog.String("alert", string(LevelError))) }
func (l *Logger) Success(msg string) {
	l.log.LogAttrs(context.Background(), slog.LevelInfo, msg, slog.String("alert", string(LevelSuccess)))
}

// Multi fans every alert out to each sink in order.
type Multi []Sink

func (m Multi) Info(msg string) {
	for _, s := range m {
		s.Info(msg)
	}
}

func (m Multi) Warn(msg string) {
	for _, s := range m {
		s.Warn(msg)
	}
}

func (m Multi) Error(msg string) {
	for _, s := range m {
		s.Error(msg)
	}
}

func (m Multi) Success(msg string) {
	for _, s := range m {
		s.Success(msg)
	}
}
