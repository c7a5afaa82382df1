package metrics

import (
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// Listener receives analyzer lifecycle events.
type Listener interface {
	StartAnalyzer(a Analyzer)
	EndAnalyzer(a Analyzer)
}

// ListenerAware is implemented by analyzers that publish events.
type ListenerAware interface {
	AddListener(l Listener)
}

// Events fans analyzer events out to registered listeners. Analyzers embed
// it.
type Events struct {
	mu        sync.RWMutex
	listeners []Listener
}

// AddListener registers l.
func (e *Events) AddListener(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// FireStart notifies listeners that a started.
func (e *Events) FireStart(a Analyzer) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, l := range e.listeners {
		l.StartAnalyzer(a)
	}
}

// FireEnd notifies listeners that a finished.
func (e *Events) FireEnd(a Analyzer) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, l := range e.listeners {
		l.EndAnalyzer(a)
	}
}

// LogListener logs analyzer runs at debug level.
type LogListener struct {
	logger  *charmlog.Logger
	mu      sync.Mutex
	started map[Kind]time.Time
}

// NewLogListener creates a listener writing to logger.
func NewLogListener(logger *charmlog.Logger) *LogListener {
	return &LogListener{
		logger:  logger,
		started: make(map[Kind]time.Time),
	}
}

// StartAnalyzer implements Listener.
func (l *LogListener) StartAnalyzer(a Analyzer) {
	l.mu.Lock()
	l.started[a.Kind()] = time.Now()
	l.mu.Unlock()
	l.logger.Debug("analyzer started", "kind", a.Kind())
}

// EndAnalyzer implements Listener.
func (l *LogListener) EndAnalyzer(a Analyzer) {
	l.mu.Lock()
	start, ok := l.started[a.Kind()]
	delete(l.started, a.Kind())
	l.mu.Unlock()

	if !ok {
		l.logger.Debug("analyzer finished", "kind", a.Kind())
		return
	}
	l.logger.Debug("analyzer finished", "kind", a.Kind(), "duration", time.Since(start).Round(time.Microsecond))
}
