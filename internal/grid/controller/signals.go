package controller

import "sync"

// Signal is an outbound UI event.
type Signal interface {
	SignalName() string
}

// ScrollToTop asks the view of Entity to scroll back to the first row.
type ScrollToTop struct {
	Entity string `json:"entity"`
}

// OpenModal asks the presentation layer to open View.
type OpenModal struct {
	View          string         `json:"view"`
	Props         map[string]any `json:"props"`
	Title         string         `json:"title"`
	CorrelationID string         `json:"correlation_id"`
}

// ActionConfirmed reports an executed action.
type ActionConfirmed struct {
	Action string   `json:"action"`
	IDs    []string `json:"ids"`
	Bulk   bool     `json:"bulk"`
}

// SelectionChanged carries the full selection after a change.
type SelectionChanged struct {
	IDs []string `json:"ids"`
}

// CleanURL asks the UI to replace the address bar with Path.
type CleanURL struct {
	Path string `json:"path"`
}

func (ScrollToTop) SignalName() string      { return "scroll-to-top" }
func (OpenModal) SignalName() string        { return "open-modal" }
func (ActionConfirmed) SignalName() string  { return "action-confirmed" }
func (SelectionChanged) SignalName() string { return "selection-changed" }
func (CleanURL) SignalName() string         { return "clean-url" }

// Sink receives signals.
type Sink interface {
	Emit(Signal)
}

// Recorder is a Sink that keeps signals until drained.
type Recorder struct {
	mu      sync.Mutex
	signals []Signal
}

// Emit implements Sink.
func (r *Recorder) Emit(s Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, s)
}

// Drain returns and forgets the recorded signals.
func (r *Recorder) Drain() []Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.signals
	r.signals = nil
	return out
}

// Envelope is the wire form of a signal.
type Envelope struct {
	Type    string `json:"type"`
	Payload Signal `json:"payload"`
}

// Envelopes wraps signals for JSON responses.
func Envelopes(signals []Signal) []Envelope {
	out := make([]Envelope, 0, len(signals))
	for _, s := range signals {
		out = append(out, Envelope{Type: s.SignalName(), Payload: s})
	}
	return out
}
