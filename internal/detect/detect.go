// Package detect turns a timeline of recognized text into kill events.
package detect

import (
	"strings"
	"time"
)

// Sample is the text recognized at one sampled instant. At is relative to
// the start of the part until Rebase moves it onto the source timeline.
type Sample struct {
	At   time.Duration
	Text string
	// Part is the 1-based part the sample came from; zero before Rebase.
	Part int
}

// Event marks the instant a keyword was seen
type Event struct {
	At      time.Duration `json:"at"`
	Keyword string        `json:"keyword"`
	Part    int           `json:"part"`
}

// Config configures keyword matching
type Config struct {
	// Keywords are tried in order; the first one found in a sample wins.
	Keywords []string
	// Cooldown is the minimum spacing between accepted events. An event at
	// exactly Cooldown after the previous one is rejected.
	Cooldown time.Duration
}

// Matcher finds configured keywords in recognized text. It holds no state
// after construction and is safe for concurrent use.
type Matcher struct {
	keywords []string
	folded   []string
}

// NewMatcher creates a matcher trying keywords in order
func NewMatcher(keywords []string) *Matcher {
	folded := make([]string, len(keywords))
	for i, k := range keywords {
		folded[i] = strings.ToLower(k)
	}
	return &Matcher{keywords: keywords, folded: folded}
}

// Match returns the first configured keyword contained in text, ignoring case
func (m *Matcher) Match(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	for i, k := range m.folded {
		if strings.Contains(lower, k) {
			return m.keywords[i], true
		}
	}
	return "", false
}

// Detector applies keyword matching with a cooldown over a timeline. It is
// stateful so the scanner can feed it one sample at a time.
type Detector struct {
	matcher  *Matcher
	cooldown time.Duration

	last    time.Duration
	emitted bool
}

// New creates a detector with fresh state
func New(cfg Config) *Detector {
	return &Detector{
		matcher:  NewMatcher(cfg.Keywords),
		cooldown: cfg.Cooldown,
	}
}

// Observe feeds one sample. Samples must arrive in increasing time order.
func (d *Detector) Observe(s Sample) (Event, bool) {
	keyword, ok := d.matcher.Match(s.Text)
	if !ok {
		return Event{}, false
	}

	if d.emitted && s.At-d.last <= d.cooldown {
		return Event{}, false
	}

	d.last = s.At
	d.emitted = true
	return Event{At: s.At, Keyword: keyword, Part: s.Part}, true
}

// Reset clears the cooldown state
func (d *Detector) Reset() {
	d.last = 0
	d.emitted = false
}

// Detect runs a fresh detector over a whole timeline. The result depends
// only on the arguments.
func Detect(samples []Sample, cfg Config) []Event {
	d := New(cfg)
	var events []Event
	for _, s := range samples {
		if ev, ok := d.Observe(s); ok {
			events = append(events, ev)
		}
	}
	return events
}
