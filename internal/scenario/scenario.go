// Package scenario declares which user types take part in a run, their
// relative weights and their think-time pacing.
//
// A Scenario is built once, before a run starts, and has no mutators. All
// methods are safe for concurrent use.
package scenario

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/torosent/crankstep/internal/config"
	"github.com/torosent/crankstep/internal/pacing"
)

var (
	// ErrEmpty is returned when a scenario has no entries.
	ErrEmpty = errors.New("scenario has no user types")
	// ErrNoWeight is returned when every entry has weight zero.
	ErrNoWeight = errors.New("scenario needs at least one user type with a positive weight")
)

// Entry configures one user type. A nil Pacing means the user type's own
// default applies.
type Entry struct {
	Type   string
	Weight int
	Pacing pacing.Sampler
}

// Scenario is an immutable set of entries.
type Scenario struct {
	entries []Entry
	index   map[string]int
	total   int
}

// New validates entries and returns a Scenario preserving their order.
func New(entries ...Entry) (*Scenario, error) {
	if len(entries) == 0 {
		return nil, ErrEmpty
	}
	s := &Scenario{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		e.Type = strings.TrimSpace(e.Type)
		if e.Type == "" {
			return nil, fmt.Errorf("entry %d: user type is required", i)
		}
		if _, dup := s.index[e.Type]; dup {
			return nil, fmt.Errorf("user type %q declared more than once", e.Type)
		}
		if e.Weight < 0 {
			return nil, fmt.Errorf("user type %q: weight must be >= 0, got %d", e.Type, e.Weight)
		}
		s.index[e.Type] = len(s.entries)
		s.entries = append(s.entries, e)
		s.total += e.Weight
	}
	if s.total == 0 {
		return nil, ErrNoWeight
	}
	return s, nil
}

// Entries returns a copy of the entries in declaration order.
func (s *Scenario) Entries() []Entry {
	return append([]Entry(nil), s.entries...)
}

// Types returns the user type names in declaration order.
func (s *Scenario) Types() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.Type
	}
	return names
}

// Lookup returns the entry for a user type.
func (s *Scenario) Lookup(userType string) (Entry, bool) {
	i, ok := s.index[userType]
	if !ok {
		return Entry{}, false
	}
	return s.entries[i], true
}

// TotalWeight is the sum of all weights.
func (s *Scenario) TotalWeight() int {
	return s.total
}

// Mix returns each type's long-run share of the population, summing to 1.
func (s *Scenario) Mix() map[string]float64 {
	mix := make(map[string]float64, len(s.entries))
	for _, e := range s.entries {
		mix[e.Type] = float64(e.Weight) / float64(s.total)
	}
	return mix
}

// Pick chooses an entry with probability proportional to its weight. A nil
// rnd uses the global source. Entries with weight zero are never chosen.
func (s *Scenario) Pick(rnd *rand.Rand) Entry {
	var n int
	if rnd != nil {
		n = rnd.Intn(s.total)
	} else {
		n = rand.Intn(s.total)
	}
	for _, e := range s.entries {
		if n < e.Weight {
			return e
		}
		n -= e.Weight
	}
	return s.entries[len(s.entries)-1]
}

// String renders the scenario as one line per entry, for `scenario show`.
func (s *Scenario) String() string {
	var b strings.Builder
	mix := s.Mix()
	for _, e := range s.entries {
		fmt.Fprintf(&b, "%-20s weight %-4d share %5.1f%%  pacing %s\n",
			e.Type, e.Weight, mix[e.Type]*100, pacing.Describe(e.Pacing))
	}
	return b.String()
}

// FromConfig builds a Scenario from the users section of a config file.
func FromConfig(users []config.UserConfig) (*Scenario, error) {
	entries := make([]Entry, 0, len(users))
	for _, u := range users {
		sampler, err := Sampler(u.Pacing)
		if err != nil {
			return nil, fmt.Errorf("user type %q: %w", u.Type, err)
		}
		entries = append(entries, Entry{Type: u.Type, Weight: u.Weight, Pacing: sampler})
	}
	return New(entries...)
}

// Sampler converts a pacing configuration into a sampler. A zero config yields nil.
func Sampler(p config.PacingConfig) (pacing.Sampler, error) {
	if p.IsZero() {
		return nil, nil
	}
	switch p.Kind {
	case config.PacingConstant:
		return pacing.Constant(p.Value), nil
	case config.PacingBetween:
		if p.Max < p.Min {
			return nil, fmt.Errorf("pacing max %s is below min %s", p.Max, p.Min)
		}
		return pacing.Between(p.Min, p.Max), nil
	case config.PacingExponential:
		if p.Mean <= 0 {
			return nil, fmt.Errorf("exponential pacing needs a positive mean")
		}
		return pacing.Exponential(p.Mean), nil
	case config.PacingThroughput:
		return pacing.Throughput(p.Rate, p.Burst), nil
	default:
		return nil, fmt.Errorf("pacing kind %q is not supported", p.Kind)
	}
}

// Override returns a copy of s in which every entry uses sampler. It is used
// to force a think-time, for instance zero in try mode.
func (s *Scenario) Override(sampler pacing.Sampler) *Scenario {
	out := &Scenario{
		entries: make([]Entry, len(s.entries)),
		index:   make(map[string]int, len(s.index)),
		total:   s.total,
	}
	for i, e := range s.entries {
		e.Pacing = sampler
		out.entries[i] = e
		out.index[e.Type] = i
	}
	return out
}
