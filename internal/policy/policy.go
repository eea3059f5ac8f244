// Package policy holds the per-provider redistribution compliance table.
//
// The table is static configuration loaded at startup and never mutated at
// runtime. It must be consulted BEFORE any non-primary fetch: discarding data
// after the fact does not satisfy a redistribution-license obligation.
package policy

// Well-known purposes.
const (
	PurposeDisplay    = "display"
	PurposeIndicators = "indicators"
	PurposeCache      = "cache"
)

// Entry declares what a single upstream source's data may be used for and the
// minimum attribution it requires.
type Entry struct {
	SourceID            string
	AllowDisplay        bool
	AllowRedistribution bool
	AllowedPurposes     map[string]bool
	Attribution         string
}

// Policy answers allow/deny questions per (source, purpose) pair.
type Policy struct {
	entries map[string]Entry
}

// New builds a Policy from a list of entries. Later entries for the same
// source id override earlier ones.
func New(entries []Entry) *Policy {
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		m[e.SourceID] = e
	}
	return &Policy{entries: m}
}

// IsAllowed reports whether data from the given source may be used for the
// given purpose. Unknown sources are denied.
func (p *Policy) IsAllowed(sourceID, purpose string) bool {
	e, ok := p.entries[sourceID]
	if !ok {
		return false
	}
	switch purpose {
	case PurposeDisplay:
		return e.AllowDisplay
	case PurposeCache:
		return e.AllowRedistribution
	}
	return e.AllowedPurposes[purpose]
}

// Attribution returns the minimum-required attribution string for a source,
// or "" if none is configured.
func (p *Policy) Attribution(sourceID string) string {
	return p.entries[sourceID].Attribution
}
