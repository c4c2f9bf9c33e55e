package thumbnail

// State is where an item stands in the preview lifecycle. Failed items go
// back through Generating on the next pass; nothing is blacklisted.
type State int

const (
	StateMissing State = iota
	StateGenerating
	StateCached
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateMissing:
		return "missing"
	case StateGenerating:
		return "generating"
	case StateCached:
		return "cached"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
