package writable

// State is the lifecycle state of a Stream.
type State int

const (
	// Writable accepts writes.
	Writable State = iota
	// Closing has a close request queued behind any pending writes.
	Closing
	// Closed is terminal: the sink closed successfully.
	Closed
	// Errored is terminal: the stream failed or was aborted.
	Errored
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case Writable:
		return "writable"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen from s.
func (s State) Terminal() bool {
	return s == Closed || s == Errored
}
