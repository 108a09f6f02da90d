package events

import "time"

// Op is the kind of change observed on a file.
type Op int

const (
	OpAdd Op = iota
	OpChange
	OpUnlink
)

// String returns the string representation of the Op
func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpChange:
		return "change"
	case OpUnlink:
		return "unlink"
	default:
		return "unknown"
	}
}

// Event is an event of a file change.
type Event struct {
	Op Op
	// This is the file's absolute path.
	File string
	// The file's path relative to the project root, forward-slash separated.
	Rel string
	// The timestamp of the file being changed.
	Timestamp time.Time
}
