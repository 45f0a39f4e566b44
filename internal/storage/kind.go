package storage

import "strings"

// ServiceKind identifies one family of remote storage operations.
type ServiceKind int

const (
	Blob ServiceKind = iota + 1
	Queue
	Table
)

// Kinds lists every supported service kind.
var Kinds = []ServiceKind{Blob, Queue, Table}

// String returns the lower-case wire name of the kind ("blob", "queue", "table").
func (k ServiceKind) String() string {
	switch k {
	case Blob:
		return "blob"
	case Queue:
		return "queue"
	case Table:
		return "table"
	default:
		return "unknown"
	}
}

// Valid reports whether k is one of the supported kinds.
func (k ServiceKind) Valid() bool {
	return k == Blob || k == Queue || k == Table
}

// ParseServiceKind maps a case-insensitive name onto a ServiceKind.
func ParseServiceKind(s string) (ServiceKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "blob":
		return Blob, true
	case "queue":
		return Queue, true
	case "table":
		return Table, true
	default:
		return 0, false
	}
}
