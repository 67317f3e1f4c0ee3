package catalogue

// Status is the closed enum of catalogue entry states (spec §3): it
// round-trips through its textual form, and unknown textual forms decode to
// Unchanged (permissive, spec §8 P7).
type Status int

const (
	// Unchanged means the file's content hash matched the catalogue on the
	// most recent observation.
	Unchanged Status = iota
	// Added means the path had no (non-Deleted) catalogue entry before
	// this observation.
	Added
	// Modified means the path's content hash differs from its prior
	// catalogue entry.
	Modified
	// Deleted means the sweep found the catalogue entry's source file
	// missing.
	Deleted
)

// String renders the textual form stored in the catalogue's status column.
func (s Status) String() string {
	switch s {
	case Added:
		return "Added"
	case Modified:
		return "Modified"
	case Deleted:
		return "Deleted"
	default:
		return "Unchanged"
	}
}

// ParseStatus decodes the textual form produced by String. Unknown strings
// decode to Unchanged, per spec §3/§8 P7.
func ParseStatus(s string) Status {
	switch s {
	case "Added":
		return Added
	case "Modified":
		return Modified
	case "Deleted":
		return Deleted
	default:
		return Unchanged
	}
}
