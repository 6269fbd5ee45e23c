package pg

import "time"

// nullTime converts a zero time.Time into a nil driver arg so the
// column stores SQL NULL instead of the 0001-01-01 sentinel, mirroring
// how the teacher's *.postgresql.go Create methods pass
// sql.NullTime-wrapped optional timestamps.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}

	return t
}
