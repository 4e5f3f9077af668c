package dataset

import "time"

// Snapshot is a checkpoint of a harvest run: the regions already processed
// and every row accumulated so far.
type Snapshot struct {
	RunID     string
	Completed []string
	Rows      []Row
	SavedAt   time.Time
}

// IsCompleted reports whether code was processed in this snapshot.
func (s *Snapshot) IsCompleted(code string) bool {
	for _, c := range s.Completed {
		if c == code {
			return true
		}
	}
	return false
}
