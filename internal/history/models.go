package history

import "time"

// Run is one archived batch run.
type Run struct {
	ID         string
	Task       string
	StartedAt  time.Time
	FinishedAt time.Time
	State      string
	Total      int
	Completed  int
	Failed     int
	Cancelled  int
}

// RunItem is one item outcome within an archived run.
type RunItem struct {
	RunID        string
	ItemID       string
	Name         string
	Status       string
	ErrorMessage string
	DurationMS   int64
}
