package domain

import "fmt"

// WorklistKind names the persisted predicate a stage pulls its pks from.
type WorklistKind string

const (
	// WorklistDetail selects standards without a DetailInfo row.
	WorklistDetail WorklistKind = "detail"
	// WorklistDownload selects standards without a DownloadRecord.
	WorklistDownload WorklistKind = "download"
	// WorklistRetry selects unfinished downloads whose retry count is below MaxRetries.
	WorklistRetry WorklistKind = "retry"
)

// WorklistQuery selects pks still requiring work, ordered by pk.
// After, when set, restricts the result to pks sorting after it.
type WorklistQuery struct {
	Kind       WorklistKind
	MaxRetries int
	After      string
}

// Resume returns a copy of the query positioned after pk.
func (q WorklistQuery) Resume(pk string) WorklistQuery {
	q.After = pk
	return q
}

// RunStats aggregates the outcome of one batch run.
type RunStats struct {
	Total       int64
	Processed   int
	Succeeded   int
	Failed      int
	Interrupted bool
}

func (s RunStats) String() string {
	state := "completed"
	if s.Interrupted {
		state = "interrupted"
	}
	return fmt.Sprintf("%s: succeeded %d, failed %d, processed %d of %d",
		state, s.Succeeded, s.Failed, s.Processed, s.Total)
}
