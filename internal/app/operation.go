package app

import (
	"fmt"

	"pinvault/internal/fs"
	"pinvault/internal/pv"
)

// ImportEvent reports the outcome of one host file during a bulk import.
// Done counts the files handled so far, this one included.
type ImportEvent struct {
	Source fs.Source
	Result *pv.ImportResult
	Err    error
	Done   int
	Total  int
}

// ImportSummary tallies a bulk import.
type ImportSummary struct {
	Added   int
	Renamed int
	Skipped int
	Failed  int
	// Folders counts the vault folders created to mirror host directories.
	Folders int
}

func (s *ImportSummary) record(res *pv.ImportResult, err error) {
	if err != nil {
		s.Failed++
		return
	}
	switch res.Outcome {
	case pv.ImportAdded:
		s.Added++
	case pv.ImportRenamed:
		s.Renamed++
	case pv.ImportSkipped:
		s.Skipped++
	}
}

// Total returns the number of files handled.
func (s ImportSummary) Total() int {
	return s.Added + s.Renamed + s.Skipped + s.Failed
}

func (s ImportSummary) String() string {
	return fmt.Sprintf("%d added, %d renamed, %d skipped, %d failed", s.Added, s.Renamed, s.Skipped, s.Failed)
}
