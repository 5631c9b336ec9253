package carencia

import (
	"sort"
	"time"

	"github.com/presenca-hub/presenca-engine/internal/domain/attendance"
)

// Classifier turns aggregated attendance counts into carência records for a
// period. It is stateless; the preservation policy for manual workflow state
// is decided per call through ClassifyOptions.
type Classifier struct{}

// NewClassifier creates a Classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// ClassifyOptions controls how a fresh classification treats the previous
// record set of the period.
type ClassifyOptions struct {
	// Previous is the record set being replaced, keyed by student. May be nil
	// on the first computation of a period.
	Previous map[int64]*Record

	// DiscardManualState restores the legacy destructive behavior: manual
	// workflow status and notes are dropped and every record restarts from
	// the automatic initial state. Off by default; the engine preserves
	// manual state for students who remain deficient.
	DiscardManualState bool

	// Now stamps the records; zero means time.Now().UTC().
	Now time.Time
}

// Classify produces one record per student from the per-student tallies.
// Cleared == (percentage >= period threshold) holds for every record straight
// out of classification; preserved manual state may then override the
// workflow section (and Cleared, for previously resolved records).
//
// An empty tally map yields an empty slice, not an error: a period with zero
// qualifying activities simply has no records. Results are ordered by student
// ID so repeated classifications of the same input are byte-identical.
func (c *Classifier) Classify(period *Period, perStudent map[int64]attendance.StatusCounts, opts ClassifyOptions) []*Record {
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	records := make([]*Record, 0, len(perStudent))
	for studentID, counts := range perStudent {
		rec := newRecord(period.ID, studentID, counts.Presences(), counts.Total(), period.MinimumPercentage, now)

		if !opts.DiscardManualState {
			if prev, ok := opts.Previous[studentID]; ok && prev.Provenance == ProvenanceManual {
				// Manual work survives the recompute as long as the student
				// still has something to remediate, and a manual resolution
				// always survives.
				if rec.IsDeficient() || prev.Status == WorkflowResolved {
					rec.adoptWorkflow(prev)
				}
			}
		}

		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StudentID < records[j].StudentID
	})

	return records
}

// Summary condenses a classified record set for logging and events.
type Summary struct {
	Total     int
	Cleared   int
	Deficient int
	Preserved int
}

// Summarize computes the summary of a record set.
func Summarize(records []*Record) Summary {
	var s Summary
	s.Total = len(records)
	for _, r := range records {
		if r.Computed.Cleared {
			s.Cleared++
		} else {
			s.Deficient++
		}
		if r.Provenance == ProvenanceManual {
			s.Preserved++
		}
	}
	return s
}

// IndexByStudent keys a record set by student ID. Helper for recompute flows
// that feed ClassifyOptions.Previous.
func IndexByStudent(records []*Record) map[int64]*Record {
	idx := make(map[int64]*Record, len(records))
	for _, r := range records {
		idx[r.StudentID] = r
	}
	return idx
}
