package lineage

import "errors"

// ErrUndefinedCompleteness is returned when completeness is requested against
// zero expected checkpoints.
var ErrUndefinedCompleteness = errors.New("completeness undefined for zero expected checkpoints")

// EvaluateConsistency returns Consistent iff the three song counts agree.
// Zero is not special-cased: (0, 0, 0) is consistent.
func EvaluateConsistency(verifiedSongs, outputFiles, localPDFs int) Verdict {
	if verifiedSongs == outputFiles && outputFiles == localPDFs {
		return Consistent
	}
	return Inconsistent
}

// Completeness returns 100*exists/total rounded half-up to one decimal.
// Counts must be non-negative; the ingestion boundary rejects anything else.
func Completeness(exists, total int) (float64, error) {
	if total == 0 {
		return 0, ErrUndefinedCompleteness
	}
	// Integer arithmetic in tenths keeps .x5 boundaries exact.
	tenths := (2000*exists + total) / (2 * total)
	return float64(tenths) / 10, nil
}

// CountCheckpoints derives exists_count from a record's stage snapshots.
func CountCheckpoints(r Record) int {
	a := r.Artifacts
	n := 0
	for _, ok := range []bool{
		a.SourcePDF.Exists,
		a.PipelineRun.Exists,
		a.OutputManifest.Exists,
		a.OutputFiles.Count > 0,
		a.LocalManifest.Exists,
		a.LocalFiles.Count > 0,
		a.Provenance.Exists,
	} {
		if ok {
			n++
		}
	}
	for _, name := range SummaryNames {
		if a.Summaries[name].Exists {
			n++
		}
	}
	return n
}

// Evaluation is the derived health of a single record.
type Evaluation struct {
	BookID        string  `json:"book_id" yaml:"book_id"`
	ExistsCount   int     `json:"exists_count" yaml:"exists_count"`
	TotalExpected int     `json:"total_expected" yaml:"total_expected"`
	Percentage    float64 `json:"percentage" yaml:"percentage"`
	Verdict       Verdict `json:"consistency" yaml:"consistency"`
	VerifiedSongs int     `json:"verified_songs" yaml:"verified_songs"`
	OutputFiles   int     `json:"output_files" yaml:"output_files"`
	LocalPDFs     int     `json:"local_pdfs" yaml:"local_pdfs"`
	// Drift lists stored fields that disagree with the recomputed values.
	Drift []string `json:"drift,omitempty" yaml:"drift,omitempty"`
}

// Evaluate recomputes completeness and consistency from the record's stored
// counts. The record is not modified.
func Evaluate(r Record) Evaluation {
	c := r.Consistency
	ev := Evaluation{
		BookID:        r.BookID,
		ExistsCount:   r.Completeness.ExistsCount,
		TotalExpected: r.Completeness.TotalExpected,
		Verdict:       EvaluateConsistency(c.VerifiedSongs, c.OutputFiles, c.LocalPDFs),
		VerifiedSongs: c.VerifiedSongs,
		OutputFiles:   c.OutputFiles,
		LocalPDFs:     c.LocalPDFs,
	}
	if pct, err := Completeness(ev.ExistsCount, ev.TotalExpected); err == nil {
		ev.Percentage = pct
	}

	if CountCheckpoints(r) != r.Completeness.ExistsCount {
		ev.Drift = append(ev.Drift, "completeness.exists_count")
	}
	if ev.Percentage != r.Completeness.Percentage {
		ev.Drift = append(ev.Drift, "completeness.percentage")
	}
	if c.Status != "" && c.Status != ev.Verdict {
		ev.Drift = append(ev.Drift, "consistency.status")
	}
	return ev
}

// IsComplete reports whether every tracked checkpoint exists.
func (e Evaluation) IsComplete() bool {
	return e.TotalExpected > 0 && e.ExistsCount == e.TotalExpected
}

// Stats aggregates evaluations across a set of records.
type Stats struct {
	Total          int     `json:"total" yaml:"total"`
	Consistent     int     `json:"consistent" yaml:"consistent"`
	Inconsistent   int     `json:"inconsistent" yaml:"inconsistent"`
	FullyComplete  int     `json:"fully_complete" yaml:"fully_complete"`
	AvgPercentage  float64 `json:"avg_percentage" yaml:"avg_percentage"`
	WithLocalFiles int     `json:"with_local_files" yaml:"with_local_files"`
}

// Summarize evaluates every record and aggregates the results.
func Summarize(records []Record) Stats {
	var s Stats
	var sum float64
	for _, r := range records {
		ev := Evaluate(r)
		s.Total++
		sum += ev.Percentage
		if ev.Verdict == Consistent {
			s.Consistent++
		} else {
			s.Inconsistent++
		}
		if ev.IsComplete() {
			s.FullyComplete++
		}
		if r.HasLocalFolder() {
			s.WithLocalFiles++
		}
	}
	if s.Total > 0 {
		s.AvgPercentage = float64(int(sum/float64(s.Total)*10+0.5)) / 10
	}
	return s
}
