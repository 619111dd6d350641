package lineage

import (
	"errors"
	"testing"
)

func TestEvaluateConsistency(t *testing.T) {
	tests := []struct {
		v, o, l int
		want    Verdict
	}{
		{16, 16, 16, Consistent},
		{16, 16, 17, Inconsistent},
		{17, 16, 16, Inconsistent},
		{16, 17, 16, Inconsistent},
		{0, 0, 0, Consistent},
		{0, 0, 1, Inconsistent},
		{3, 4, 5, Inconsistent},
	}
	for _, tt := range tests {
		if got := EvaluateConsistency(tt.v, tt.o, tt.l); got != tt.want {
			t.Errorf("EvaluateConsistency(%d, %d, %d) = %s, want %s", tt.v, tt.o, tt.l, got, tt.want)
		}
	}
}

func TestEvaluateConsistency_PairwiseEquality(t *testing.T) {
	for v := 0; v < 4; v++ {
		for o := 0; o < 4; o++ {
			for l := 0; l < 4; l++ {
				want := v == o && o == l
				got := EvaluateConsistency(v, o, l) == Consistent
				if got != want {
					t.Fatalf("EvaluateConsistency(%d, %d, %d) consistent = %v, want %v", v, o, l, got, want)
				}
			}
		}
	}
}

func TestCompleteness(t *testing.T) {
	tests := []struct {
		exists, total int
		want          float64
	}{
		{11, 13, 84.6},
		{9, 13, 69.2},
		{13, 13, 100},
		{0, 13, 0},
		{1, 8, 12.5},
		{7, 16, 43.8}, // 43.75 rounds half-up
		{1, 3, 33.3},
		{2, 3, 66.7},
	}
	for _, tt := range tests {
		got, err := Completeness(tt.exists, tt.total)
		if err != nil {
			t.Fatalf("Completeness(%d, %d) error = %v", tt.exists, tt.total, err)
		}
		if got != tt.want {
			t.Errorf("Completeness(%d, %d) = %v, want %v", tt.exists, tt.total, got, tt.want)
		}
	}
}

func TestCompleteness_ZeroTotal(t *testing.T) {
	_, err := Completeness(0, 0)
	if !errors.Is(err, ErrUndefinedCompleteness) {
		t.Fatalf("expected ErrUndefinedCompleteness, got %v", err)
	}
}

func TestCountCheckpoints(t *testing.T) {
	t.Run("full record", func(t *testing.T) {
		rec := fullRecord("book-a", 16)
		if got := CountCheckpoints(rec); got != TrackedCheckpoints {
			t.Errorf("CountCheckpoints() = %d, want %d", got, TrackedCheckpoints)
		}
	})

	t.Run("missing local stages", func(t *testing.T) {
		rec := fullRecord("book-b", 16)
		rec.Artifacts.LocalManifest.Exists = false
		rec.Artifacts.LocalFiles.Count = 0
		if got := CountCheckpoints(rec); got != 11 {
			t.Errorf("CountCheckpoints() = %d, want 11", got)
		}
	})

	t.Run("empty record", func(t *testing.T) {
		if got := CountCheckpoints(Record{BookID: "empty"}); got != 0 {
			t.Errorf("CountCheckpoints() = %d, want 0", got)
		}
	})
}

func TestEvaluate(t *testing.T) {
	t.Run("consistent and complete", func(t *testing.T) {
		ev := Evaluate(fullRecord("book-a", 16))
		if ev.Verdict != Consistent {
			t.Errorf("Verdict = %s, want CONSISTENT", ev.Verdict)
		}
		if ev.Percentage != 100 {
			t.Errorf("Percentage = %v, want 100", ev.Percentage)
		}
		if !ev.IsComplete() {
			t.Error("expected IsComplete")
		}
		if len(ev.Drift) != 0 {
			t.Errorf("unexpected drift: %v", ev.Drift)
		}
	})

	t.Run("verdict ignores completeness", func(t *testing.T) {
		rec := fullRecord("book-b", 16)
		rec.Completeness = Completion{ExistsCount: 2, TotalExpected: 13, Percentage: 15.4}
		ev := Evaluate(rec)
		if ev.Verdict != Consistent {
			t.Errorf("Verdict = %s, want CONSISTENT", ev.Verdict)
		}
		if ev.Percentage != 15.4 {
			t.Errorf("Percentage = %v, want 15.4", ev.Percentage)
		}
	})

	t.Run("mismatched counts", func(t *testing.T) {
		rec := fullRecord("book-c", 16)
		rec.Consistency.LocalPDFs = 17
		ev := Evaluate(rec)
		if ev.Verdict != Inconsistent {
			t.Errorf("Verdict = %s, want INCONSISTENT", ev.Verdict)
		}
		if len(ev.Drift) != 1 || ev.Drift[0] != "consistency.status" {
			t.Errorf("Drift = %v, want [consistency.status]", ev.Drift)
		}
	})

	t.Run("stored exists count disagrees with artifacts", func(t *testing.T) {
		rec := fullRecord("book-e", 16)
		rec.Artifacts = Artifacts{SourcePDF: DocumentRef{Exists: true}}
		rec.Completeness = Completion{ExistsCount: 2, TotalExpected: 13, Percentage: 15.4}
		ev := Evaluate(rec)
		if len(ev.Drift) != 1 || ev.Drift[0] != "completeness.exists_count" {
			t.Errorf("Drift = %v, want [completeness.exists_count]", ev.Drift)
		}
		if ev.ExistsCount != 2 || ev.Percentage != 15.4 {
			t.Errorf("ExistsCount = %d, Percentage = %v, want stored 2 and 15.4", ev.ExistsCount, ev.Percentage)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		rec := fullRecord("book-d", 9)
		rec.Consistency.OutputFiles = 8
		first := Evaluate(rec)
		second := Evaluate(rec)
		if first.Verdict != second.Verdict || first.Percentage != second.Percentage {
			t.Errorf("evaluations differ: %+v vs %+v", first, second)
		}
	})
}

func TestSummarize(t *testing.T) {
	a := fullRecord("a", 10)
	b := fullRecord("b", 10)
	b.Consistency.OutputFiles = 9
	b.Completeness = Completion{ExistsCount: 9, TotalExpected: 13, Percentage: 69.2}
	b.LocalFolder = NoLocalFolder

	stats := Summarize([]Record{a, b})
	if stats.Total != 2 || stats.Consistent != 1 || stats.Inconsistent != 1 {
		t.Errorf("unexpected counts: %+v", stats)
	}
	if stats.FullyComplete != 1 {
		t.Errorf("FullyComplete = %d, want 1", stats.FullyComplete)
	}
	if stats.WithLocalFiles != 1 {
		t.Errorf("WithLocalFiles = %d, want 1", stats.WithLocalFiles)
	}
	if stats.AvgPercentage != 84.6 {
		t.Errorf("AvgPercentage = %v, want 84.6", stats.AvgPercentage)
	}
}

func TestRecord_Title(t *testing.T) {
	rec := fullRecord("x", 1)
	if got := rec.Title(); got != "Various - Songbook x" {
		t.Errorf("Title() = %q", got)
	}
	rec.Artifacts.PipelineRun.Artist = ""
	if got := rec.Title(); got != "Songbook x" {
		t.Errorf("Title() = %q", got)
	}
	if got := (Record{BookID: "bare"}).Title(); got != "bare" {
		t.Errorf("Title() = %q", got)
	}
}

// fullRecord builds a record with every checkpoint present and all three song
// counts equal to songs.
func fullRecord(bookID string, songs int) Record {
	summaries := make(map[string]Summary, len(SummaryNames))
	for _, name := range SummaryNames {
		summaries[name] = Summary{Exists: true, Count: songs}
	}
	return Record{
		BookID:       bookID,
		Completeness: Completion{ExistsCount: 13, TotalExpected: 13, Percentage: 100},
		Consistency: Consistency{
			Status:        Consistent,
			VerifiedSongs: songs,
			OutputFiles:   songs,
			LocalPDFs:     songs,
		},
		Artifacts: Artifacts{
			SourcePDF:      DocumentRef{Exists: true, URI: "s3://input/" + bookID + ".pdf"},
			PipelineRun:    PipelineRun{Exists: true, Status: "completed", Artist: "Various", Title: "Songbook " + bookID, SongCount: songs},
			Summaries:      summaries,
			OutputManifest: DocumentRef{Exists: true, URI: "s3://output/" + bookID + "/manifest.json"},
			OutputFiles:    FileCount{Count: songs},
			LocalManifest:  LocalManifest{Exists: true, Folder: "/archive/" + bookID, SongCount: songs, FileCount: songs},
			LocalFiles:     FileCount{Count: songs},
			Provenance:     Provenance{Exists: true, Status: "verified", ActualSongCount: songs},
		},
		PageAnalysisErrorRate: 1.234567,
		LocalFolder:           "/archive/" + bookID,
	}
}
