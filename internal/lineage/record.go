// Package lineage models the per-book artifact snapshots produced by the song
// extraction pipeline and derives completeness and consistency from them.
//
// Records are produced wholesale by an external generation step and are
// read-only here. A re-run of a book produces a new record with a suffixed
// identifier; every record is evaluated on its own.
package lineage

import "time"

// TrackedCheckpoints is the number of artifact checkpoints counted towards
// completeness.
const TrackedCheckpoints = 13

// NoLocalFolder is the local_folder sentinel for books without local artifacts.
const NoLocalFolder = "N/A"

// Summary document names tracked under the pipeline's intermediate stage.
const (
	SummaryTOCDiscovery     = "toc_discovery"
	SummaryTOCParse         = "toc_parse"
	SummaryPageAnalysis     = "page_analysis"
	SummaryPageMapping      = "page_mapping"
	SummarySongVerification = "song_verification"
	SummaryPDFSplit         = "pdf_split"
)

// SummaryNames lists the tracked intermediate summaries in pipeline order.
var SummaryNames = []string{
	SummaryTOCDiscovery,
	SummaryTOCParse,
	SummaryPageAnalysis,
	SummaryPageMapping,
	SummarySongVerification,
	SummaryPDFSplit,
}

// Verdict is the consistency outcome for a record.
type Verdict string

const (
	Consistent   Verdict = "CONSISTENT"
	Inconsistent Verdict = "INCONSISTENT"
)

// Record is the canonical snapshot of one book-processing attempt.
type Record struct {
	BookID                string      `json:"book_id" yaml:"book_id"`
	Completeness          Completion  `json:"completeness" yaml:"completeness"`
	Consistency           Consistency `json:"consistency" yaml:"consistency"`
	Artifacts             Artifacts   `json:"artifacts" yaml:"artifacts"`
	PageAnalysisErrorRate float64     `json:"page_analysis_error_rate" yaml:"page_analysis_error_rate"`
	LocalFolder           string      `json:"local_folder" yaml:"local_folder"`
}

// Completion is the stored completeness block.
type Completion struct {
	ExistsCount   int     `json:"exists_count" yaml:"exists_count"`
	TotalExpected int     `json:"total_expected" yaml:"total_expected"`
	Percentage    float64 `json:"percentage" yaml:"percentage"`
}

// Consistency is the stored consistency block.
type Consistency struct {
	Status        Verdict `json:"status" yaml:"status"`
	VerifiedSongs int     `json:"verified_songs" yaml:"verified_songs"`
	OutputFiles   int     `json:"output_files" yaml:"output_files"`
	LocalPDFs     int     `json:"local_pdfs" yaml:"local_pdfs"`
}

// Artifacts holds the eight stage snapshots.
type Artifacts struct {
	SourcePDF      DocumentRef        `json:"source_pdf" yaml:"source_pdf"`
	PipelineRun    PipelineRun        `json:"pipeline_run" yaml:"pipeline_run"`
	Summaries      map[string]Summary `json:"summaries" yaml:"summaries"`
	OutputManifest DocumentRef        `json:"output_manifest" yaml:"output_manifest"`
	OutputFiles    FileCount          `json:"output_files" yaml:"output_files"`
	LocalManifest  LocalManifest      `json:"local_manifest" yaml:"local_manifest"`
	LocalFiles     FileCount          `json:"local_files" yaml:"local_files"`
	Provenance     Provenance         `json:"provenance" yaml:"provenance"`
}

// DocumentRef records whether a stored document exists and where.
type DocumentRef struct {
	Exists bool   `json:"exists" yaml:"exists"`
	URI    string `json:"uri,omitempty" yaml:"uri,omitempty"`
}

// PipelineRun summarizes the record-store entry for the processing run.
type PipelineRun struct {
	Exists    bool   `json:"exists" yaml:"exists"`
	Status    string `json:"status,omitempty" yaml:"status,omitempty"`
	Artist    string `json:"artist,omitempty" yaml:"artist,omitempty"`
	Title     string `json:"title,omitempty" yaml:"title,omitempty"`
	SongCount int    `json:"song_count" yaml:"song_count"`
}

// Summary is an intermediate summary document with its derived count.
type Summary struct {
	Exists bool `json:"exists" yaml:"exists"`
	Count  int  `json:"count" yaml:"count"`
}

// FileCount is a bare count of files found at a stage.
type FileCount struct {
	Count int `json:"count" yaml:"count"`
}

// LocalManifest describes the manifest in the local archive.
type LocalManifest struct {
	Exists    bool   `json:"exists" yaml:"exists"`
	Folder    string `json:"folder,omitempty" yaml:"folder,omitempty"`
	SongCount int    `json:"song_count" yaml:"song_count"`
	FileCount int    `json:"file_count" yaml:"file_count"`
}

// Provenance is the verification record written after a run.
type Provenance struct {
	Exists          bool   `json:"exists" yaml:"exists"`
	Status          string `json:"status,omitempty" yaml:"status,omitempty"`
	ActualSongCount int    `json:"actual_song_count" yaml:"actual_song_count"`
}

// Title returns a display title for the record, falling back to the book ID.
func (r Record) Title() string {
	run := r.Artifacts.PipelineRun
	switch {
	case run.Artist != "" && run.Title != "":
		return run.Artist + " - " + run.Title
	case run.Title != "":
		return run.Title
	default:
		return r.BookID
	}
}

// HasLocalFolder reports whether the record points at local artifacts.
func (r Record) HasLocalFolder() bool {
	return r.LocalFolder != "" && r.LocalFolder != NoLocalFolder
}

// Batch is one generated collection covering all known books.
type Batch struct {
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	Records     []Record  `json:"records" yaml:"records"`
}
