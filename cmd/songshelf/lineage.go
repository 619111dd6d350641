package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/songshelf/internal/api"
	"github.com/jackzampolin/songshelf/internal/config"
	"github.com/jackzampolin/songshelf/internal/home"
	"github.com/jackzampolin/songshelf/internal/lineage"
)

// lineageReport is an offline evaluation of a lineage batch.
type lineageReport struct {
	Source      string               `json:"source" yaml:"source"`
	GeneratedAt time.Time            `json:"generated_at" yaml:"generated_at"`
	Stats       lineage.Stats        `json:"stats" yaml:"stats"`
	Books       []lineage.Evaluation `json:"books" yaml:"books"`
}

func (r lineageReport) Headers() []string {
	return []string{"BOOK", "COMPLETE", "CONSISTENCY", "SONGS", "FILES", "PDFS", "DRIFT"}
}

func (r lineageReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Books))
	for _, b := range r.Books {
		drift := ""
		if len(b.Drift) > 0 {
			drift = strconv.Itoa(len(b.Drift))
		}
		rows = append(rows, []string{
			b.BookID,
			fmt.Sprintf("%.1f%%", b.Percentage),
			string(b.Verdict),
			strconv.Itoa(b.VerifiedSongs),
			strconv.Itoa(b.OutputFiles),
			strconv.Itoa(b.LocalPDFs),
			drift,
		})
	}
	return rows
}

func (r lineageReport) RightAlignedColumns() []int { return []int{1, 3, 4, 5} }

var (
	reportSource       string
	reportInconsistent bool
	reportSave         bool
)

var lineageCmd = &cobra.Command{
	Use:   "lineage",
	Short: "Inspect a lineage batch without a running server",
}

var lineageReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Evaluate completeness and consistency of a lineage batch",
	Long: `Load a lineage batch and recompute completeness and consistency for
every record. The source defaults to lineage.source from the config, or
~/.songshelf/lineage.json.

Examples:
  songshelf lineage report
  songshelf lineage report --inconsistent
  songshelf lineage report --source s3://lineage/batch.json --save`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		cfgMgr, err := config.NewManager(cfgFile, h.Path())
		if err != nil {
			return err
		}
		cfg := cfgMgr.Get()

		uri := reportSource
		if uri == "" {
			uri = cfg.Lineage.Source
		}
		source, err := lineage.OpenSource(ctx, h.LineageSource(uri), cfg.Lineage.S3)
		if err != nil {
			return err
		}
		rc, err := source.Open(ctx)
		if err != nil {
			return err
		}
		defer rc.Close()
		batch, err := lineage.Load(rc)
		if err != nil {
			return fmt.Errorf("%s: %w", source, err)
		}

		report := lineageReport{
			Source:      source.String(),
			GeneratedAt: time.Now().UTC(),
			Stats:       lineage.Summarize(batch.Records),
		}
		for _, rec := range batch.Records {
			ev := lineage.Evaluate(rec)
			if reportInconsistent && ev.Verdict != lineage.Inconsistent {
				continue
			}
			report.Books = append(report.Books, ev)
		}

		if reportSave {
			if err := h.EnsureExists(); err != nil {
				return err
			}
			path := filepath.Join(h.ReportsPath(), "lineage-"+report.GeneratedAt.Format("20060102-150405")+".json")
			if err := api.OutputToFile(report, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Report saved to %s\n", path)
		}
		return api.Output(report)
	},
}

func init() {
	lineageReportCmd.Flags().StringVar(&reportSource, "source", "", "Lineage batch path or s3://bucket/key URI")
	lineageReportCmd.Flags().BoolVar(&reportInconsistent, "inconsistent", false, "Only list inconsistent records")
	lineageReportCmd.Flags().BoolVar(&reportSave, "save", false, "Also save the report under the home reports directory")

	lineageCmd.AddCommand(lineageReportCmd)
	rootCmd.AddCommand(lineageCmd)
}
