package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pokerjest/animeFolderOrganizer/internal/model"
	"github.com/pokerjest/animeFolderOrganizer/internal/subshare"
	"github.com/spf13/cobra"
)

func matchRows(matches []subshare.TitleMatch) [][]string {
	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		when := ""
		if m.Time != nil {
			when = m.Time.Format("2006-01-02")
		}
		rows = append(rows, []string{m.TitleChs, m.TitleCht, m.TitleJp, m.TitleEn, m.Type, when})
	}
	return rows
}

var matchHeaders = []string{"简体", "繁體", "日本語", "English", "Type", "Time"}

func newSearchCommand(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Substring search over the sub_share corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			matches, err := a.Corpus.Search(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(matches) == 0 {
				fmt.Fprintln(out, "No matches.")
				return nil
			}
			fmt.Fprintln(out, renderTable(matchHeaders, matchRows(matches), nil))
			fmt.Fprintf(out, "%d result(s)\n", len(matches))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of results")
	return cmd
}

func newBestCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "best <title>",
		Short: "Exact match first, otherwise the newest substring match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			m, err := a.Corpus.FindBestMatch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if m == nil {
				fmt.Fprintln(out, "No match.")
				return nil
			}
			fmt.Fprintln(out, renderTable(matchHeaders, matchRows([]subshare.TitleMatch{*m}), nil))
			return nil
		},
	}
}

func newDiagCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diag",
		Short: "Load the corpus and print diagnostics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cleanup, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			d, err := a.Corpus.Diagnostics(cmd.Context())
			if err != nil {
				return err
			}
			loaded := ""
			if !d.LoadedAt.IsZero() {
				loaded = d.LoadedAt.Format("2006-01-02 15:04:05")
			}
			rows := [][]string{
				{"db_path", d.DbPath},
				{"file_size", strconv.FormatInt(d.FileSize, 10)},
				{"raw_subs_tags", strconv.Itoa(d.RawSubsTagCount)},
				{"subs_elements", strconv.Itoa(d.SubsElementCount)},
				{"parsed", strconv.Itoa(d.ParsedCount)},
				{"records", strconv.Itoa(d.RecordCount)},
				{"fingerprint", d.Fingerprint},
				{"loaded_at", loaded},
				{"load_count", strconv.FormatInt(d.LoadCount, 10)},
				{"last_error", d.LastError},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}
}

func newUpdateDBCommand(opts *rootOptions) *cobra.Command {
	var importPath string
	cmd := &cobra.Command{
		Use:   "update-db",
		Short: "Download db.xml (or import a local copy) and reload it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cleanup, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			var result subshare.UpdateResult
			if importPath != "" {
				result = a.Store.ImportFromFile(cmd.Context(), importPath)
			} else {
				result = a.Store.UpdateFromRemote(cmd.Context())
			}
			if !result.Success {
				return errors.New(result.Error)
			}

			a.Corpus.Invalidate()
			d, err := a.Corpus.Diagnostics(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated from %s (%d bytes), %d records\n", result.Source, result.Size, d.RecordCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&importPath, "import", "", "import from a local db.xml instead of downloading")
	return cmd
}

func newScanCommand(opts *rootOptions) *cobra.Command {
	var apply bool
	var template string
	cmd := &cobra.Command{
		Use:   "scan <root>",
		Short: "Identify the folders under root and optionally rename them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := a.Scanner.Scan(cmd.Context(), args[0])
			if res == nil {
				return err
			}
			out := cmd.OutOrStdout()

			rows := make([][]string, 0, len(res.Folders))
			for _, f := range res.Folders {
				rows = append(rows, []string{f.Name, string(f.State), string(f.Verification), f.SelectedTitle, f.SuggestedName, f.ProviderError})
			}
			fmt.Fprintln(out, renderTable([]string{"Folder", "State", "Verification", "Title", "Suggested", "Error"}, rows, nil))
			fmt.Fprintf(out, "%d folder(s), %d identified, %d already organized\n", res.Total, res.Identified, res.AlreadyOrganized)
			if err != nil {
				return err
			}
			if !apply {
				return nil
			}

			if strings.TrimSpace(template) == "" {
				template = a.Scanner.Options().Template
			}
			sum, err := a.Renamer.Apply(cmd.Context(), pending(res.Folders), template)
			rows = rows[:0]
			for _, o := range sum.Outcomes {
				rows = append(rows, []string{o.Status, o.OriginalPath, o.NewPath, o.Message})
			}
			if len(rows) > 0 {
				fmt.Fprintln(out, renderTable([]string{"Status", "From", "To", "Message"}, rows, nil))
			}
			fmt.Fprintf(out, "Renamed %d, skipped %d, failed %d\n", sum.Success, sum.Skipped, sum.Failed)
			return err
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "rename identified folders after scanning")
	cmd.Flags().StringVar(&template, "template", "", "naming template (defaults to naming.template)")
	return cmd
}

// pending 已整理的文件夹不再改名
func pending(folders []*model.AnimeFolder) []*model.AnimeFolder {
	out := make([]*model.AnimeFolder, 0, len(folders))
	for _, f := range folders {
		if f.State != model.StateAlreadyOrganized {
			out = append(out, f)
		}
	}
	return out
}
