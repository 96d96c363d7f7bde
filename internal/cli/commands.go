package cli

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"regassist/internal/checklist"
	"regassist/internal/diff"
	"regassist/internal/document"
	"regassist/internal/pipeline"
	id "regassist/pkg/domain"
	"regassist/pkg/platform/audit"
)

func (a *app) segmentCmd() *cobra.Command {
	var (
		versionLabel string
		documentID   string
		title        string
		encoding     string
		classify     bool
		out          string
	)
	cmd := &cobra.Command{
		Use:   "segment FILE",
		Short: "Segment a regulatory document into clauses",
		Long: `Normalize and segment a plain-text regulatory document. The result is a
version file consumed by classify, diff and checklist. Pass --document-id to
file a new version under an existing document.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}
			raw := document.RawDocument{
				Content:  content,
				Encoding: encoding,
				Metadata: document.Metadata{Title: title, VersionLabel: versionLabel},
			}
			if documentID != "" {
				if raw.Metadata.DocumentID, err = id.ParseDocumentID(documentID); err != nil {
					return fmt.Errorf("--document-id: %w", err)
				}
			}

			run := a.service.Ingest
			if classify {
				run = a.service.Process
			}
			v, err := run(ctxOf(cmd), raw)
			if err != nil {
				return err
			}
			return writeJSON(cmd, out, v)
		},
	}
	cmd.Flags().StringVar(&versionLabel, "version", "", "version label, e.g. 2024-01 (required)")
	cmd.Flags().StringVar(&documentID, "document-id", "", "existing document id (default: new document)")
	cmd.Flags().StringVar(&title, "title", "", "document title")
	cmd.Flags().StringVar(&encoding, "encoding", "utf-8", "declared text encoding")
	cmd.Flags().BoolVar(&classify, "classify", false, "classify clauses after segmentation")
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default: stdout)")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}

func (a *app) classifyCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "classify VERSION_FILE",
		Short: "Grade the risk of every clause in a version file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := readVersion(args[0])
			if err != nil {
				return err
			}
			classified, err := a.service.Classify(ctxOf(cmd), v)
			if err != nil {
				return err
			}
			return writeJSON(cmd, out, classified)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func (a *app) diffCmd() *cobra.Command {
	var (
		out     string
		summary bool
	)
	cmd := &cobra.Command{
		Use:   "diff SOURCE_VERSION_FILE TARGET_VERSION_FILE",
		Short: "Compare two versions of a document clause by clause",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readVersion(args[0])
			if err != nil {
				return err
			}
			target, err := readVersion(args[1])
			if err != nil {
				return err
			}
			res, err := a.service.Compare(ctxOf(cmd), source, target)
			if err != nil {
				return err
			}
			if summary {
				printDiffSummary(cmd, res)
				if out == "" {
					return nil
				}
			}
			return writeJSON(cmd, out, res)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&summary, "summary", false, "print a readable summary instead of JSON")
	return cmd
}

func (a *app) checklistCmd() *cobra.Command {
	var (
		diffPath   string
		export     string
		resourceID string
		out        string
	)
	cmd := &cobra.Command{
		Use:   "checklist VERSION_FILE",
		Short: "Derive compliance checklist items from a version",
		Long: `Derive checklist items from every clause of a version, or with --diff only
from the clauses the diff reports as added or modified. --export csv writes
the task, priority, owner and sourceRef table.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := ctxOf(cmd)
			v, err := readVersion(args[0])
			if err != nil {
				return err
			}

			var items []checklist.Item
			if diffPath != "" {
				var res diff.Result
				if err := readJSON(diffPath, &res); err != nil {
					return err
				}
				items, err = a.service.ChecklistFromDiff(ctx, &res, v)
			} else {
				items, err = a.service.Checklist(ctx, v)
			}
			if err != nil {
				return err
			}

			switch export {
			case "":
				return writeJSON(cmd, out, items)
			case "csv", "json":
				if resourceID == "" {
					resourceID = v.Metadata.DocumentID.String()
				}
				table, err := a.service.Export(ctx, resourceID, items)
				if err != nil {
					return err
				}
				if export == "json" {
					return writeJSON(cmd, out, table)
				}
				return writeCSV(cmd, out, table)
			default:
				return fmt.Errorf("--export must be csv or json, got %q", export)
			}
		},
	}
	cmd.Flags().StringVar(&diffPath, "diff", "", "diff file limiting items to changed clauses")
	cmd.Flags().StringVar(&export, "export", "", "export the checklist table as csv or json")
	cmd.Flags().StringVar(&resourceID, "resource-id", "", "resource the export is recorded against (default: document id)")
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func (a *app) auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit ledger",
	}

	var (
		actor    string
		actions  []string
		resource string
		since    string
		limit    int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List audit entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := audit.Filter{Actor: actor, ResourceID: resource, Limit: limit}
			for _, act := range actions {
				f.Actions = append(f.Actions, audit.Action(act))
			}
			if since != "" {
				d, err := time.ParseDuration(since)
				if err != nil {
					return fmt.Errorf("--since: %w", err)
				}
				f.Since = time.Now().Add(-d)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTIME\tACTION\tACTOR\tROLE\tRESOURCE\tDETAILS")
			for it, err := range a.log.Query(ctxOf(cmd), f) {
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
					it.ID, it.Timestamp.Format(time.RFC3339), it.Action, it.Actor, it.Role, it.ResourceID, formatDetails(it.Details))
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&actor, "actor", "", "only entries by this actor")
	list.Flags().StringSliceVar(&actions, "action", nil, "only these actions (repeatable)")
	list.Flags().StringVar(&resource, "resource", "", "only entries for this resource id")
	list.Flags().StringVar(&since, "since", "", "only entries newer than this duration, e.g. 24h")
	list.Flags().IntVar(&limit, "limit", 50, "maximum entries (0: all)")

	verify := &cobra.Command{
		Use:   "verify",
		Short: "Verify the hash chain of the audit ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := a.log.Verify(ctxOf(cmd))
			if err != nil {
				var chainErr *audit.ChainError
				if errors.As(err, &chainErr) {
					return fmt.Errorf("ledger %s is corrupt after checking %d entries: %w", a.store.Path(), n, err)
				}
				return err
			}
			cmd.Printf("ledger %s: %d entries verified\n", a.store.Path(), n)
			return nil
		},
	}

	cmd.AddCommand(list, verify)
	return cmd
}

func printDiffSummary(cmd *cobra.Command, res *diff.Result) {
	cmd.Printf("%s -> %s: %d added, %d removed, %d modified, %d unchanged\n",
		res.SourceVersion, res.TargetVersion, res.Stats.Added, res.Stats.Removed, res.Stats.Modified, res.Stats.Unchanged)
	for _, seg := range res.Segments {
		if seg.Type == diff.Unchanged && seg.Summary == "" {
			continue
		}
		line := fmt.Sprintf("  %-9s %s", seg.Type, seg.Title)
		if seg.Summary != "" {
			line += " (" + seg.Summary + ")"
		}
		cmd.Println(line)
	}
}

func formatDetails(details map[string]string) string {
	if len(details) == 0 {
		return ""
	}
	b, err := json.Marshal(details)
	if err != nil {
		return ""
	}
	return string(b)
}

func readVersion(path string) (*pipeline.Version, error) {
	var v pipeline.Version
	if err := readJSON(path, &v); err != nil {
		return nil, err
	}
	if strings.TrimSpace(v.Label()) == "" {
		return nil, fmt.Errorf("%s: not a version file (missing metadata.version)", path)
	}
	for i := range v.Clauses {
		if v.Clauses[i].Version == "" {
			v.Clauses[i].Version = v.Label()
		}
	}
	return &v, nil
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(cmd *cobra.Command, path string, v any) error {
	w, closeFn, err := output(cmd, path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = closeFn()
		return fmt.Errorf("write output: %w", err)
	}
	return closeFn()
}

func writeCSV(cmd *cobra.Command, path string, t checklist.Table) error {
	w, closeFn, err := output(cmd, path)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	err = cw.Write(t.Columns)
	if err == nil {
		err = cw.WriteAll(t.Rows)
	}
	if err != nil {
		_ = closeFn()
		return fmt.Errorf("write csv: %w", err)
	}
	return closeFn()
}
