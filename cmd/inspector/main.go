// Command inspector reads the audit recorder's JSONL mirror files offline,
// without a running gateway or a database. It exists for incident review:
// filter the trail by table, actor or status, or summarize a day's activity.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tablegate/tablegate/internal/model"
)

var (
	flagDir    string
	flagTable  string
	flagActor  string
	flagStatus string
	flagLimit  int
)

func main() {
	root := &cobra.Command{
		Use:           "inspector",
		Short:         "Offline reader for audit mirror files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagDir, "dir", "./logs", "directory holding audit-*.jsonl files")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Print matching audit records, newest last",
		RunE:  runList,
	}
	listCmd.Flags().StringVar(&flagTable, "table", "", "only records for this table")
	listCmd.Flags().StringVar(&flagActor, "actor", "", "only records by this actor")
	listCmd.Flags().StringVar(&flagStatus, "status", "", "only records with this status (SUCCESS, DENIED, FAILURE)")
	listCmd.Flags().IntVar(&flagLimit, "limit", 0, "stop after this many records (0 = all)")

	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Count records per table, operation and status",
		RunE:  runSummary,
	}

	root.AddCommand(listCmd, summaryCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runList(cmd *cobra.Command, args []string) error {
	printed := 0
	return scan(flagDir, func(rec *model.AuditRecord) bool {
		if !match(rec) {
			return true
		}
		out, err := json.Marshal(rec)
		if err != nil {
			return true
		}
		fmt.Println(string(out))
		printed++
		return flagLimit <= 0 || printed < flagLimit
	})
}

func runSummary(cmd *cobra.Command, args []string) error {
	counts := make(map[string]int)
	err := scan(flagDir, func(rec *model.AuditRecord) bool {
		key := fmt.Sprintf("%-24s %-8s %s", rec.Table, rec.Operation, rec.Status)
		counts[key]++
		return true
	})
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s %6d\n", k, counts[k])
	}
	return nil
}

func match(rec *model.AuditRecord) bool {
	if flagTable != "" && rec.Table != flagTable {
		return false
	}
	if flagActor != "" && rec.Actor != flagActor {
		return false
	}
	if flagStatus != "" && string(rec.Status) != flagStatus {
		return false
	}
	return true
}

// scan walks the mirror files in name order (dates sort lexically) and feeds
// each decoded record to fn until fn returns false. Corrupt lines are
// skipped; a half-written tail line must not abort an incident review.
func scan(dir string, fn func(*model.AuditRecord) bool) error {
	files, err := filepath.Glob(filepath.Join(dir, "audit-*.jsonl"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no audit mirror files under %s", dir)
	}
	sort.Strings(files)

	for _, file := range files {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			var rec model.AuditRecord
			if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
				continue
			}
			if !fn(&rec) {
				f.Close()
				return nil
			}
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return err
		}
		f.Close()
	}
	return nil
}
