package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xconn/xconn-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents      int
	EventsByCategory map[log.Category]int
	Results          map[string]int
	Accounts         map[string]*AccountStats
	TimeRange        struct {
		Start time.Time
		End   time.Time
	}
}

// AccountStats holds statistics for a single account.
type AccountStats struct {
	Attempts    int
	Escalations int
	LastResult  string
	LastSeen    time.Time
}

// CollectStats reads the matching events of path into a Stats.
func CollectStats(path string, filter log.Filter) (*Stats, error) {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByCategory: make(map[log.Category]int),
		Results:          make(map[string]int),
		Accounts:         make(map[string]*AccountStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsByCategory[event.Category]++

		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		acct, ok := stats.Accounts[event.Account]
		if !ok {
			acct = &AccountStats{}
			stats.Accounts[event.Account] = acct
		}
		if event.Timestamp.After(acct.LastSeen) {
			acct.LastSeen = event.Timestamp
		}

		if event.Outcome != nil {
			stats.Results[event.Outcome.Result]++
			acct.Attempts++
			acct.LastResult = event.Outcome.Result
			if event.Outcome.Escalated {
				acct.Escalations++
			}
		}
	}
	return stats, nil
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, filter log.Filter, w io.Writer) error {
	stats, err := CollectStats(path, filter)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Connection Attempt Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryState, log.CategoryConfig, log.CategoryError, log.CategoryOutcome} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.Results) > 0 {
		fmt.Fprintln(w, "Results:")
		results := make([]string, 0, len(stats.Results))
		for r := range stats.Results {
			results = append(results, r)
		}
		sort.Strings(results)
		for _, r := range results {
			fmt.Fprintf(w, "  %-24s %d\n", r+":", stats.Results[r])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Accounts: %d\n", len(stats.Accounts))
	ids := make([]string, 0, len(stats.Accounts))
	for id := range stats.Accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		a := stats.Accounts[id]
		fmt.Fprintf(w, "  %s: %d attempts", id, a.Attempts)
		if a.LastResult != "" {
			fmt.Fprintf(w, ", last %s", a.LastResult)
		}
		if a.Escalations > 0 {
			fmt.Fprintf(w, ", %d escalated", a.Escalations)
		}
		fmt.Fprintln(w)
	}
}
