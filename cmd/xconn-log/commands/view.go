// Package commands implements the xconn-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xconn/xconn-go/pkg/log"
)

// FilterFlags holds the raw filter flag values shared by all commands.
type FilterFlags struct {
	Account   string
	AttemptID string
	Category  string
	Since     string
	Until     string
}

// Filter converts the flag values into a log.Filter.
func (f FilterFlags) Filter() (log.Filter, error) {
	filter := log.Filter{
		Account:   strings.ToLower(strings.TrimSpace(f.Account)),
		AttemptID: f.AttemptID,
	}
	if f.Category != "" {
		c, err := ParseCategoryFlag(f.Category)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Category = &c
	}
	if f.Since != "" {
		ts, err := parseTime(f.Since)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid --since: %w", err)
		}
		filter.TimeStart = &ts
	}
	if f.Until != "" {
		ts, err := parseTime(f.Until)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid --until: %w", err)
		}
		filter.TimeEnd = &ts
	}
	return filter, nil
}

func parseTime(s string) (time.Time, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return time.Now().Add(-d), nil
	}
	return time.Parse(time.RFC3339, s)
}

// ParseCategoryFlag parses a category string from a command-line flag
// (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "state":
		return log.CategoryState, nil
	case "config":
		return log.CategoryConfig, nil
	case "error":
		return log.CategoryError, nil
	case "outcome":
		return log.CategoryOutcome, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be state, config, error, or outcome)", s)
	}
}

// RunView writes matching events in human-readable form.
func RunView(path string, filter log.Filter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	fmt.Fprintf(w, "%s [attempt:%s] %s %s\n",
		ts, shortenID(event.AttemptID), event.Account, event.Category.String())

	switch {
	case event.StateChange != nil:
		sc := event.StateChange
		if sc.OldState != "" {
			fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
		} else {
			fmt.Fprintf(w, "  -> %s\n", sc.NewState)
		}
		if sc.Reason != "" {
			fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
		}
	case event.Resolver != nil:
		fmt.Fprintf(w, "  Resolver: %s\n", event.Resolver.Strategy)
		if event.Resolver.ProtocolDebug {
			fmt.Fprintln(w, "  ProtocolDebug: on")
		}
	case event.Error != nil:
		fmt.Fprintf(w, "  Kind: %s\n", event.Error.Kind)
		if event.Error.Escalation != "" {
			fmt.Fprintf(w, "  Escalation: %s\n", event.Error.Escalation)
		}
		for i, line := range strings.Split(event.Error.Message, "\n") {
			if i == 0 {
				fmt.Fprintf(w, "  Message: %s\n", line)
				continue
			}
			fmt.Fprintf(w, "           %s\n", line)
		}
	case event.Outcome != nil:
		fmt.Fprintf(w, "  Result: %s\n", event.Outcome.Result)
		if event.Outcome.Escalated {
			fmt.Fprintln(w, "  Escalated: account disabled")
		}
		if event.Outcome.Duration > 0 {
			fmt.Fprintf(w, "  Duration: %s\n", formatDuration(event.Outcome.Duration))
		}
	}

	fmt.Fprintln(w)
}

// shortenID returns the first 8 characters of an attempt ID.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}
