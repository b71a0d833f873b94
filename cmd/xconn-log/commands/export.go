package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/xconn/xconn-go/pkg/log"
)

// RunExport writes matching events to output (stdout when empty) as
// JSON lines or CSV.
func RunExport(path string, filter log.Filter, format, output string, stdout io.Writer) error {
	if format != "jsonl" && format != "csv" {
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	w := stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if format == "csv" {
		return exportCSV(reader, w)
	}
	return exportJSONL(reader, w)
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "attempt_id", "account", "category", "state", "resolver", "error_kind", "escalation", "result", "duration_ms"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		row := make([]string, len(header))
		row[0] = event.Timestamp.UTC().Format(time.RFC3339Nano)
		row[1] = event.AttemptID
		row[2] = event.Account
		row[3] = event.Category.String()
		if event.StateChange != nil {
			row[4] = event.StateChange.NewState
		}
		if event.Resolver != nil {
			row[5] = event.Resolver.Strategy
		}
		if event.Error != nil {
			row[6] = event.Error.Kind
			row[7] = event.Error.Escalation
		}
		if event.Outcome != nil {
			row[8] = event.Outcome.Result
			row[9] = strconv.FormatInt(event.Outcome.Duration.Milliseconds(), 10)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
