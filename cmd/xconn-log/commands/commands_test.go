package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xconn/xconn-go/pkg/log"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "attempts.xlog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

var testTime = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func attemptEvents() []log.Event {
	return []log.Event{
		{
			Timestamp: testTime, AttemptID: "11111111-aaaa", Account: "alice@example.org",
			Category: log.CategoryConfig,
			Resolver: &log.ResolverEvent{Strategy: "dnsclient", ProtocolDebug: true},
		},
		{
			Timestamp: testTime.Add(time.Millisecond), AttemptID: "11111111-aaaa", Account: "alice@example.org",
			Category:    log.CategoryState,
			StateChange: &log.StateChangeEvent{NewState: "CONNECTING"},
		},
		{
			Timestamp: testTime.Add(2 * time.Millisecond), AttemptID: "11111111-aaaa", Account: "alice@example.org",
			Category: log.CategoryError,
			Error: &log.ErrorEventData{
				Kind:       "AUTHORIZATION",
				Message:    "login: not-authorized\ncaused by: bad password",
				Escalation: "AUTHORIZATION",
			},
		},
		{
			Timestamp: testTime.Add(3 * time.Millisecond), AttemptID: "11111111-aaaa", Account: "alice@example.org",
			Category: log.CategoryOutcome,
			Outcome:  &log.OutcomeEvent{Result: "AUTHORIZATION_FAILURE", Escalated: true, Duration: 3 * time.Millisecond},
		},
		{
			Timestamp: testTime.Add(time.Minute), AttemptID: "22222222-bbbb", Account: "bob@example.org",
			Category:    log.CategoryState,
			StateChange: &log.StateChangeEvent{NewState: "WAITING", Reason: "no network"},
		},
		{
			Timestamp: testTime.Add(time.Minute), AttemptID: "22222222-bbbb", Account: "bob@example.org",
			Category: log.CategoryOutcome,
			Outcome:  &log.OutcomeEvent{Result: "NO_NETWORK"},
		},
	}
}

func TestView(t *testing.T) {
	path := createTestLogFile(t, attemptEvents())

	var buf bytes.Buffer
	if err := RunView(path, log.Filter{}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"2026-03-02T09:30:00.000000Z [attempt:11111111] alice@example.org CONFIG",
		"Resolver: dnsclient",
		"ProtocolDebug: on",
		"-> CONNECTING",
		"Escalation: AUTHORIZATION",
		"Message: login: not-authorized",
		"           caused by: bad password",
		"Escalated: account disabled",
		"Duration: 3.000ms",
		"Reason: no network",
		"Result: NO_NETWORK",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestViewFilter(t *testing.T) {
	path := createTestLogFile(t, attemptEvents())

	filter, err := FilterFlags{Account: "Bob@Example.org", Category: "outcome"}.Filter()
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}

	var buf bytes.Buffer
	if err := RunView(path, filter, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	out := buf.String()

	if strings.Count(out, "[attempt:") != 1 {
		t.Errorf("expected exactly one event, got:\n%s", out)
	}
	if !strings.Contains(out, "NO_NETWORK") {
		t.Errorf("expected bob's outcome, got:\n%s", out)
	}
}

func TestFilterFlags(t *testing.T) {
	tests := []struct {
		name    string
		flags   FilterFlags
		wantErr bool
	}{
		{name: "empty", flags: FilterFlags{}},
		{name: "category", flags: FilterFlags{Category: "ERROR"}},
		{name: "bad category", flags: FilterFlags{Category: "message"}, wantErr: true},
		{name: "since duration", flags: FilterFlags{Since: "1h"}},
		{name: "until rfc3339", flags: FilterFlags{Until: "2026-03-02T10:00:00Z"}},
		{name: "bad since", flags: FilterFlags{Since: "yesterday"}, wantErr: true},
		{name: "bad until", flags: FilterFlags{Until: "noon"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.flags.Filter()
			if (err != nil) != tt.wantErr {
				t.Errorf("Filter() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	f, err := FilterFlags{Until: "2026-03-02T09:31:00Z"}.Filter()
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if f.TimeEnd == nil || !f.TimeEnd.Equal(testTime.Add(time.Minute)) {
		t.Errorf("TimeEnd = %v", f.TimeEnd)
	}
}

func TestExportJSONL(t *testing.T) {
	path := createTestLogFile(t, attemptEvents())

	var buf bytes.Buffer
	if err := RunExport(path, log.Filter{AttemptID: "1111"}, "jsonl", "", &buf); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}

	var event log.Event
	if err := json.Unmarshal([]byte(lines[3]), &event); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if event.Outcome == nil || event.Outcome.Result != "AUTHORIZATION_FAILURE" {
		t.Errorf("last event = %+v", event)
	}
}

func TestExportCSVToFile(t *testing.T) {
	path := createTestLogFile(t, attemptEvents())
	output := filepath.Join(t.TempDir(), "out.csv")

	if err := RunExport(path, log.Filter{}, "csv", output, nil); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(output)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(rows) != 7 {
		t.Fatalf("expected header + 6 rows, got %d", len(rows))
	}
	if rows[0][1] != "attempt_id" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[3][6] != "AUTHORIZATION" || rows[3][7] != "AUTHORIZATION" {
		t.Errorf("error row = %v", rows[3])
	}
	if rows[4][8] != "AUTHORIZATION_FAILURE" || rows[4][9] != "3" {
		t.Errorf("outcome row = %v", rows[4])
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, attemptEvents())

	err := RunExport(path, log.Filter{}, "xml", "", &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("expected unknown format error, got %v", err)
	}
}

func TestStats(t *testing.T) {
	path := createTestLogFile(t, attemptEvents())

	stats, err := CollectStats(path, log.Filter{})
	if err != nil {
		t.Fatalf("CollectStats failed: %v", err)
	}
	if stats.TotalEvents != 6 {
		t.Errorf("TotalEvents = %d, want 6", stats.TotalEvents)
	}
	if stats.Results["NO_NETWORK"] != 1 || stats.Results["AUTHORIZATION_FAILURE"] != 1 {
		t.Errorf("Results = %v", stats.Results)
	}
	alice := stats.Accounts["alice@example.org"]
	if alice == nil || alice.Attempts != 1 || alice.Escalations != 1 {
		t.Errorf("alice = %+v", alice)
	}

	var buf bytes.Buffer
	if err := RunStats(path, log.Filter{}, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Total Events: 6",
		"OUTCOME:",
		"Accounts: 2",
		"alice@example.org: 1 attempts, last AUTHORIZATION_FAILURE, 1 escalated",
		"bob@example.org: 1 attempts, last NO_NETWORK",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.xlog")
	if err := RunView(missing, log.Filter{}, &bytes.Buffer{}); err == nil {
		t.Error("RunView should fail for a missing file")
	}
	if err := RunStats(missing, log.Filter{}, &bytes.Buffer{}); err == nil {
		t.Error("RunStats should fail for a missing file")
	}
}
