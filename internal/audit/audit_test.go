package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestFileRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	r, err := NewFileRecorder(path)
	if err != nil {
		t.Fatalf("NewFileRecorder() error = %v", err)
	}

	r.Record(Event{Stage: "numbered-join", LineIndex: 0, Classification: "new-reference", Rationale: "entry marker"})
	r.Record(Event{Stage: "numbered-join", LineIndex: 1, Classification: "continuation", Rationale: "no entry marker"})
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("unmarshaling line: %v", err)
		}
		events = append(events, ev)
	}

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].RunID == "" || events[0].RunID != events[1].RunID {
		t.Error("events must share a non-empty run id")
	}
	if events[0].RunID != r.RunID() {
		t.Error("logged run id must match RunID()")
	}
	if events[0].Seq != 1 || events[1].Seq != 2 {
		t.Errorf("sequence = %d, %d, want 1, 2", events[0].Seq, events[1].Seq)
	}
	if events[1].Classification != "continuation" {
		t.Errorf("classification = %q", events[1].Classification)
	}
	if events[0].Time.IsZero() {
		t.Error("timestamp not stamped")
	}
}

func TestFileRecorder_Append(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	for i := 0; i < 2; i++ {
		r, err := NewFileRecorder(path)
		if err != nil {
			t.Fatal(err)
		}
		r.Record(Event{Stage: "apa-join"})
		if err := r.Close(); err != nil {
			t.Fatal(err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	if lines != 2 {
		t.Errorf("got %d lines, want 2 (runs must append)", lines)
	}
}

func TestSQLiteRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	r, err := NewSQLiteRecorder(path)
	if err != nil {
		t.Fatalf("NewSQLiteRecorder() error = %v", err)
	}

	r.Record(Event{Stage: "nonapa-join", LineIndex: 3, Classification: "continuation", Rationale: "yearless line"})
	r.Record(Event{Stage: "nonapa-join", LineIndex: 4, Classification: "new-reference", Rationale: "author line"})
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Reopen and read back.
	r2, err := NewSQLiteRecorder(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r2.Close()

	rows, err := r2.db.Query(
		`SELECT seq, stage, line_index, classification FROM decisions WHERE run_id = ? ORDER BY seq`,
		r.RunID(),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()

	type row struct {
		seq       int64
		stage     string
		lineIndex int
		class     string
	}
	var got []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.seq, &r.stage, &r.lineIndex, &r.class); err != nil {
			t.Fatal(err)
		}
		got = append(got, r)
	}
	if err := rows.Err(); err != nil {
		t.Fatal(err)
	}

	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got[0].seq != 1 || got[0].stage != "nonapa-join" || got[0].lineIndex != 3 {
		t.Errorf("row 0 = %+v", got[0])
	}
	if got[1].class != "new-reference" {
		t.Errorf("row 1 classification = %q", got[1].class)
	}
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	r.Record(Event{Stage: "x"})
	if err := r.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
