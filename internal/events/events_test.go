package events

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestExportLogRoundTrip(t *testing.T) {
	collector := &CollectorEmitter{}
	collector.Emit(New(PlanStarted, "01ARZ3").WithData("stage", "dev"))
	collector.Emit(New(ApplyResource, "01ARZ3").
		WithData("id", "lambda_function/index").
		WithData("status", "created"))
	collector.Emit(New(ApplyCompleted, "01ARZ3").WithData("created", 1))

	path := filepath.Join(t.TempDir(), "events.json")
	if err := ExportLog(collector.Events, path); err != nil {
		t.Fatalf("ExportLog() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var decoded []Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(decoded) != 3 {
		t.Fatalf("decoded %d events, want 3", len(decoded))
	}
	if decoded[0].Type != PlanStarted || decoded[2].Type != ApplyCompleted {
		t.Errorf("event types = %s, %s, want %s, %s",
			decoded[0].Type, decoded[2].Type, PlanStarted, ApplyCompleted)
	}
	if decoded[1].Data["id"] != "lambda_function/index" {
		t.Errorf("resource event id = %v, want lambda_function/index", decoded[1].Data["id"])
	}
	for _, e := range decoded {
		if e.CorrelationID != "01ARZ3" {
			t.Errorf("correlation id = %q, want 01ARZ3", e.CorrelationID)
		}
	}
}
