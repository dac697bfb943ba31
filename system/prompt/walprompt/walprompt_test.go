package walprompt

import "testing"

func TestExtractWakeupReadsNamedColumns(t *testing.T) {
	values := map[string]string{"topic": "order.created", "pipeline_id": "3"}
	name, pipelineID, ok := extractWakeup(values, "topic", "pipeline_id")
	if !ok || name != "order.created" || pipelineID != 3 {
		t.Fatalf("got (%q, %d, %v), want (order.created, 3, true)", name, pipelineID, ok)
	}
}

func TestExtractWakeupMissingColumnIsNotOK(t *testing.T) {
	values := map[string]string{"pipeline_id": "3"}
	if _, _, ok := extractWakeup(values, "topic", "pipeline_id"); ok {
		t.Fatal("expected ok=false when name column is absent")
	}
}

func TestExtractWakeupNonNumericPipelineIDIsNotOK(t *testing.T) {
	values := map[string]string{"topic": "order.created", "pipeline_id": "not-a-number"}
	if _, _, ok := extractWakeup(values, "topic", "pipeline_id"); ok {
		t.Fatal("expected ok=false for a non-numeric pipeline_id")
	}
}
