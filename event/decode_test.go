package event

import (
	"errors"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantType Type
		wantErr  bool
	}{
		{
			name:     "content event",
			raw:      `{"type":"content","data":{"chunk":"Hello "}}`,
			wantType: TypeContent,
		},
		{
			name:     "terminal complete",
			raw:      `{"type":"complete","data":{"summary":"done"}}`,
			wantType: TypeComplete,
		},
		{
			name:     "unknown type is forwarded",
			raw:      `{"type":"telemetry","data":{"cpu":12}}`,
			wantType: Type("telemetry"),
		},
		{
			name:     "event without data",
			raw:      `{"type":"analyzing"}`,
			wantType: TypeAnalyzing,
		},
		{
			name:     "timestamp preserved",
			raw:      `{"type":"content","data":{"chunk":"x"},"ts":1712345678901}`,
			wantType: TypeContent,
		},
		{
			name:    "malformed JSON",
			raw:     `{"type":"content","data":`,
			wantErr: true,
		},
		{
			name:    "missing type",
			raw:     `{"data":{"chunk":"orphan"}}`,
			wantErr: true,
		},
		{
			name:    "empty record",
			raw:     ``,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode([]byte(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Decode(%q) expected error, got %+v", tt.raw, ev)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode(%q) failed: %v", tt.raw, err)
			}
			if ev.Type != tt.wantType {
				t.Errorf("Decode type = %q, want %q", ev.Type, tt.wantType)
			}
		})
	}
}

func TestDecodeMissingTypeSentinel(t *testing.T) {
	_, err := Decode([]byte(`{"data":{}}`))
	if !errors.Is(err, ErrMissingType) {
		t.Errorf("expected ErrMissingType, got %v", err)
	}
}

func TestTypeIsKnown(t *testing.T) {
	known := []Type{
		TypeContent, TypeThinking, TypePlanning, TypeTaskUpdate,
		TypeSearching, TypeSource, TypeInsight, TypeProgress,
		TypeAnalyzing, TypeGenerating, TypeComplete, TypeError,
	}
	for _, typ := range known {
		if !typ.IsKnown() {
			t.Errorf("IsKnown(%q) = false, want true", typ)
		}
	}
	if Type("telemetry").IsKnown() {
		t.Error("IsKnown(telemetry) = true, want false")
	}
}

func TestTypeIsTerminal(t *testing.T) {
	if !TypeComplete.IsTerminal() || !TypeError.IsTerminal() {
		t.Error("complete and error must be terminal")
	}
	if TypeContent.IsTerminal() || TypeProgress.IsTerminal() {
		t.Error("content and progress must not be terminal")
	}
}

func TestParsePayloads(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"task_update","data":{"id":"s1","status":"completed","duration_ms":420}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	data, err := ParseTaskUpdate(ev)
	if err != nil {
		t.Fatalf("ParseTaskUpdate failed: %v", err)
	}
	if data.ID != "s1" || data.Status != StepCompleted || data.DurationMs != 420 {
		t.Errorf("unexpected payload: %+v", data)
	}

	// Wrong parser for the type fails.
	if _, err := ParseContent(ev); err == nil {
		t.Error("ParseContent on task_update should fail")
	}
}

func TestParseCompleteEmptyData(t *testing.T) {
	data, err := ParseComplete(Event{Type: TypeComplete})
	if err != nil {
		t.Fatalf("ParseComplete failed: %v", err)
	}
	if data.Summary != "" || len(data.FollowUpQuestions) != 0 {
		t.Errorf("expected zero-valued payload, got %+v", data)
	}
}

func TestRecordKeys(t *testing.T) {
	src := SourceRef{URL: "https://example.com/a"}
	if src.Key() != "https://example.com/a" {
		t.Errorf("source without ID keys by URL, got %q", src.Key())
	}
	src.ID = "src-1"
	if src.Key() != "src-1" {
		t.Errorf("source with ID keys by ID, got %q", src.Key())
	}

	file := GeneratedFile{ID: "f1", Name: "report.pdf"}
	if file.Key() != "f1" {
		t.Errorf("file with ID keys by ID, got %q", file.Key())
	}
}
