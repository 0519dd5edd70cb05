package jsonutil

import "testing"

type verdict struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

func TestParse_BareObject(t *testing.T) {
	v, err := Parse[verdict](`{"label": "pricing and costs", "confidence": 0.91}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Label != "pricing and costs" {
		t.Errorf("expected label 'pricing and costs', got '%s'", v.Label)
	}
	if v.Confidence != 0.91 {
		t.Errorf("expected confidence 0.91, got %v", v.Confidence)
	}
}

func TestParse_FencedObject(t *testing.T) {
	raw := "```json\n{\"label\": \"NEUTRAL\", \"confidence\": 0.5}\n```"
	v, err := Parse[verdict](raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Label != "NEUTRAL" {
		t.Errorf("expected label 'NEUTRAL', got '%s'", v.Label)
	}
}

func TestParse_SurroundingProse(t *testing.T) {
	raw := `Here is my classification:
{"label": "feature request", "confidence": 0.77}
Let me know if you need anything else.`
	v, err := Parse[verdict](raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Label != "feature request" {
		t.Errorf("expected label 'feature request', got '%s'", v.Label)
	}
}

func TestParse_NoObject(t *testing.T) {
	if _, err := Parse[verdict]("sorry, I cannot classify that"); err == nil {
		t.Error("expected error for response without JSON")
	}
}

func TestParse_MalformedJSON(t *testing.T) {
	if _, err := Parse[verdict](`{"label": "x", "confidence": }`); err == nil {
		t.Error("expected error for malformed JSON")
	}
}
