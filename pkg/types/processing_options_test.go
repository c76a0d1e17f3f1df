package types

import "testing"

func TestProcessingOptionsMapRoundTripKeepsDefaults(t *testing.T) {
	got := ProcessingOptionsFromMap(map[string]any{"anonymize": true, "language": "de", "performOCR": "yes"})
	if !got.Anonymize || got.Language != "de" {
		t.Fatalf("unexpected options %+v", got)
	}
	if !got.PerformOCR || !got.ExtractTechnologies || !got.EnhanceWithAI {
		t.Fatalf("expected defaults for missing or mistyped keys, got %+v", got)
	}
	if ProcessingOptionsFromMap(nil) != DefaultProcessingOptions() {
		t.Fatal("nil map should yield defaults")
	}
	if ProcessingOptionsFromMap(got.ToMap()) != got {
		t.Fatal("ToMap output should read back unchanged")
	}
}
