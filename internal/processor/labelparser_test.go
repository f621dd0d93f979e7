package processor

import (
	"testing"

	"github.com/nutriscan/scan-worker/internal/nutrition"
)

const sampleLabelText = `Nutrition Facts
8 servings per container
Serving size 2/3 cup (55g)
Calories 230
Total Fat 8g 10%
Saturated Fat 1g 5%
Trans Fat 0g
Cholesterol 0mg 0%
Sodium 160mg 7%
Total Carbohydrate 37g 13%
Dietary Fiber 4g 14%
Total Sugars 12g
Protein 3g`

func strOrNil(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func TestParseLabelTextFullPanel(t *testing.T) {
	record := ParseLabelText(sampleLabelText)

	if got := record.MatchedFields(); got != len(nutrition.LabelKeys) {
		t.Fatalf("expected all %d fields matched, got %d", len(nutrition.LabelKeys), got)
	}

	tests := []struct {
		key     string
		raw     string
		weight  string
		percent string // empty means absent
	}{
		{nutrition.KeyServingsPerContainer, "8", "8", ""},
		{nutrition.KeyLabelCalories, "230", "230", ""},
		{nutrition.KeyTotalFat, "8g 10%", "8g", "10%"},
		{nutrition.KeySaturatedFat, "1g 5%", "1g", "5%"},
		{nutrition.KeyTransFat, "0g", "0g", ""},
		{nutrition.KeyCholesterol, "0mg 0%", "0mg", "0%"},
		{nutrition.KeyLabelSodium, "160mg 7%", "160mg", "7%"},
		{nutrition.KeyTotalCarbohydrate, "37g 13%", "37g", "13%"},
		{nutrition.KeyDietaryFiber, "4g 14%", "4g", "14%"},
		{nutrition.KeyTotalSugars, "12g", "12g", ""},
		{nutrition.KeyLabelProtein, "3g", "3g", ""},
	}

	for _, tt := range tests {
		field, ok := record[tt.key]
		if !ok {
			t.Errorf("%s: key missing from record", tt.key)
			continue
		}
		if field.Raw == nil || *field.Raw != tt.raw {
			t.Errorf("%s: raw = %s, want %q", tt.key, strOrNil(field.Raw), tt.raw)
		}
		if field.Weight == nil || *field.Weight != tt.weight {
			t.Errorf("%s: weight = %s, want %q", tt.key, strOrNil(field.Weight), tt.weight)
		}
		if tt.percent == "" {
			if field.Percent != nil {
				t.Errorf("%s: percent = %s, want absent", tt.key, *field.Percent)
			}
		} else if field.Percent == nil || *field.Percent != tt.percent {
			t.Errorf("%s: percent = %s, want %q", tt.key, strOrNil(field.Percent), tt.percent)
		}
	}

	serving, ok := record[nutrition.KeyServingSize]
	if !ok || serving.Raw == nil {
		t.Fatalf("serving size not extracted")
	}
	if *serving.Raw != "2/3 cup (55g)" {
		t.Errorf("serving size raw = %q, want %q", *serving.Raw, "2/3 cup (55g)")
	}
}

func TestParseLabelTextUnitlessWeight(t *testing.T) {
	record := ParseLabelText("Calories 250")

	field := record[nutrition.KeyLabelCalories]
	if field.Raw == nil || *field.Raw != "250" {
		t.Fatalf("calories raw = %s, want 250", strOrNil(field.Raw))
	}
	// Weight tokens need no unit suffix.
	if field.Weight == nil || *field.Weight != "250" {
		t.Errorf("calories weight = %s, want 250", strOrNil(field.Weight))
	}
	if field.Percent != nil {
		t.Errorf("calories percent = %s, want absent", *field.Percent)
	}
}

func TestParseLabelTextPatternPriority(t *testing.T) {
	// Both phrasings present: the higher-priority pattern wins.
	record := ParseLabelText("8 servings per container\nServings: 9")

	field := record[nutrition.KeyServingsPerContainer]
	if field.Raw == nil || *field.Raw != "8" {
		t.Errorf("servings raw = %s, want 8", strOrNil(field.Raw))
	}
}

func TestParseLabelTextAlternatePhrasing(t *testing.T) {
	record := ParseLabelText("Servings: 6\nServ. size: 1 bar (40g)\nFiber 3g 11%")

	if field := record[nutrition.KeyServingsPerContainer]; field.Raw == nil || *field.Raw != "6" {
		t.Errorf("servings raw = %s, want 6", strOrNil(field.Raw))
	}
	if field := record[nutrition.KeyServingSize]; field.Raw == nil || *field.Raw != "1 bar (40g)" {
		t.Errorf("serving size raw = %s, want %q", strOrNil(field.Raw), "1 bar (40g)")
	}
	if field := record[nutrition.KeyDietaryFiber]; field.Raw == nil || *field.Raw != "3g 11%" {
		t.Errorf("fiber raw = %s, want %q", strOrNil(field.Raw), "3g 11%")
	}
}

func TestParseLabelTextNoMatches(t *testing.T) {
	record := ParseLabelText("completely unrelated text with no nutrition content")

	if len(record) != len(nutrition.LabelKeys) {
		t.Fatalf("expected %d keys regardless of matches, got %d", len(nutrition.LabelKeys), len(record))
	}
	if got := record.MatchedFields(); got != 0 {
		t.Errorf("expected 0 matched fields, got %d", got)
	}
	for _, key := range nutrition.LabelKeys {
		field, ok := record[key]
		if !ok {
			t.Errorf("key %s missing from record", key)
			continue
		}
		if field.Present() {
			t.Errorf("key %s unexpectedly present", key)
		}
	}
}

func TestParseLabelTextDeterministic(t *testing.T) {
	first := ParseLabelText(sampleLabelText)
	second := ParseLabelText(sampleLabelText)

	for _, key := range nutrition.LabelKeys {
		a, b := first[key], second[key]
		if strOrNil(a.Raw) != strOrNil(b.Raw) ||
			strOrNil(a.Weight) != strOrNil(b.Weight) ||
			strOrNil(a.Percent) != strOrNil(b.Percent) {
			t.Errorf("key %s parsed differently across runs", key)
		}
	}
}

func TestDecomposeFieldMalformed(t *testing.T) {
	// Garbled OCR output keeps the raw value even when decomposition fails.
	field := decomposeField("~~noise~~")
	if field.Raw == nil || *field.Raw != "~~noise~~" {
		t.Fatalf("raw not retained for malformed value")
	}
	if field.Weight != nil || field.Percent != nil {
		t.Errorf("expected no sub-fields for malformed value")
	}
}
