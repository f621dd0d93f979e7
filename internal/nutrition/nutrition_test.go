package nutrition

import "testing"

func TestNewScaledRecordCarriesAllKeys(t *testing.T) {
	rec := NewScaledRecord()

	if len(rec) != len(CanonicalKeys) {
		t.Fatalf("record has %d keys, want %d", len(rec), len(CanonicalKeys))
	}
	for _, key := range CanonicalKeys {
		v, ok := rec[key]
		if !ok {
			t.Errorf("missing key %s", key)
		}
		if v != 0 {
			t.Errorf("%s = %g, want 0", key, v)
		}
	}
}

func TestNewExtractedRecordAllAbsent(t *testing.T) {
	rec := NewExtractedRecord()

	if len(rec) != len(LabelKeys) {
		t.Fatalf("record has %d keys, want %d", len(rec), len(LabelKeys))
	}
	if rec.MatchedFields() != 0 {
		t.Errorf("fresh record has %d matched fields", rec.MatchedFields())
	}
}

func TestMatchedFields(t *testing.T) {
	rec := NewExtractedRecord()
	raw := "8g"
	rec[KeyTotalFat] = LabelField{Raw: &raw}
	rec[KeyLabelProtein] = LabelField{Raw: &raw}

	if got := rec.MatchedFields(); got != 2 {
		t.Errorf("matched fields = %d, want 2", got)
	}
}

func TestLabelFieldPresent(t *testing.T) {
	if (LabelField{}).Present() {
		t.Error("empty field reports present")
	}
	raw := "250"
	if !(LabelField{Raw: &raw}).Present() {
		t.Error("field with raw value reports absent")
	}
}

func TestClassAt(t *testing.T) {
	for i, want := range Classes {
		got, ok := ClassAt(i)
		if !ok || got != want {
			t.Errorf("ClassAt(%d) = %s, want %s", i, got, want)
		}
	}

	if _, ok := ClassAt(-1); ok {
		t.Error("ClassAt(-1) should fail")
	}
	if _, ok := ClassAt(len(Classes)); ok {
		t.Error("ClassAt(len) should fail")
	}
}

func TestParseClass(t *testing.T) {
	if c, ok := ParseClass("french fries"); !ok || c != ClassFrenchFries {
		t.Errorf("ParseClass(french fries) = %s, %v", c, ok)
	}
	if _, ok := ParseClass("sushi"); ok {
		t.Error("ParseClass(sushi) should fail")
	}
}
