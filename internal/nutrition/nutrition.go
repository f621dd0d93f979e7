/**
 * Nutrition data model shared across pipelines
 *
 * Both scan pipelines converge on these record shapes:
 * - ScaledRecord: photo pipeline output, canonical nutrient -> grams/kcal/mg
 * - ExtractedRecord: label pipeline output, label field -> raw/weight/DV%
 */

package nutrition

// Canonical nutrient keys reported by the photo pipeline, in display order.
// These names (including units) are the output schema's fixed vocabulary.
const (
	KeyCalories      = "Calories (kcal)"
	KeyFat           = "Fat (g)"
	KeyProtein       = "Protein (g)"
	KeyCarbohydrates = "Carbohydrates (g)"
	KeyFiber         = "Fiber (g)"
	KeySugars        = "Sugars (g)"
	KeySodium        = "Sodium (mg)"
)

// CanonicalKeys lists the seven canonical nutrient keys in display order.
var CanonicalKeys = []string{
	KeyCalories,
	KeyFat,
	KeyProtein,
	KeyCarbohydrates,
	KeyFiber,
	KeySugars,
	KeySodium,
}

// ScaledRecord maps every canonical nutrient key to an amount scaled to an
// estimated portion weight. All seven keys are always present; a nutrient the
// source database does not carry is reported as 0, not omitted.
type ScaledRecord map[string]float64

// NewScaledRecord returns a record with every canonical key set to zero.
func NewScaledRecord() ScaledRecord {
	rec := make(ScaledRecord, len(CanonicalKeys))
	for _, key := range CanonicalKeys {
		rec[key] = 0
	}
	return rec
}

// Label field keys produced by the nutrient field parser, in label order.
const (
	KeyServingsPerContainer = "servings_container"
	KeyServingSize          = "serving_size"
	KeyLabelCalories        = "calories"
	KeyTotalFat             = "total_fat"
	KeySaturatedFat         = "saturated_fat"
	KeyTransFat             = "trans_fat"
	KeyCholesterol          = "cholesterol"
	KeyLabelSodium          = "sodium"
	KeyTotalCarbohydrate    = "total_carbohydrate"
	KeyDietaryFiber         = "dietary_fiber"
	KeyTotalSugars          = "total_sugars"
	KeyLabelProtein         = "protein"
)

// LabelKeys lists every label field key in the order fields appear on a
// printed nutrition facts panel.
var LabelKeys = []string{
	KeyServingsPerContainer,
	KeyServingSize,
	KeyLabelCalories,
	KeyTotalFat,
	KeySaturatedFat,
	KeyTransFat,
	KeyCholesterol,
	KeyLabelSodium,
	KeyTotalCarbohydrate,
	KeyDietaryFiber,
	KeyTotalSugars,
	KeyLabelProtein,
}

// LabelField holds one extracted label value. Raw is the matched substring;
// Weight and Percent are its decomposed parts. Any of the three may be nil:
// a field with no raw match has all three nil, and a raw match from noisy OCR
// may fail decomposition while the raw text is retained.
type LabelField struct {
	Raw     *string `json:"raw,omitempty"`
	Weight  *string `json:"weight,omitempty"`
	Percent *string `json:"percent,omitempty"`
}

// Present reports whether the field matched at all.
func (f LabelField) Present() bool {
	return f.Raw != nil
}

// ExtractedRecord maps every label field key to its extracted value. The full
// key set is always present so downstream tabular consumers see a uniform
// shape regardless of how much text was recognized.
type ExtractedRecord map[string]LabelField

// NewExtractedRecord returns a record with every label key present and absent.
func NewExtractedRecord() ExtractedRecord {
	rec := make(ExtractedRecord, len(LabelKeys))
	for _, key := range LabelKeys {
		rec[key] = LabelField{}
	}
	return rec
}

// MatchedFields counts keys with a raw match.
func (r ExtractedRecord) MatchedFields() int {
	n := 0
	for _, f := range r {
		if f.Present() {
			n++
		}
	}
	return n
}
