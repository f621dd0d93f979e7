/**
 * Nutrient Field Parser
 *
 * Turns raw OCR text from a nutrition facts panel into an ExtractedRecord.
 * Parsing is tolerant by construction: a field the text does not contain is
 * an absent field, never an error, and total absence of any match is itself
 * a valid result.
 */

package processor

import (
	"regexp"

	"github.com/nutriscan/scan-worker/internal/nutrition"
)

// fieldPatterns maps each label field key to an ordered list of alternative
// patterns. Alternatives cover variant label phrasings ("Serving size" vs
// "Serv. size"); they are tried in priority order and the first match wins,
// so the order below is significant. Every pattern carries exactly one
// capture group holding the raw field value.
type fieldPattern struct {
	key      string
	patterns []*regexp.Regexp
}

var labelPatterns = []fieldPattern{
	{nutrition.KeyServingsPerContainer, compilePatterns(
		`(\d+)\s*servings\s*per\s*container`,
		`Servings:\s*(\d+)`,
	)},
	{nutrition.KeyServingSize, compilePatterns(
		`Serving\s*size\s*([^\n%]+?\))`,
		`Serv\.\s*size:\s*([^\n%]+?\))`,
	)},
	{nutrition.KeyLabelCalories, compilePatterns(
		`Calories\s*(\d+)`,
	)},
	{nutrition.KeyTotalFat, compilePatterns(
		`Total\s*Fat\s*(\d+\.?\d*g?(?:\s*\d+%)?)`,
	)},
	{nutrition.KeySaturatedFat, compilePatterns(
		`Saturated\s*Fat\s*(\d+\.?\d*g?(?:\s*\d+%)?)`,
	)},
	{nutrition.KeyTransFat, compilePatterns(
		`Trans\s*Fat\s*(\d+\.?\d*g?(?:\s*\d+%)?)`,
	)},
	{nutrition.KeyCholesterol, compilePatterns(
		`Cholesterol\s*(\d+mg\s*\d*%?)`,
	)},
	{nutrition.KeyLabelSodium, compilePatterns(
		`Sodium\s*(\d+mg\s*\d*%?)`,
	)},
	{nutrition.KeyTotalCarbohydrate, compilePatterns(
		`Total\s*(?:Carbohydrate|Carb\.)\s*(\d+g\s*\d*%)`,
	)},
	{nutrition.KeyDietaryFiber, compilePatterns(
		`Dietary\s*Fiber\s*(\d+g\s*\d*%)`,
		`Fiber\s*(\d+g\s*\d*%)`,
	)},
	{nutrition.KeyTotalSugars, compilePatterns(
		`Total\s*Sugars\s*(\d+g)`,
	)},
	{nutrition.KeyLabelProtein, compilePatterns(
		`Protein\s*(\d+g)`,
	)},
}

// splitPattern decomposes a raw field value into a weight token (number with
// optional mg/g/mcg suffix) and an optional DV percentage token.
var splitPattern = regexp.MustCompile(`(\d+\.?\d*(?:mg|g|mcg)?)\s*(\d+%|\d+% DV)?`)

func compilePatterns(exprs ...string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		patterns[i] = regexp.MustCompile(expr)
	}
	return patterns
}

// ParseLabelText extracts nutrition label fields from recognized text. The
// returned record always carries the full label key set; unmatched keys are
// present with all sub-fields absent. The same text always yields the same
// record.
func ParseLabelText(text string) nutrition.ExtractedRecord {
	record := nutrition.NewExtractedRecord()

	for _, fp := range labelPatterns {
		for _, pattern := range fp.patterns {
			match := pattern.FindStringSubmatch(text)
			if match == nil {
				continue
			}
			raw := match[1]
			if raw == "" {
				continue
			}
			record[fp.key] = decomposeField(raw)
			break
		}
	}

	return record
}

// decomposeField splits a raw match into weight and percentage sub-fields.
// Either may fail to parse from malformed OCR text; the raw value is retained
// regardless.
func decomposeField(raw string) nutrition.LabelField {
	field := nutrition.LabelField{Raw: &raw}

	parts := splitPattern.FindStringSubmatch(raw)
	if parts == nil {
		return field
	}
	if parts[1] != "" {
		weight := parts[1]
		field.Weight = &weight
	}
	if parts[2] != "" {
		percent := parts[2]
		field.Percent = &percent
	}

	return field
}
