package core

import (
	"encoding/json"
	"math"
	"strings"
)

// RequiredFields lists the receipt fields checked on ingestion, in reporting order.
var RequiredFields = []string{FieldVendor, FieldDate, FieldTotal, FieldCategory}

// ValidateOptions tunes the validator.
type ValidateOptions struct {
	// AllowZeroTotal accepts a total of exactly 0. By default a zero total
	// counts as missing, like every other falsy value.
	AllowZeroTotal bool
}

// ValidateRecord returns the names of required fields missing from rec, or nil
// when rec is valid. A field is missing when absent, null, blank, zero or false.
func ValidateRecord(rec Record) []string {
	return ValidateRecordWith(rec, ValidateOptions{})
}

// ValidateRecordWith is ValidateRecord with explicit options.
func ValidateRecordWith(rec Record, opts ValidateOptions) []string {
	var missing []string
	for _, field := range RequiredFields {
		v, ok := rec[field]
		if !ok {
			missing = append(missing, field)
			continue
		}
		if field == FieldTotal && opts.AllowZeroTotal && isNumericZero(v) {
			continue
		}
		if field == FieldTotal && isNumericZero(v) {
			missing = append(missing, field)
			continue
		}
		if isFalsy(v) {
			missing = append(missing, field)
		}
	}
	return missing
}

func isFalsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case bool:
		return !t
	case float64:
		return t == 0 || math.IsNaN(t)
	case float32:
		return t == 0
	case int:
		return t == 0
	case int64:
		return t == 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	default:
		return false
	}
}

// isNumericZero reports whether v is a number, or numeric text, equal to zero.
func isNumericZero(v any) bool {
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return false
	}
	n, ok := Amount(v)
	return ok && n == 0
}
