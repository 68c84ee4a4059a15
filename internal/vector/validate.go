package vector

import (
	"math"
	"regexp"
	"strconv"

	"github.com/vecdbhq/vecdb/internal/vecerrors"
)

// idPattern matches the legal character set for vector ids and collection
// names: letters, digits, underscore, hyphen.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

// ValidateIdentifier checks that id is non-empty and matches the legal
// character set for vector ids and collection names.
func ValidateIdentifier(id string) error {
	if id == "" || !idPattern.MatchString(id) {
		return vecerrors.InvalidIdentifier(id)
	}
	return nil
}

// ValidateDimension checks that values has exactly dim components.
func ValidateDimension(collection string, values []float32, dim int) error {
	if len(values) != dim {
		return vecerrors.DimensionMismatch(collection, dim, len(values))
	}
	return nil
}

// ValidateFinite checks that every component of values is a finite float
// (no NaN, no +/-Inf).
func ValidateFinite(collection string, values []float32) error {
	for i, f := range values {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return vecerrors.NonFiniteValue(collection, strconv.Itoa(i))
		}
	}
	return nil
}

// ValidateVector runs every structural check insert/upsert require.
func ValidateVector(collection string, v *Vector, dim int) error {
	if err := ValidateIdentifier(v.ID); err != nil {
		return err
	}
	if err := ValidateDimension(collection, v.Values, dim); err != nil {
		return err
	}
	return ValidateFinite(collection, v.Values)
}
