package scorer

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"

	"github.com/seenimoa/ratingrisk/internal/rating"
	"github.com/seenimoa/ratingrisk/pkg/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("ratios", validateRatios)
	return v
}

// validateRatios requires every ratio in models.RequiredRatios.
func validateRatios(fl validator.FieldLevel) bool {
	m, ok := fl.Field().Interface().(map[string]any)
	if !ok {
		return false
	}
	return len(missingRatios(m)) == 0
}

func missingRatios(m map[string]any) []string {
	var missing []string
	for _, k := range models.RequiredRatios {
		if _, ok := m[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

// checkProfile validates firm and horizon and resolves the current rating.
func checkProfile(scale *rating.Scale, firm models.FirmProfile, horizonDays int) (int, error) {
	var problems []string

	if err := validate.Struct(firm); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return 0, &InvalidInputError{CompanyID: firm.CompanyID, Problems: []string{err.Error()}}
		}
		for _, fe := range verrs {
			problems = append(problems, fieldMessage(fe, firm))
		}
	}
	if horizonDays < 0 {
		problems = append(problems, fmt.Sprintf("horizon_days must be greater than or equal to 0, got %d", horizonDays))
	}

	sev := 0
	if firm.CurrentRating != "" {
		_, s, err := scale.Resolve(string(firm.CurrentRating))
		if err != nil {
			problems = append(problems, fmt.Sprintf("current_rating: %v", err))
		}
		sev = s
	}

	if len(problems) > 0 {
		return 0, &InvalidInputError{CompanyID: firm.CompanyID, Problems: problems}
	}
	return sev, nil
}

func fieldMessage(fe validator.FieldError, firm models.FirmProfile) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "ratios":
		return fmt.Sprintf("%s missing: %s", field, strings.Join(missingRatios(firm.FinancialRatios), ", "))
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

// CoerceRatios converts ratio values to float64. Numeric strings are
// accepted; booleans and other values that are not finite numbers become
// 0 and produce a warning.
func CoerceRatios(raw map[string]any) (map[string]float64, []string) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]float64, len(raw))
	var warnings []string
	for _, k := range keys {
		v := raw[k]
		if v == nil {
			out[k] = 0
			warnings = append(warnings, fmt.Sprintf("invalid covariate %s: missing value, using 0", k))
			continue
		}
		if _, ok := v.(bool); ok {
			out[k] = 0
			warnings = append(warnings, fmt.Sprintf("invalid covariate %s: non-numeric value %v, using 0", k, v))
			continue
		}
		f, err := cast.ToFloat64E(v)
		switch {
		case err != nil:
			warnings = append(warnings, fmt.Sprintf("invalid covariate %s: %v, using 0", k, err))
			f = 0
		case math.IsNaN(f) || math.IsInf(f, 0):
			warnings = append(warnings, fmt.Sprintf("invalid covariate %s: non-finite value %v, using 0", k, f))
			f = 0
		}
		out[k] = f
	}
	return out, warnings
}
