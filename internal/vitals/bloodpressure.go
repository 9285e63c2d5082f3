package vitals

import (
	"errors"
	"strconv"
	"strings"
)

// DefaultReading is returned by ParseBloodPressure for input it cannot read.
var DefaultReading = BloodPressureReading{Systolic: 120, Diastolic: 80}

// ParseBloodPressure normalizes a free-form blood-pressure string. It never
// fails: "<sys>/<dia>" yields both values, a bare integer yields (n, 0), and
// anything else yields DefaultReading. Malformed input is therefore treated as
// healthy; callers that need strictness must range-check the result.
//
// Components may carry single underscores between digits ("1_20"). A
// component too large for int saturates at the int bounds instead of being
// treated as malformed, so range checks still reject it.
func ParseBloodPressure(raw string) BloodPressureReading {
	parts := strings.Split(raw, "/")
	if len(parts) == 2 {
		sys, errSys := parseInt(parts[0])
		dia, errDia := parseInt(parts[1])
		if errSys == nil && errDia == nil {
			return BloodPressureReading{Systolic: sys, Diastolic: dia}
		}
	}
	if n, err := parseInt(raw); err == nil {
		return BloodPressureReading{Systolic: n}
	}
	return DefaultReading
}

func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "_") {
		var ok bool
		if s, ok = stripDigitSeparators(s); !ok {
			return 0, strconv.ErrSyntax
		}
	}
	n, err := strconv.Atoi(s)
	var numErr *strconv.NumError
	if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
		return n, nil
	}
	return n, err
}

// stripDigitSeparators removes underscores that sit between two digits and
// reports false if any underscore does not.
func stripDigitSeparators(s string) (string, bool) {
	body := strings.TrimLeft(s, "+-")
	if len(s)-len(body) > 1 {
		return "", false
	}
	for i := 0; i < len(body); i++ {
		if body[i] != '_' {
			continue
		}
		if i == 0 || i == len(body)-1 || !isDigit(body[i-1]) || !isDigit(body[i+1]) {
			return "", false
		}
	}
	return s[:len(s)-len(body)] + strings.ReplaceAll(body, "_", ""), true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// ClassifyHypertension maps a reading to its stage. The ladder is evaluated
// from the most severe stage down and either value crossing a threshold is
// enough. Total over all integers.
func ClassifyHypertension(systolic, diastolic int) (HypertensionStage, RiskTier) {
	var stage HypertensionStage
	switch {
	case systolic >= 180 || diastolic >= 120:
		stage = StageCrisis
	case systolic >= 160 || diastolic >= 100:
		stage = StageTwo
	case systolic >= 140 || diastolic >= 90:
		stage = StageOne
	case systolic >= 130 || diastolic >= 80:
		stage = StageElevated
	default:
		stage = StageNormal
	}
	return stage, stage.Risk()
}

// String formats the reading as "sys/dia".
func (r BloodPressureReading) String() string {
	return strconv.Itoa(r.Systolic) + "/" + strconv.Itoa(r.Diastolic)
}
