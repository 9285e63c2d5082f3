package vitals

import "fmt"

// InvalidVitalsError reports a measurement outside its accepted range.
// Validation fails fast: the first offending field is reported.
type InvalidVitalsError struct {
	Field string
	Value float64
	Range string
}

func (e *InvalidVitalsError) Error() string {
	return fmt.Sprintf("invalid vitals: %s=%s outside %s", e.Field, formatNumber(e.Value), e.Range)
}

// LegacyMessage is the fixed wording older clients receive: one message for
// the numeric measurements and one for blood pressure.
func (e *InvalidVitalsError) LegacyMessage() string {
	switch e.Field {
	case "systolic", "diastolic":
		return "Invalid blood pressure range"
	default:
		return "Invalid numeric input"
	}
}

// Validate checks the numeric measurements, then parses and range-checks the
// blood pressure. It returns the parsed reading on success.
//
// Comparisons are written so that NaN fails every range.
func Validate(in Input) (BloodPressureReading, error) {
	switch {
	case !(in.SleepHours > 0 && in.SleepHours <= 24):
		return BloodPressureReading{}, &InvalidVitalsError{Field: "sleep", Value: in.SleepHours, Range: "(0, 24]"}
	case !(in.RespirationRate > 0 && in.RespirationRate <= 60):
		return BloodPressureReading{}, &InvalidVitalsError{Field: "resp", Value: in.RespirationRate, Range: "(0, 60]"}
	case !(in.HeartRate > 0 && in.HeartRate <= 300):
		return BloodPressureReading{}, &InvalidVitalsError{Field: "heart", Value: in.HeartRate, Range: "(0, 300]"}
	}

	reading := ParseBloodPressure(in.BloodPressure)
	if reading.Systolic < 50 || reading.Systolic > 300 {
		return BloodPressureReading{}, &InvalidVitalsError{Field: "systolic", Value: float64(reading.Systolic), Range: "[50, 300]"}
	}
	if reading.Diastolic < 30 || reading.Diastolic > 200 {
		return BloodPressureReading{}, &InvalidVitalsError{Field: "diastolic", Value: float64(reading.Diastolic), Range: "[30, 200]"}
	}
	return reading, nil
}

// Evaluate validates in and, if it is in range, assesses it.
func Evaluate(in Input) (Assessment, error) {
	reading, err := Validate(in)
	if err != nil {
		return Assessment{}, err
	}
	return Assess(reading, in.SleepHours, in.RespirationRate, in.HeartRate), nil
}
