// Package vitals classifies self-reported vital signs.
//
// It turns a blood-pressure string plus sleep, heart-rate, and respiration
// measurements into a hypertension stage, a composite stress score and level,
// and the advice text shown to the user. Every function in this package is a
// pure transformation over its arguments: there is no I/O and no shared state,
// so callers may invoke it concurrently without coordination.
package vitals

// Input is one set of self-reported measurements, already decoded from the
// transport. BloodPressure is free-form ("120/80"); see ParseBloodPressure.
type Input struct {
	SubjectID       string
	BloodPressure   string
	SleepHours      float64
	RespirationRate float64
	HeartRate       float64
}

// BloodPressureReading is a parsed blood-pressure measurement in mmHg.
type BloodPressureReading struct {
	Systolic  int `json:"systolic"`
	Diastolic int `json:"diastolic"`
}

// RiskTier is the hypertension severity bucket derived from blood pressure alone.
type RiskTier string

const (
	RiskNormal RiskTier = "NORMAL"
	RiskLow    RiskTier = "LOW"
	RiskMedium RiskTier = "MEDIUM"
	RiskHigh   RiskTier = "HIGH"
	RiskDanger RiskTier = "DANGER"
)

// HypertensionStage is an ordered stage. Higher values are more severe.
type HypertensionStage int

const (
	StageNormal HypertensionStage = iota
	StageElevated
	StageOne
	StageTwo
	StageCrisis
)

var stageNames = [...]string{
	StageNormal:   "Normal",
	StageElevated: "Elevated",
	StageOne:      "Stage 1 Hypertension",
	StageTwo:      "Stage 2 Hypertension",
	StageCrisis:   "Hypertensive Crisis",
}

var stageRisks = [...]RiskTier{
	StageNormal:   RiskNormal,
	StageElevated: RiskLow,
	StageOne:      RiskMedium,
	StageTwo:      RiskHigh,
	StageCrisis:   RiskDanger,
}

// String returns the display name used in advice text and API responses.
func (s HypertensionStage) String() string {
	if s < StageNormal || s > StageCrisis {
		return "Unknown"
	}
	return stageNames[s]
}

// Risk returns the risk tier bound to the stage.
func (s HypertensionStage) Risk() RiskTier {
	if s < StageNormal || s > StageCrisis {
		return RiskNormal
	}
	return stageRisks[s]
}

// MarshalText encodes the stage by display name.
func (s HypertensionStage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StressLevel is the coarse classification derived from the composite score.
type StressLevel string

const (
	StressOptimal StressLevel = "OPTIMAL"
	StressLow     StressLevel = "LOW"
	StressMedium  StressLevel = "MEDIUM"
	StressHigh    StressLevel = "HIGH"
)

// Assessment is the result of classifying one Input. It is immutable once
// returned; callers own it and are responsible for persisting it.
type Assessment struct {
	Reading     BloodPressureReading `json:"reading"`
	StressLevel StressLevel          `json:"stress_level"`
	Score       int                  `json:"score"`
	Warnings    []string             `json:"warnings"`
	Analysis    []string             `json:"analysis"`
	BPStage     HypertensionStage    `json:"bp_stage"`
	Risk        RiskTier             `json:"bp_risk"`
	AdviceText  string               `json:"advice"`
}
