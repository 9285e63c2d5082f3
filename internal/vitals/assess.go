package vitals

import (
	"math"
	"strconv"
	"strings"
)

// Score thresholds for the stress level, checked from HIGH down.
const (
	highStressScore   = 8
	mediumStressScore = 5
	lowStressScore    = 2
)

var levelHeadlines = map[StressLevel]string{
	StressHigh:    "HIGH STRESS: Multiple health concerns detected.",
	StressMedium:  "MODERATE STRESS: Several vital signs need attention.",
	StressLow:     "MILD STRESS: Some vital signs could be improved.",
	StressOptimal: "EXCELLENT: All vital signs are healthy.",
}

// Assess classifies validated measurements. The reading drives the
// hypertension stage and the first advice lines; the composite score is
// computed from sleep, heart rate, and respiration only.
func Assess(reading BloodPressureReading, sleepHours, respirationRate, heartRate float64) Assessment {
	stage, risk := ClassifyHypertension(reading.Systolic, reading.Diastolic)

	warnings := []string{}
	analysis := make([]string, 0, 4)

	switch risk {
	case RiskDanger:
		warnings = append(warnings, "HYPERTENSIVE CRISIS: Seek immediate medical attention!")
		analysis = append(analysis, "Go to emergency room immediately.")
	case RiskHigh:
		warnings = append(warnings, "Stage 2 Hypertension detected")
		analysis = append(analysis, "Consult doctor within 1 week.")
	case RiskMedium:
		warnings = append(warnings, "Stage 1 Hypertension detected")
		analysis = append(analysis, "Schedule doctor appointment within 1 month.")
	case RiskLow:
		analysis = append(analysis, "BP slightly elevated. Monitor regularly.")
	default:
		analysis = append(analysis, "Blood pressure is normal.")
	}

	analysis = append(analysis,
		sleepAdvice(sleepHours),
		heartAdvice(heartRate),
		respirationAdvice(respirationRate),
	)

	score := Score(sleepHours, heartRate, respirationRate)
	level := LevelForScore(score)

	return Assessment{
		Reading:     reading,
		StressLevel: level,
		Score:       score,
		Warnings:    warnings,
		Analysis:    analysis,
		BPStage:     stage,
		Risk:        risk,
		AdviceText:  adviceText(level, stage, warnings, analysis),
	}
}

// Score is the composite stress score. Blood pressure does not contribute.
func Score(sleepHours, heartRate, respirationRate float64) int {
	score := 0
	switch {
	case sleepHours < 5:
		score += 4
	case sleepHours < 7:
		score += 2
	}
	switch {
	case heartRate > 100:
		score += 3
	case heartRate < 60:
		score += 2
	}
	switch {
	case respirationRate > 20:
		score += 2
	case respirationRate < 12:
		score += 2
	}
	return score
}

// LevelForScore maps a composite score to a stress level.
func LevelForScore(score int) StressLevel {
	switch {
	case score >= highStressScore:
		return StressHigh
	case score >= mediumStressScore:
		return StressMedium
	case score >= lowStressScore:
		return StressLow
	default:
		return StressOptimal
	}
}

// Headline returns the first line of the advice text for a level.
func Headline(level StressLevel) string {
	return levelHeadlines[level]
}

func sleepAdvice(hours float64) string {
	v := formatNumber(hours)
	switch {
	case hours < 5:
		return "CRITICAL: Only " + v + " hours of sleep. Aim for 7-9 hours nightly."
	case hours < 7:
		return "Sleep duration is low (" + v + " hours). Try to get 7-9 hours."
	default:
		return "Good sleep duration (" + v + " hours)."
	}
}

func heartAdvice(bpm float64) string {
	v := formatNumber(bpm)
	switch {
	case bpm > 100:
		return "Heart rate is elevated (" + v + " bpm)."
	case bpm < 60:
		return "Heart rate is low (" + v + " bpm)."
	default:
		return "Heart rate is normal (" + v + " bpm)."
	}
}

func respirationAdvice(rate float64) string {
	v := formatNumber(rate)
	switch {
	case rate > 20:
		return "Respiration rate is high (" + v + " breaths/min)."
	case rate < 12:
		return "Respiration rate is low (" + v + " breaths/min)."
	default:
		return "Respiration rate is normal (" + v + " breaths/min)."
	}
}

// adviceText assembles the block the UI renders verbatim. The WARNINGS
// section is omitted when there are no warnings.
func adviceText(level StressLevel, stage HypertensionStage, warnings, analysis []string) string {
	var b strings.Builder
	b.WriteString(Headline(level))
	b.WriteString("\n\nBlood Pressure Stage: ")
	b.WriteString(stage.String())
	b.WriteString("\n")
	if len(warnings) > 0 {
		b.WriteString("WARNINGS:\n")
		b.WriteString(strings.Join(warnings, "\n"))
		b.WriteString("\n")
	}
	b.WriteString("ANALYSIS:\n")
	b.WriteString(strings.Join(analysis, "\n"))
	b.WriteString("\n")
	return b.String()
}

// formatNumber renders a measurement the way it appears in advice text:
// shortest round-trip digits, whole values keep a trailing ".0", and very
// large or very small magnitudes switch to exponent form.
func formatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	if abs := math.Abs(v); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
