package pricing

import "time"

// Config carries every rate and factor value used by the engine so tenants
// can run versioned parameter sets instead of compiled-in constants.
type Config struct {
	AlgorithmVersion string

	DistanceRatePerKm float64
	WeightRatePerKg   float64

	VolumeFactor      float64 // applied above VolumeThresholdM3
	VolumeThresholdM3 float64

	HazardousFactor    float64
	RefrigeratedFactor float64
	WeekendFactor      float64

	PeakHoursFactor float64
	// Peak windows are [start, end) hours of the pickup time.
	MorningPeakStart int
	MorningPeakEnd   int
	EveningPeakStart int
	EveningPeakEnd   int

	UrgentFactor       float64 // under UrgentHours until pickup
	UrgentHours        float64
	SoonFactor         float64 // under SoonHours until pickup
	SoonHours          float64
	PerRequirementBump float64 // added per uncounted special requirement

	// Advisory bounds: a returned price is clamped into
	// [MinAdvisoryRatio*final, MaxAdvisoryRatio*final].
	MinAdvisoryRatio float64
	MaxAdvisoryRatio float64
	AdvisoryTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		AlgorithmVersion:   "v2.0",
		DistanceRatePerKm:  3.5,
		WeightRatePerKg:    0.15,
		VolumeFactor:       1.15,
		VolumeThresholdM3:  20,
		HazardousFactor:    1.5,
		RefrigeratedFactor: 1.3,
		WeekendFactor:      1.25,
		PeakHoursFactor:    1.15,
		MorningPeakStart:   8,
		MorningPeakEnd:     10,
		EveningPeakStart:   17,
		EveningPeakEnd:     19,
		UrgentFactor:       1.4,
		UrgentHours:        24,
		SoonFactor:         1.2,
		SoonHours:          48,
		PerRequirementBump: 0.05,
		MinAdvisoryRatio:   0.5,
		MaxAdvisoryRatio:   2.0,
		AdvisoryTimeout:    5 * time.Second,
	}
}
