package render

import "github.com/flybywiresim/ndterrain-core/terrain"

// Mode selects which threshold set and colorization scheme a frame
// uses.
type Mode int

const (
	ModeNormal Mode = iota
	ModePeaks
)

// NormalThresholds are the C6 color-band boundaries used in ModeNormal.
type NormalThresholds struct {
	LowDensityGreen   float32
	HighDensityGreen  float32
	LowDensityYellow  float32
	HighDensityYellow float32
	HighDensityRed    float32
}

// PeaksThresholds are the C6 color-band boundaries used in ModePeaks.
type PeaksThresholds struct {
	LowerDensity  float32
	HigherDensity float32
	SolidDensity  float32
}

// Thresholds is the full C6 output: the selected mode, its band
// boundaries, and the histogram summary statistics the colorizer and
// metadata mapping both need.
type Thresholds struct {
	Mode Mode

	Normal NormalThresholds
	Peaks  PeaksThresholds

	MinElevation float32 // -1 if no histogram-eligible samples
	MaxElevation float32 // 0 if no histogram-eligible samples
}

// GearDownAltitudeOffset returns 250 if the gear is down, else 500, per
// §4.6.
func GearDownAltitudeOffset(gearIsDown bool) float32 {
	if gearIsDown {
		return 250
	}
	return 500
}

// AnalyzeThresholds implements C6: it selects normal vs. peaks mode
// from the histogram and aircraft state, and derives that mode's color
// thresholds.
func AnalyzeThresholds(hist Histogram, altitude, verticalSpeed, gearDownAltitudeOffset, cutOffAltitude float32) Thresholds {
	cutOffBin := int((cutOffAltitude - terrain.HistMinElev) / terrain.HistBinSize)
	if cutOffBin < 0 {
		cutOffBin = 0
	}

	referenceAltitude := altitude
	if verticalSpeed <= -1000 {
		referenceAltitude += verticalSpeed * 0.5
	}

	var totalFreq int64
	for b := cutOffBin; b < terrain.HistBinCount; b++ {
		totalFreq += int64(hist[b])
	}

	lowerBin, upperBin := terrain.HistBinCount-1, terrain.HistBinCount-1
	minBin, maxBin := -1, -1
	var cumulative int64
	foundLower, foundUpper := false, false

	for b := cutOffBin; b < terrain.HistBinCount; b++ {
		if hist[b] == 0 {
			continue
		}
		if minBin < 0 {
			minBin = b
		}
		maxBin = b

		cumulative += int64(hist[b])
		if totalFreq > 0 {
			frac := float64(cumulative) / float64(totalFreq)
			if !foundLower && frac >= 0.85 {
				lowerBin = b
				foundLower = true
			}
			if !foundUpper && frac >= 0.95 {
				upperBin = b
				foundUpper = true
			}
		}
	}
	if !foundUpper {
		upperBin = terrain.HistBinCount - 1
	}
	if !foundLower {
		lowerBin = terrain.HistBinCount - 1
	}

	lowerPercentileElevation := float32(lowerBin*terrain.HistBinSize + terrain.HistMinElev)
	upperPercentileElevation := float32(upperBin*terrain.HistBinSize + terrain.HistMinElev)

	minElevation := float32(-1)
	if minBin >= 0 {
		minElevation = float32(minBin*terrain.HistBinSize + terrain.HistMinElev)
	}
	maxElevation := float32(0)
	if maxBin >= 0 {
		maxElevation = float32((maxBin+1)*terrain.HistBinSize + terrain.HistMinElev)
	}

	flatEarth := 100 - (maxElevation - minElevation)
	halfElevation := maxElevation * 0.5

	t := Thresholds{MinElevation: minElevation, MaxElevation: maxElevation}

	if maxElevation >= referenceAltitude-gearDownAltitudeOffset {
		t.Mode = ModeNormal
		lowDensityGreen := max32(minElevation+200, referenceAltitude-2000)
		highDensityGreen := max32(minElevation+200, referenceAltitude-1000)
		if flatEarth >= 0 {
			bound := halfElevation
			if lowerPercentileElevation < bound {
				bound = lowerPercentileElevation
			}
			if lowDensityGreen > bound {
				lowDensityGreen = bound
			}
		}
		lowDensityYellow := max32(minElevation+200, referenceAltitude-gearDownAltitudeOffset)
		highDensityYellow := referenceAltitude + 1000
		highDensityRed := referenceAltitude + 2000

		t.Normal = NormalThresholds{
			LowDensityGreen:   lowDensityGreen,
			HighDensityGreen:  highDensityGreen,
			LowDensityYellow:  lowDensityYellow,
			HighDensityYellow: highDensityYellow,
			HighDensityRed:    highDensityRed,
		}
		return t
	}

	t.Mode = ModePeaks
	lowerDensity := min32(lowerPercentileElevation, halfElevation)
	higherDensity := min32(upperPercentileElevation, (maxElevation-minElevation)*0.65+minElevation)
	solidDensity := (maxElevation-minElevation)*0.95 + minElevation

	increasing := lowerDensity < higherDensity && higherDensity < solidDensity
	percentilesOrdered := lowerPercentileElevation <= upperPercentileElevation
	if !increasing || !percentilesOrdered {
		higherDensity = maxElevation + 100
		solidDensity = maxElevation + 100
	}

	t.Peaks = PeaksThresholds{LowerDensity: lowerDensity, HigherDensity: higherDensity, SolidDensity: solidDensity}
	return t
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
