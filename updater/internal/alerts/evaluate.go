package alerts

import "github.com/hivewatch/hivewatch/pkg/types"

// Thresholds used by Evaluate.
const (
	TemperatureLow  = 10.0
	TemperatureHigh = 40.0
	DepartureRatio  = 0.9
	SoundPeak       = 0.9
	SoundMeanFloor  = 0.05
)

// Candidate is the next-state reading an alert evaluation runs against.
type Candidate struct {
	In          int
	Out         int
	Total       int
	Temperature float64
	Spectrum    []float64
}

// Evaluate returns the reasons c is anomalous, in a fixed order. An empty
// result means no alert. Evaluate is pure.
//
//	temperature < 10          temperature too low
//	temperature > 40          temperature too high
//	total == 0                no activity detected (departure checks skipped)
//	out >= 0.9 * total        most bees have left
//	out == 0 && in > 0        no exits detected despite entries
//	max(spectrum) > 0.9       high sound peaks detected
//	mean(spectrum) < 0.05     abnormally low sound activity (only without a peak)
//	len(spectrum) == 0        missing sound spectrum data
func Evaluate(c Candidate) []string {
	var reasons []string

	switch {
	case c.Temperature < TemperatureLow:
		reasons = append(reasons, types.ReasonTemperatureLow)
	case c.Temperature > TemperatureHigh:
		reasons = append(reasons, types.ReasonTemperatureHigh)
	}

	if c.Total == 0 {
		reasons = append(reasons, types.ReasonNoActivity)
	} else {
		if float64(c.Out) >= float64(c.Total)*DepartureRatio {
			reasons = append(reasons, types.ReasonMostLeft)
		}
		if c.Out == 0 && c.In > 0 {
			reasons = append(reasons, types.ReasonNoExits)
		}
	}

	if len(c.Spectrum) == 0 {
		return append(reasons, types.ReasonMissingSpectrum)
	}
	peak, mean := spectrumStats(c.Spectrum)
	switch {
	case peak > SoundPeak:
		reasons = append(reasons, types.ReasonHighSound)
	case mean < SoundMeanFloor:
		reasons = append(reasons, types.ReasonLowSound)
	}
	return reasons
}

// spectrumStats returns the max and mean of a non-empty spectrum.
func spectrumStats(s []float64) (peak, mean float64) {
	peak = s[0]
	var sum float64
	for _, v := range s {
		if v > peak {
			peak = v
		}
		sum += v
	}
	return peak, sum / float64(len(s))
}
