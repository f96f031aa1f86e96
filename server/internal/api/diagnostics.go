package api

import (
	"fmt"

	"github.com/hivewatch/hivewatch/pkg/types"
)

// DiagnosticHint is one human-readable insight about a hive. The dashboard
// shows Title on the hive card and Detail on hover.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label.
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
	// Value is an optional reading associated with the hint.
	Value *float64 `json:"value,omitempty"`
}

// computeDiagnostics explains each alert reason on rec. Hints are ordered
// critical first, then warnings, then info; a hive without reasons gets a
// single "ok" hint.
func computeDiagnostics(rec types.HiveRecord) []DiagnosticHint {
	if len(rec.AlertReasons) == 0 {
		return []DiagnosticHint{{
			Key:    "healthy",
			Level:  "ok",
			Title:  "Healthy",
			Detail: "Temperature, traffic and sound are all within normal ranges.",
		}}
	}

	var critical, warning, info []DiagnosticHint
	for _, reason := range rec.AlertReasons {
		h := hintFor(reason, rec)
		switch h.Level {
		case "critical":
			critical = append(critical, h)
		case "warning":
			warning = append(warning, h)
		default:
			info = append(info, h)
		}
	}
	return append(append(critical, warning...), info...)
}

func hintFor(reason string, rec types.HiveRecord) DiagnosticHint {
	temp := rec.Temperature
	switch reason {
	case types.ReasonTemperatureLow:
		return DiagnosticHint{
			Key:   "temperature_low",
			Level: "critical",
			Title: fmt.Sprintf("Cold hive (%.1f°C)", temp),
			Detail: fmt.Sprintf("The hive reads %.1f°C. Below 10°C the colony struggles to keep "+
				"the brood warm; check insulation and whether the cluster is still alive.", temp),
			Value: &temp,
		}
	case types.ReasonTemperatureHigh:
		return DiagnosticHint{
			Key:   "temperature_high",
			Level: "critical",
			Title: fmt.Sprintf("Hot hive (%.1f°C)", temp),
			Detail: fmt.Sprintf("The hive reads %.1f°C. Above 40°C comb can soften and the colony "+
				"may abscond; provide shade or ventilation.", temp),
			Value: &temp,
		}
	case types.ReasonNoActivity:
		return DiagnosticHint{
			Key:   "no_activity",
			Level: "warning",
			Title: "No traffic",
			Detail: "No bees entered or left since the last reading. This is normal at night " +
				"or in cold weather, otherwise inspect the entrance and the counter.",
		}
	case types.ReasonMostLeft:
		v := float64(rec.Out)
		return DiagnosticHint{
			Key:   "mass_departure",
			Level: "critical",
			Title: "Mass departure",
			Detail: fmt.Sprintf("%d of %d movements were exits. A departure this lopsided can mean "+
				"swarming, robbing or a predator at the hive.", rec.Out, rec.Total),
			Value: &v,
		}
	case types.ReasonNoExits:
		v := float64(rec.In)
		return DiagnosticHint{
			Key:   "no_exits",
			Level: "warning",
			Title: "Entries but no exits",
			Detail: fmt.Sprintf("%d bees came in and none left. The exit side of the counter may be "+
				"blocked or faulty.", rec.In),
			Value: &v,
		}
	case types.ReasonHighSound:
		peak := spectrumPeak(rec.Spectrum)
		return DiagnosticHint{
			Key:   "sound_peak",
			Level: "warning",
			Title: "Loud sound peaks",
			Detail: fmt.Sprintf("The sound spectrum peaks at %.2f. Sustained loud buzzing often "+
				"precedes swarming or signals a queenless colony.", peak),
			Value: &peak,
		}
	case types.ReasonLowSound:
		return DiagnosticHint{
			Key:    "sound_low",
			Level:  "warning",
			Title:  "Very quiet hive",
			Detail: "Sound levels are almost flat. A silent hive may be weak, dead, or the microphone may be disconnected.",
		}
	case types.ReasonMissingSpectrum:
		return DiagnosticHint{
			Key:    "spectrum_missing",
			Level:  "info",
			Title:  "No sound data",
			Detail: "No sound spectrum was recorded for this reading.",
		}
	default:
		return DiagnosticHint{
			Key:    "other",
			Level:  "info",
			Title:  reason,
			Detail: reason,
		}
	}
}

func spectrumPeak(s []float64) float64 {
	var peak float64
	for _, v := range s {
		if v > peak {
			peak = v
		}
	}
	return peak
}
