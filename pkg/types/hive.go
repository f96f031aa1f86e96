package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Stored field keys. These are the names used by every store backend and by
// the JSON representation served by the status API.
const (
	FieldIn           = "in"
	FieldOut          = "out"
	FieldTotal        = "total"
	FieldTemperature  = "temperature"
	FieldSpectrum     = "spectrum"
	FieldAlert        = "alert"
	FieldAlertReasons = "alertReasons"
)

// Temperature bounds enforced on every simulated reading.
const (
	MinTemperature = 0.0
	MaxTemperature = 50.0
)

// HiveRecord is one monitored hive's latest sensor snapshot.
type HiveRecord struct {
	ID           string    `json:"id"`
	In           int       `json:"in"`
	Out          int       `json:"out"`
	Total        int       `json:"total"`
	Temperature  float64   `json:"temperature"`
	Spectrum     []float64 `json:"spectrum"`
	Alert        bool      `json:"alert"`
	AlertReasons []string  `json:"alertReasons"`
}

// Prior holds the stored values the simulator advances from.
// A nil field means the key was absent or not numeric.
type Prior struct {
	In          *int
	Out         *int
	Temperature *float64
}

// Fields returns exactly the seven derived keys written back on every tick.
// Other stored keys are never part of an update.
func (h HiveRecord) Fields() map[string]any {
	spectrum := h.Spectrum
	if spectrum == nil {
		spectrum = []float64{}
	}
	reasons := h.AlertReasons
	if reasons == nil {
		reasons = []string{}
	}
	return map[string]any{
		FieldIn:           h.In,
		FieldOut:          h.Out,
		FieldTotal:        h.Total,
		FieldTemperature:  h.Temperature,
		FieldSpectrum:     spectrum,
		FieldAlert:        h.Alert,
		FieldAlertReasons: reasons,
	}
}

// Validate reports the first broken record invariant, or nil.
func (h HiveRecord) Validate() error {
	if h.In < 0 || h.Out < 0 {
		return fmt.Errorf("hive %q: negative counts in=%d out=%d", h.ID, h.In, h.Out)
	}
	if h.Total != h.In+h.Out {
		return fmt.Errorf("hive %q: total %d != in %d + out %d", h.ID, h.Total, h.In, h.Out)
	}
	if h.Temperature < MinTemperature || h.Temperature > MaxTemperature {
		return fmt.Errorf("hive %q: temperature %.2f outside [%g, %g]",
			h.ID, h.Temperature, MinTemperature, MaxTemperature)
	}
	if h.Alert != (len(h.AlertReasons) > 0) {
		return fmt.Errorf("hive %q: alert=%t with %d reasons", h.ID, h.Alert, len(h.AlertReasons))
	}
	return nil
}

// PriorFromFields extracts the simulator inputs from a stored field mapping.
// Missing or malformed values are left nil; decoding never fails.
func PriorFromFields(fields map[string]any) Prior {
	var p Prior
	if v, ok := toInt(fields[FieldIn]); ok {
		p.In = &v
	}
	if v, ok := toInt(fields[FieldOut]); ok {
		p.Out = &v
	}
	if v, ok := toFloat(fields[FieldTemperature]); ok {
		p.Temperature = &v
	}
	return p
}

// FromFields decodes a stored field mapping into a HiveRecord. Unknown keys are
// ignored and missing or malformed values decode to their zero value.
func FromFields(id string, fields map[string]any) HiveRecord {
	h := HiveRecord{ID: id}
	h.In, _ = toInt(fields[FieldIn])
	h.Out, _ = toInt(fields[FieldOut])
	h.Total, _ = toInt(fields[FieldTotal])
	h.Temperature, _ = toFloat(fields[FieldTemperature])
	h.Spectrum = toFloatSlice(fields[FieldSpectrum])
	h.Alert, _ = fields[FieldAlert].(bool)
	h.AlertReasons = toStringSlice(fields[FieldAlertReasons])
	return h
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	return int(math.Round(f)), true
}

func toFloatSlice(v any) []float64 {
	switch s := v.(type) {
	case []float64:
		out := make([]float64, len(s))
		copy(out, s)
		return out
	case []any:
		out := make([]float64, 0, len(s))
		for _, e := range s {
			if f, ok := toFloat(e); ok {
				out = append(out, f)
			}
		}
		return out
	default:
		return nil
	}
}

func toStringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		out := make([]string, len(s))
		copy(out, s)
		return out
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}
