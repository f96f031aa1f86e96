package api

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	State        string `json:"state"` // ok | alerting | unknown
	HiveCount    int    `json:"hive_count"`
	HealthyCount int    `json:"healthy_count"`
	AlertCount   int    `json:"alert_count"`
}

// HiveResponse is one hive in GET /api/v1/hives or GET /api/v1/hives/{id}.
type HiveResponse struct {
	ID           string           `json:"id"`
	In           int              `json:"in"`
	Out          int              `json:"out"`
	Total        int              `json:"total"`
	Temperature  float64          `json:"temperature"`
	Spectrum     []float64        `json:"spectrum"`
	Alert        bool             `json:"alert"`
	AlertReasons []string         `json:"alertReasons"`
	Diagnostics  []DiagnosticHint `json:"diagnostics"`
}

// TemperatureStats summarises temperature across hives.
type TemperatureStats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// ActivityResponse is the payload for GET /api/v1/activity: traffic and
// readings aggregated across every hive.
type ActivityResponse struct {
	HiveCount    int              `json:"hive_count"`
	In           int              `json:"in"`
	Out          int              `json:"out"`
	Total        int              `json:"total"`
	Temperature  TemperatureStats `json:"temperature"`
	SpectrumPeak float64          `json:"spectrum_peak"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the data of
// every WebSocket message.
type SnapshotResponse struct {
	Hives       []HiveResponse `json:"hives"`
	HiveCount   int            `json:"hive_count"`
	AlertCount  int            `json:"alert_count"`
	GeneratedAt string         `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
