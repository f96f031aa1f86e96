package types

// Alert reasons stored in a record's alertReasons field, in the order the
// updater evaluates them.
const (
	ReasonTemperatureLow  = "temperature too low"
	ReasonTemperatureHigh = "temperature too high"
	ReasonNoActivity      = "no activity detected"
	ReasonMostLeft        = "most bees have left — possible external disturbance"
	ReasonNoExits         = "no exits detected despite entries"
	ReasonHighSound       = "high sound peaks detected"
	ReasonLowSound        = "abnormally low sound activity"
	ReasonMissingSpectrum = "missing sound spectrum data"
)
