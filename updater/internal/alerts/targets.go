package alerts

import (
	"log/slog"

	"github.com/hivewatch/hivewatch/updater/internal/config"
)

// TargetsFromConfig builds the webhook and MQTT targets in cfg. Webhooks whose
// URL variable is unset are skipped with a warning. The returned closer
// releases the MQTT connection, if any.
func TargetsFromConfig(cfg config.AlertsConfig) ([]Target, func(), error) {
	var targets []Target
	for _, wh := range cfg.Webhooks {
		url := wh.URL()
		if url == "" {
			slog.Warn("alerts: webhook url not set, skipping", "type", wh.Type, "env", wh.URLEnv)
			continue
		}
		targets = append(targets, NewWebhook(wh.Type, url))
	}

	closer := func() {}
	if cfg.MQTT.Enabled() {
		m, err := DialMQTT(cfg.MQTT)
		if err != nil {
			return nil, closer, err
		}
		targets = append(targets, m)
		closer = m.Close
		slog.Info("alerts: mqtt connected", "broker", cfg.MQTT.Broker, "prefix", cfg.MQTT.TopicPrefix)
	}
	return targets, closer, nil
}
