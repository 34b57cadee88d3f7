// Package config resolves, parses, validates, and defaults cluely configuration.
package config

// Config is the fully materialized runtime configuration used by cluely.
type Config struct {
	Gateway     GatewayConfig
	Scribe      ScribeConfig
	Audio       AudioConfig
	Screenshots ScreenshotsConfig
	Indicator   IndicatorConfig
	Metrics     MetricsConfig
}

// GatewayConfig controls the lifecycle event ingress.
type GatewayConfig struct {
	Listen        string
	DialTimeoutMS int
}

// ScribeConfig controls token exchange and the realtime transcription stream.
type ScribeConfig struct {
	APIBase        string
	RealtimeURL    string
	APIKeyEnv      string
	TokenTimeoutMS int
	LanguageCode   string
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// ScreenshotsConfig locates the extra screenshot queue.
type ScreenshotsConfig struct {
	Dir        string
	Max        int
	Extensions []string
}

// IndicatorConfig controls desktop notifications.
type IndicatorConfig struct {
	Enable         bool
	DesktopAppName string
	TimeoutMS      int
}

// MetricsConfig controls the Prometheus endpoint. An empty Listen disables it.
type MetricsConfig struct {
	Listen string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
