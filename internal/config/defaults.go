package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Gateway: GatewayConfig{
			Listen:        "127.0.0.1:47821",
			DialTimeoutMS: 3000,
		},
		Scribe: ScribeConfig{
			APIBase:        "https://api.elevenlabs.io",
			RealtimeURL:    "wss://api.elevenlabs.io/v1/speech-to-text/realtime",
			APIKeyEnv:      "ELEVENLABS_API_KEY",
			TokenTimeoutMS: 10000,
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Screenshots: ScreenshotsConfig{
			Dir:        "~/.local/state/cluely/extra_screenshots",
			Max:        5,
			Extensions: []string{".png", ".jpg", ".jpeg"},
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			DesktopAppName: "cluely",
			TimeoutMS:      3000,
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9464",
		},
	}
}
