package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if _, _, err := net.SplitHostPort(strings.TrimSpace(cfg.Gateway.Listen)); err != nil {
		return nil, fmt.Errorf("gateway.listen must be host:port: %w", err)
	}
	if cfg.Gateway.DialTimeoutMS <= 0 {
		return nil, fmt.Errorf("gateway.dial_timeout_ms must be > 0")
	}

	if err := validateURL("scribe.api_base", cfg.Scribe.APIBase, "http", "https"); err != nil {
		return nil, err
	}
	if err := validateURL("scribe.realtime_url", cfg.Scribe.RealtimeURL, "ws", "wss"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Scribe.APIKeyEnv) == "" {
		return nil, fmt.Errorf("scribe.api_key_env must not be empty")
	}
	if cfg.Scribe.TokenTimeoutMS <= 0 {
		return nil, fmt.Errorf("scribe.token_timeout_ms must be > 0")
	}
	if strings.TrimSpace(os.Getenv(cfg.Scribe.APIKeyEnv)) == "" {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("%s is not set; voice input will fail to start", cfg.Scribe.APIKeyEnv)})
	}

	if strings.TrimSpace(cfg.Screenshots.Dir) == "" {
		return nil, fmt.Errorf("screenshots.dir must not be empty")
	}
	if cfg.Screenshots.Max <= 0 {
		return nil, fmt.Errorf("screenshots.max must be > 0")
	}
	if len(cfg.Screenshots.Extensions) == 0 {
		return nil, fmt.Errorf("screenshots.extensions must not be empty")
	}

	if cfg.Indicator.Enable && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.enable=true")
	}
	if cfg.Indicator.TimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.timeout_ms must be >= 0")
	}

	if listen := strings.TrimSpace(cfg.Metrics.Listen); listen != "" {
		if _, _, err := net.SplitHostPort(listen); err != nil {
			return nil, fmt.Errorf("metrics.listen must be host:port: %w", err)
		}
		if listen == strings.TrimSpace(cfg.Gateway.Listen) {
			return nil, fmt.Errorf("metrics.listen and gateway.listen must differ")
		}
	}

	return warnings, nil
}

func validateURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL", field)
	}
	for _, scheme := range schemes {
		if u.Scheme == scheme {
			return nil
		}
	}
	return fmt.Errorf("%s must use one of: %s", field, strings.Join(schemes, ", "))
}
