package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Gateway     *jsoncGateway     `json:"gateway"`
	Scribe      *jsoncScribe      `json:"scribe"`
	Audio       *jsoncAudio       `json:"audio"`
	Screenshots *jsoncScreenshots `json:"screenshots"`
	Indicator   *jsoncIndicator   `json:"indicator"`
	Metrics     *jsoncMetrics     `json:"metrics"`
}

type jsoncGateway struct {
	Listen        *string `json:"listen"`
	DialTimeoutMS *int    `json:"dial_timeout_ms"`
}

type jsoncScribe struct {
	APIBase        *string `json:"api_base"`
	RealtimeURL    *string `json:"realtime_url"`
	APIKeyEnv      *string `json:"api_key_env"`
	TokenTimeoutMS *int    `json:"token_timeout_ms"`
	LanguageCode   *string `json:"language_code"`
}

type jsoncAudio struct {
	Input    *string `json:"input"`
	Fallback *string `json:"fallback"`
}

type jsoncScreenshots struct {
	Dir        *string          `json:"dir"`
	Max        *int             `json:"max"`
	Extensions *jsoncStringList `json:"extensions"`
}

type jsoncIndicator struct {
	Enable         *bool   `json:"enable"`
	DesktopAppName *string `json:"desktop_app_name"`
	TimeoutMS      *int    `json:"timeout_ms"`
}

type jsoncMetrics struct {
	Listen *string `json:"listen"`
}

type jsoncStringList []string

func (l *jsoncStringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		parts := strings.Split(single, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			out = append(out, part)
		}
		*l = out
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	cfg.Screenshots.Extensions = append([]string(nil), base.Screenshots.Extensions...)
	warnings := payload.applyTo(&cfg)

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) []Warning {
	warnings := make([]Warning, 0)

	if payload.Gateway != nil {
		setString(&cfg.Gateway.Listen, payload.Gateway.Listen)
		setInt(&cfg.Gateway.DialTimeoutMS, payload.Gateway.DialTimeoutMS)
	}

	if payload.Scribe != nil {
		setString(&cfg.Scribe.APIBase, payload.Scribe.APIBase)
		setString(&cfg.Scribe.RealtimeURL, payload.Scribe.RealtimeURL)
		setString(&cfg.Scribe.APIKeyEnv, payload.Scribe.APIKeyEnv)
		setInt(&cfg.Scribe.TokenTimeoutMS, payload.Scribe.TokenTimeoutMS)
		setString(&cfg.Scribe.LanguageCode, payload.Scribe.LanguageCode)
	}

	if payload.Audio != nil {
		setString(&cfg.Audio.Input, payload.Audio.Input)
		setString(&cfg.Audio.Fallback, payload.Audio.Fallback)
	}

	if payload.Screenshots != nil {
		setString(&cfg.Screenshots.Dir, payload.Screenshots.Dir)
		setInt(&cfg.Screenshots.Max, payload.Screenshots.Max)
		if payload.Screenshots.Extensions != nil {
			cfg.Screenshots.Extensions = cfg.Screenshots.Extensions[:0]
			for _, ext := range *payload.Screenshots.Extensions {
				ext = strings.ToLower(strings.TrimSpace(ext))
				if ext == "" {
					continue
				}
				if !strings.HasPrefix(ext, ".") {
					warnings = append(warnings, Warning{Message: fmt.Sprintf("screenshots.extensions entry %q has no leading dot; using %q", ext, "."+ext)})
					ext = "." + ext
				}
				cfg.Screenshots.Extensions = append(cfg.Screenshots.Extensions, ext)
			}
		}
	}

	if payload.Indicator != nil {
		if payload.Indicator.Enable != nil {
			cfg.Indicator.Enable = *payload.Indicator.Enable
		}
		setString(&cfg.Indicator.DesktopAppName, payload.Indicator.DesktopAppName)
		setInt(&cfg.Indicator.TimeoutMS, payload.Indicator.TimeoutMS)
	}

	if payload.Metrics != nil {
		setString(&cfg.Metrics.Listen, payload.Metrics.Listen)
	}

	return warnings
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if lineComment {
			if ch == '\n' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			if ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
			continue
		}

		if blockComment {
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
			continue
		}

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(content) {
			next := content[i+1]
			if next == '/' {
				lineComment = true
				out.WriteString("  ")
				i++
				continue
			}
			if next == '*' {
				blockComment = true
				out.WriteString("  ")
				i++
				continue
			}
		}

		out.WriteByte(ch)
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
