// Package doctor runs runtime readiness diagnostics for config, credentials,
// desktop integration, audio, and the gateway ingress.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/cluely/internal/audio"
	"github.com/rbright/cluely/internal/config"
	"github.com/rbright/cluely/internal/ipc"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{}

	configMsg := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		configMsg = fmt.Sprintf("%q not found; using defaults", cfg.Path)
	}
	checks = append(checks, Check{Name: "config", Pass: true, Message: configMsg})

	checks = append(checks, checkEnv(cfg.Config.Scribe.APIKeyEnv, func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "API key is set", fmt.Sprintf("%s is empty; voice input cannot fetch tokens", cfg.Config.Scribe.APIKeyEnv)))

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "runtime dir is set", "XDG_RUNTIME_DIR is empty; control socket unavailable"))

	if cfg.Config.Indicator.Enable {
		checks = append(checks, checkBinary("busctl", "desktop notifications"))
	}

	checks = append(checks, checkScreenshotDir(cfg.Config.Screenshots))
	checks = append(checks, checkAudioSelection(ctx, cfg.Config))
	checks = append(checks, checkScribeAuth(ctx, cfg.Config.Scribe))
	checks = append(checks, checkGatewayListen(ctx, cfg.Config.Gateway))

	return Report{Checks: checks}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

func checkScreenshotDir(cfg config.ScreenshotsConfig) Check {
	dir, err := config.ExpandHome(cfg.Dir)
	if err != nil {
		return Check{Name: "screenshots.dir", Pass: false, Message: err.Error()}
	}
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Check{Name: "screenshots.dir", Pass: true, Message: fmt.Sprintf("%s does not exist yet; extras list is empty", dir)}
	case err != nil:
		return Check{Name: "screenshots.dir", Pass: false, Message: err.Error()}
	case !info.IsDir():
		return Check{Name: "screenshots.dir", Pass: false, Message: fmt.Sprintf("%s is not a directory", dir)}
	}
	return Check{Name: "screenshots.dir", Pass: true, Message: dir}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, audio.Preferences{
		Input:            cfg.Audio.Input,
		Fallback:         cfg.Audio.Fallback,
		EchoCancellation: true,
	})
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkScribeAuth validates the API key against the account endpoint without
// minting a token.
func checkScribeAuth(ctx context.Context, cfg config.ScribeConfig) Check {
	key := strings.TrimSpace(os.Getenv(cfg.APIKeyEnv))
	if key == "" {
		return Check{Name: "scribe.auth", Pass: false, Message: "skipped: no API key"}
	}

	url := strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/") + "/v1/user"
	reqCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return Check{Name: "scribe.auth", Pass: false, Message: err.Error()}
	}
	req.Header.Set("xi-api-key", key)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Check{Name: "scribe.auth", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Check{Name: "scribe.auth", Pass: false, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, url)}
	}
	return Check{Name: "scribe.auth", Pass: true, Message: fmt.Sprintf("API key accepted by %s", url)}
}

// checkGatewayListen passes when the ingress address is free or already held
// by a running daemon.
func checkGatewayListen(ctx context.Context, cfg config.GatewayConfig) Check {
	listener, err := net.Listen("tcp", cfg.Listen)
	if err == nil {
		_ = listener.Close()
		return Check{Name: "gateway.listen", Pass: true, Message: fmt.Sprintf("%s is free", cfg.Listen)}
	}

	if socketPath, pathErr := ipc.RuntimeSocketPath(); pathErr == nil {
		if alive, _ := ipc.Probe(ctx, socketPath, 200*time.Millisecond); alive {
			return Check{Name: "gateway.listen", Pass: true, Message: fmt.Sprintf("%s is served by the running daemon", cfg.Listen)}
		}
	}
	return Check{Name: "gateway.listen", Pass: false, Message: fmt.Sprintf("cannot listen on %s: %v", cfg.Listen, err)}
}
