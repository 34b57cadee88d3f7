package app

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/cluely/internal/ipc"
)

func TestExecuteHelp(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--help"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "Usage:")
	require.Empty(t, stderr.String())
}

func TestExecuteVersion(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"version"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "cluely")
	require.Empty(t, stderr.String())
}

func TestExecuteUnknownCommand(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"definitely-not-a-command"}, &stdout, &stderr)
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown command")
	require.Contains(t, stderr.String(), "Usage:")
}

func TestRunnerStatusReportsNotRunningWhenSocketUnavailable(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "not running\n", stdout.String())
	require.NotContains(t, stderr.String(), "error:")
}

func TestRunnerStopReturnsNoRunningDaemon(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "stop"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "no running cluely daemon")
}

func TestRunnerForwardsCommandsToRunningDaemon(t *testing.T) {
	paths := setupRunnerEnv(t)
	commands := make(chan string, 8)

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "cluely.sock"), func(_ context.Context, req ipc.Request) ipc.Response {
		commands <- req.Command
		switch req.Command {
		case "status":
			return ipc.Success("solving", `{"stage":"solving","view":"queue","voice":"listening","extras":1}`)
		case "stop", "reset":
			return ipc.Success("solving", req.Command+" handled")
		default:
			return ipc.Failure("solving", "unsupported")
		}
	})
	defer shutdown()

	outputs := map[string]string{}
	for _, cmd := range []string{"status", "stop", "reset"} {
		stdout := &bytes.Buffer{}
		stderr := &bytes.Buffer{}
		runner := Runner{Stdout: stdout, Stderr: stderr}

		exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, cmd})
		require.Equal(t, 0, exitCode, cmd)
		require.NotContains(t, stderr.String(), "error:", cmd)
		outputs[cmd] = stdout.String()
	}

	got := []string{<-commands, <-commands, <-commands}
	require.ElementsMatch(t, []string{"status", "stop", "reset"}, got)
	require.Equal(t, "stage=solving view=queue voice=listening debugging=false problem=no solution=no extras=1\n", outputs["status"])
	require.Equal(t, "reset handled\n", outputs["reset"])
}

func TestFormatStatus(t *testing.T) {
	line := formatStatus(ipc.Response{OK: true, State: "solved", Message: `{"stage":"solved","view":"solutions","voice":"idle","debugging":true,"has_problem":true,"has_solution":true,"extras":0,"last_error":"boom"}`})
	require.Equal(t, `stage=solved view=solutions voice=idle debugging=true problem=yes solution=yes extras=0 last_error="boom"`, line)

	require.Equal(t, "solving", formatStatus(ipc.Response{OK: true, State: "solving", Message: "not json"}))
	require.Equal(t, "queued", formatStatus(ipc.Response{OK: true}))
}

func TestRunnerDoctorCommandDispatchesAndPrintsReport(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "doctor"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stdout.String(), "[OK] config: loaded")
	require.Contains(t, stdout.String(), "[FAIL] scribe.auth: skipped: no API key")
}

func TestRunnerDevicesCommandDispatches(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "devices"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error:")
}

func TestRunnerEmitFailsWithoutDaemon(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "emit", "capture-taken"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "wait for gateway readiness")
}

func TestRunnerRunServesControlAndGateway(t *testing.T) {
	paths := setupRunnerEnv(t)
	socketPath := filepath.Join(paths.runtimeDir, "cluely.sock")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var daemonErr bytes.Buffer
	exited := make(chan int, 1)
	go func() {
		runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &daemonErr}
		exited <- runner.Execute(ctx, []string{"--config", paths.configPath, "run"})
	}()

	require.Eventually(t, func() bool {
		alive, _ := ipc.Probe(context.Background(), socketPath, 100*time.Millisecond)
		return alive
	}, 5*time.Second, 20*time.Millisecond)

	exec := func(args ...string) (int, string, string) {
		var stdout bytes.Buffer
		var stderr bytes.Buffer
		runner := Runner{Stdout: &stdout, Stderr: &stderr}
		code := runner.Execute(context.Background(), append([]string{"--config", paths.configPath}, args...))
		return code, stdout.String(), stderr.String()
	}

	code, out, _ := exec("status")
	require.Equal(t, 0, code)
	require.Contains(t, out, "stage=queued view=queue voice=idle")

	code, out, errOut := exec("emit", "capture-taken")
	require.Equal(t, 0, code, errOut)
	require.Equal(t, "capture-taken delivered to 1 subscriber(s)\n", out)

	code, out, _ = exec("emit", "solve-error", `{"message":"no problem found"}`)
	require.Equal(t, 0, code)
	require.Contains(t, out, "solve-error delivered")

	code, out, _ = exec("stop")
	require.Equal(t, 0, code)
	require.Equal(t, "voice capture already stopped\n", out)

	code, out, _ = exec("reset")
	require.Equal(t, 0, code)
	require.Equal(t, "reset requested\n", out)

	code, _, errOut = exec("run")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, ipc.ErrAlreadyRunning.Error())

	cancel()
	select {
	case code := <-exited:
		require.Equal(t, 0, code, daemonErr.String())
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not exit")
	}

	_, statErr := os.Stat(socketPath)
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

type runnerPaths struct {
	configPath string
	runtimeDir string
}

func setupRunnerEnv(t *testing.T) runnerPaths {
	t.Helper()

	t.Setenv("XDG_STATE_HOME", t.TempDir())
	runtimeDir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)
	t.Setenv("CLUELY_TEST_API_KEY", "")

	content := fmt.Sprintf(`{
  // test daemon
  "gateway": {"listen": %q, "dial_timeout_ms": 300},
  "scribe": {"api_key_env": "CLUELY_TEST_API_KEY"},
  "screenshots": {"dir": %q},
  "indicator": {"enable": false},
  "metrics": {"listen": ""},
}
`, freeAddr(t), t.TempDir())

	configPath := filepath.Join(t.TempDir(), "config.jsonc")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	return runnerPaths{configPath: configPath, runtimeDir: runtimeDir}
}

func freeAddr(t *testing.T) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	return addr
}

func startIPCServerForRunnerTest(t *testing.T, socketPath string, handler func(context.Context, ipc.Request) ipc.Response) func() {
	t.Helper()

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ipc.Serve(ctx, listener, ipc.HandlerFunc(handler))
	}()

	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}
