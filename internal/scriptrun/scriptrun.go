// Package scriptrun executes monitoring scripts and automations with a hard
// timeout, bounded output capture, and process-group cleanup so a hung child
// never outlives its run.
package scriptrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/breeze-rmm/monitor/internal/logging"
	"github.com/breeze-rmm/monitor/internal/policy"
)

var log = logging.L("scriptrun")

const (
	// DefaultTimeout applies when a request carries none.
	DefaultTimeout = 5 * time.Minute

	// MaxTimeout caps any configured timeout.
	MaxTimeout = time.Hour

	// MaxOutputSize is the maximum combined stdout+stderr captured per run.
	MaxOutputSize = 1024 * 1024
)

// ExecutionError reports that a script failed to launch, crashed the shell,
// or timed out. A non-zero exit code from a script that ran to completion is
// NOT an execution error; it is a result.
type ExecutionError struct {
	Script   string
	TimedOut bool
	Err      error
}

func (e *ExecutionError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("script %q timed out: %v", e.Script, e.Err)
	}
	return fmt.Sprintf("script %q failed to execute: %v", e.Script, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// IsExecutionError reports whether err classifies as a script execution
// failure.
func IsExecutionError(err error) bool {
	var e *ExecutionError
	return errors.As(err, &e)
}

// Request is one script run.
type Request struct {
	Name       string // script reference, for logging and errors
	Script     string // script content
	ScriptType string // powershell, bash, sh, cmd, python
	Timeout    time.Duration
	RunAs      policy.RunAs
	Parameters []policy.Parameter
}

// Outcome is the completed run: exit code plus the captured combined output.
type Outcome struct {
	TimedOut   bool
	ExitCode   int
	Output     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Runner executes requests in a scratch directory.
type Runner struct {
	workDir string
}

// NewRunner creates a runner with a per-process scratch directory.
func NewRunner() *Runner {
	workDir := filepath.Join(os.TempDir(), "breeze-monitor-scripts")
	if err := os.MkdirAll(workDir, 0o700); err != nil {
		workDir = os.TempDir()
	}
	return &Runner{workDir: workDir}
}

// Run executes the request. The returned error is an *ExecutionError when
// the script could not run or timed out; a completed run with a non-zero
// exit code returns a nil error.
func (r *Runner) Run(ctx context.Context, req Request) (Outcome, error) {
	out := Outcome{StartedAt: time.Now()}

	shellCmd, shellArgs, ext, err := shellFor(req.ScriptType)
	if err != nil {
		out.FinishedAt = time.Now()
		return out, &ExecutionError{Script: req.Name, Err: err}
	}

	scriptPath := filepath.Join(r.workDir, fmt.Sprintf("run_%d%s", time.Now().UnixNano(), ext))
	if err := os.WriteFile(scriptPath, []byte(req.Script), 0o700); err != nil {
		out.FinishedAt = time.Now()
		return out, &ExecutionError{Script: req.Name, Err: fmt.Errorf("write script file: %w", err)}
	}
	defer os.Remove(scriptPath)

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, shellCmd, append(shellArgs, scriptPath)...)
	cmd.Dir = r.workDir

	var buf bytes.Buffer
	w := &limitedWriter{buf: &buf, limit: MaxOutputSize}
	cmd.Stdout = w
	cmd.Stderr = w

	cmd.Env = buildEnvironment(req)
	setProcessGroup(cmd)

	if err := configureRunAs(cmd, req.RunAs); err != nil {
		out.FinishedAt = time.Now()
		return out, &ExecutionError{Script: req.Name, Err: err}
	}

	log.Info("starting script", "script", req.Name, "scriptType", req.ScriptType, "timeout", timeout)
	runErr := cmd.Run()

	out.Output = buf.String()
	out.FinishedAt = time.Now()

	if runErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			if killErr := killProcessGroup(cmd); killErr != nil {
				log.Warn("failed to kill process group", "script", req.Name, "error", killErr)
			}
			out.TimedOut = true
			out.ExitCode = -1
			log.Warn("script timed out", "script", req.Name, "timeout", timeout)
			return out, &ExecutionError{Script: req.Name, TimedOut: true, Err: ctx.Err()}
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			log.Info("script completed", "script", req.Name, "exitCode", out.ExitCode)
			return out, nil
		}
		out.ExitCode = -1
		log.Error("script failed to execute", "script", req.Name, "error", runErr)
		return out, &ExecutionError{Script: req.Name, Err: runErr}
	}

	out.ExitCode = 0
	log.Info("script completed", "script", req.Name, "exitCode", 0,
		"duration", out.FinishedAt.Sub(out.StartedAt))
	return out, nil
}

func shellFor(scriptType string) (cmd string, args []string, ext string, err error) {
	switch strings.ToLower(strings.TrimSpace(scriptType)) {
	case "powershell", "ps1":
		if runtime.GOOS == "windows" {
			return "powershell", []string{"-NoProfile", "-ExecutionPolicy", "Bypass", "-File"}, ".ps1", nil
		}
		return "pwsh", []string{"-NoProfile", "-File"}, ".ps1", nil
	case "bash":
		if runtime.GOOS == "windows" {
			return "", nil, "", fmt.Errorf("script type bash is not available on windows")
		}
		return "bash", nil, ".sh", nil
	case "sh", "", "shell":
		if runtime.GOOS == "windows" {
			return "", nil, "", fmt.Errorf("script type sh is not available on windows")
		}
		return "sh", nil, ".sh", nil
	case "cmd", "batch":
		if runtime.GOOS != "windows" {
			return "", nil, "", fmt.Errorf("script type cmd is not available on %s", runtime.GOOS)
		}
		return "cmd", []string{"/C"}, ".bat", nil
	case "python":
		return "python3", nil, ".py", nil
	}
	return "", nil, "", fmt.Errorf("unsupported script type %q", scriptType)
}

// buildEnvironment passes parameters positionally (BREEZE_ARG_n) and by name
// (BREEZE_PARAM_<NAME>).
func buildEnvironment(req Request) []string {
	env := os.Environ()
	env = append(env, "BREEZE_MONITOR_SCRIPT="+req.Name)
	for i, p := range req.Parameters {
		env = append(env, fmt.Sprintf("BREEZE_ARG_%d=%s", i+1, p.Value))
		if p.Name != "" {
			key := "BREEZE_PARAM_" + strings.ToUpper(strings.ReplaceAll(p.Name, "-", "_"))
			env = append(env, key+"="+p.Value)
		}
	}
	return env
}

// configureRunAs maps the policy run-as identity onto the platform. System
// is the default identity of the agent process itself.
func configureRunAs(cmd *exec.Cmd, runAs policy.RunAs) error {
	switch runAs {
	case "", policy.RunAsSystem:
		return nil
	case policy.RunAsCurrentUser, policy.RunAsPreferredLocalAdmin, policy.RunAsPreferredDomainAdmin:
	default:
		return fmt.Errorf("unknown run-as identity %q", runAs)
	}

	switch runtime.GOOS {
	case "windows":
		return fmt.Errorf("run-as %q on Windows is not yet implemented", runAs)
	case "linux", "darwin":
		user := resolveRunAsUser(runAs)
		if user == "" {
			return fmt.Errorf("no local user resolved for run-as %q", runAs)
		}
		originalArgs := cmd.Args
		cmd.Path = "/usr/bin/sudo"
		cmd.Args = append([]string{"sudo", "-n", "-u", user}, originalArgs...)
		return nil
	}
	return fmt.Errorf("run-as not supported on %s", runtime.GOOS)
}

func resolveRunAsUser(runAs policy.RunAs) string {
	switch runAs {
	case policy.RunAsCurrentUser:
		return os.Getenv("SUDO_USER")
	case policy.RunAsPreferredLocalAdmin, policy.RunAsPreferredDomainAdmin:
		return "root"
	}
	return ""
}

// limitedWriter caps captured output without failing the writer.
type limitedWriter struct {
	buf     *bytes.Buffer
	limit   int
	written int
}

func (w *limitedWriter) Write(p []byte) (n int, err error) {
	if w.written >= w.limit {
		return len(p), nil
	}
	remaining := w.limit - w.written
	if len(p) > remaining {
		p = p[:remaining]
	}
	n, err = w.buf.Write(p)
	w.written += n
	return len(p), err
}
