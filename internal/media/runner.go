package media

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// CommandResult carries the output and exit status of one collaborator tool
// invocation.
type CommandResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// CommandRunner runs an external command. It exists so tests can fake the
// collaborator tools; exit-code interpretation stays with the adapters.
type CommandRunner func(ctx context.Context, name string, args ...string) (CommandResult, error)

// runCommand is the production CommandRunner. A non-zero exit status is
// reported through ExitCode, not through the error value, so callers can
// distinguish warning exits from fatal ones.
func runCommand(ctx context.Context, name string, args ...string) (CommandResult, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return CommandResult{}, err
	}

	cmd := exec.CommandContext(ctx, path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	result := CommandResult{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}

	if runErr != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, runErr
	}

	return result, nil
}
