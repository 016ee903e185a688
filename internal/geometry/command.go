package geometry

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	pathPlaceholder = "{path}"
	// waitDelay bounds how long output pipes held by orphaned children may
	// outlive a killed command.
	waitDelay = 2 * time.Second
)

// CommandReader runs an external CAD kernel, e.g. a script around OpenCASCADE,
// that prints the solid volume of the file in native units on stdout.
// Command is split on whitespace; {path} is replaced with the model path, or
// the path is appended when no placeholder is present.
type CommandReader struct {
	Command string
}

type fixedVolume float64

func (v fixedVolume) Volume() (float64, error) { return float64(v), nil }

func (r CommandReader) Read(ctx context.Context, path string) (Solid, error) {
	args := strings.Fields(r.Command)
	if len(args) == 0 {
		return nil, errors.New("geometry command is not configured")
	}

	substituted := false
	for i, a := range args {
		if strings.Contains(a, pathPlaceholder) {
			args[i] = strings.ReplaceAll(a, pathPlaceholder, path)
			substituted = true
		}
	}
	if !substituted {
		args = append(args, path)
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.WaitDelay = waitDelay
	out, err := cmd.Output()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("geometry command: %w", ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("geometry command: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("geometry command: %w", err)
	}

	raw := strings.TrimSpace(string(out))
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("geometry command printed %q, want a volume", raw)
	}
	return fixedVolume(v), nil
}
