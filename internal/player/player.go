// Package player launches an external media player for a resolved variant.
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jmylchreest/playarr/internal/observability"
	"github.com/jmylchreest/playarr/pkg/hls"
)

// EnvPlayerPath overrides the player binary location.
const EnvPlayerPath = "PLAYARR_PLAYER_PATH"

// FindBinary locates an executable. Search order:
//  1. the path in envVar, when set and executable
//  2. name itself when it contains a path separator
//  3. name on PATH
func FindBinary(name, envVar string) (string, error) {
	if envVar != "" {
		if envPath := os.Getenv(envVar); envPath != "" && isExecutable(envPath) {
			return envPath, nil
		}
	}

	if strings.ContainsRune(name, filepath.Separator) {
		if isExecutable(name) {
			return name, nil
		}
		return "", fmt.Errorf("binary %s is not executable", name)
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("binary %s not found", name)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}

// Launcher prints each variant URL and, when a command is configured, starts
// the player with the URL as its last argument. It implements the session
// Player interface.
type Launcher struct {
	path   string
	args   []string
	out    io.Writer
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger

	// ctx bounds the player process, not the call to Play.
	ctx    context.Context
	exited chan error
	once   sync.Once
}

// NewLauncher creates a launcher for command, a binary name or path followed
// by arguments. An empty command only prints URLs to out.
func NewLauncher(ctx context.Context, command string, out io.Writer, logger *slog.Logger) (*Launcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Launcher{
		out:    out,
		stdout: os.Stdout,
		stderr: os.Stderr,
		logger: observability.WithComponent(logger, "player"),
		ctx:    ctx,
		exited: make(chan error, 1),
	}

	fields := strings.Fields(command)
	if len(fields) == 0 {
		return l, nil
	}
	path, err := FindBinary(fields[0], EnvPlayerPath)
	if err != nil {
		return nil, err
	}
	l.path = path
	l.args = fields[1:]
	return l, nil
}

// Play prints the URL and starts the player once. Later calls only print.
func (l *Launcher) Play(_ context.Context, v hls.Variant) error {
	if v.URL == "" {
		return errors.New("variant has no URL")
	}
	if l.out != nil {
		fmt.Fprintln(l.out, v.URL)
	}
	if l.path == "" {
		return nil
	}

	var err error
	l.once.Do(func() {
		proc := exec.CommandContext(l.ctx, l.path, append(l.args, v.URL)...)
		proc.Stdout = l.stdout
		proc.Stderr = l.stderr
		if err = proc.Start(); err != nil {
			err = fmt.Errorf("launching %s: %w", l.path, err)
			return
		}
		l.logger.Info("player started",
			slog.String("binary", l.path),
			slog.String("quality", v.Quality),
			slog.Int("pid", proc.Process.Pid),
		)
		go func() { l.exited <- proc.Wait() }()
	})
	return err
}

// Exited receives the player's exit status. It never fires when no command
// is configured.
func (l *Launcher) Exited() <-chan error {
	return l.exited
}
