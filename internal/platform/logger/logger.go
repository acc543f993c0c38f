// Package logger constructs the process-wide structured logger.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
)

// New returns a slog logger writing to stdout. When path is non-empty, output
// goes to a daily-rotated file instead, keeping seven days of history.
func New(path string) (*slog.Logger, error) {
	var w io.Writer = os.Stdout
	if path != "" {
		rl, err := rotatelogs.New(
			path+".%Y%m%d",
			rotatelogs.WithLinkName(path),
			rotatelogs.WithRotationTime(24*time.Hour),
			rotatelogs.WithMaxAge(7*24*time.Hour),
		)
		if err != nil {
			return nil, fmt.Errorf("open rotating log %s: %w", path, err)
		}
		w = rl
	}
	return slog.New(slog.NewTextHandler(w, nil)), nil
}
