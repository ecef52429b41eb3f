package migrations

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/pressly/goose/v3"
)

// SetLogger routes goose output through log. Progress lines are logged at Debug.
func SetLogger(log *slog.Logger) {
	goose.SetLogger(gooseLogger{log: log})
}

type gooseLogger struct {
	log *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.Debug("goose: " + strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.Error("goose: " + strings.TrimSpace(fmt.Sprintf(format, v...)))
	os.Exit(1)
}
