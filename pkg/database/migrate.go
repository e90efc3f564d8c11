package database

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/siakad-api/db/migrations"
)

// gooseRun is swapped in tests.
var gooseRun = goose.Run

// Migrate runs a goose command ("up", "down", "status", "redo", "version", ...)
// against the embedded SQL migrations.
func Migrate(db *sql.DB, logger *zap.Logger, command string, args ...string) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(&gooseLogger{sugar: logger.Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := gooseRun(command, db, ".", args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

type gooseLogger struct {
	sugar *zap.SugaredLogger
}

func (l *gooseLogger) Fatal(v ...interface{})                 { l.sugar.Fatal(v...) }
func (l *gooseLogger) Fatalf(format string, v ...interface{}) { l.sugar.Fatalf(format, v...) }
func (l *gooseLogger) Print(v ...interface{})                 { l.sugar.Info(v...) }
func (l *gooseLogger) Println(v ...interface{})               { l.sugar.Info(v...) }
func (l *gooseLogger) Printf(format string, v ...interface{}) { l.sugar.Infof(format, v...) }
