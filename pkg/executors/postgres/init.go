package postgres

import (
	"log/slog"

	"github.com/leapstack-labs/sqlbridge/pkg/executor"
)

func init() {
	executor.Register("postgres", func(logger *slog.Logger) executor.Executor { return New(logger) })
}
