package mysql

import (
	"log/slog"

	"github.com/leapstack-labs/sqlbridge/pkg/executor"
)

func init() {
	executor.Register("mysql", func(logger *slog.Logger) executor.Executor { return New(logger) })
}
