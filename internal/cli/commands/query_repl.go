package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/sqlbridge/pkg/core"
	"github.com/spf13/cobra"
)

func runQueryREPL(cmd *cobra.Command, conn core.ConnConfig, opts *QueryOptions) error {
	historyFile := replHistoryFile()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "sqlbridge> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "sqlbridge REPL (engine: %s)\n", conn.Type)
	_, _ = fmt.Fprintln(out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(out)

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.Reset()
			rl.SetPrompt("sqlbridge> ")
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".") && buf.Len() == 0 {
			if line == ".quit" || line == ".exit" {
				break
			}
			handleDotCommand(out, line, opts)
			continue
		}

		// Accumulate multi-line SQL until semicolon
		buf.WriteString(line)
		buf.WriteString(" ")
		if !strings.HasSuffix(line, ";") {
			rl.SetPrompt("      ...> ")
			continue
		}

		sqlText := strings.TrimSuffix(strings.TrimSpace(buf.String()), ";")
		buf.Reset()
		rl.SetPrompt("sqlbridge> ")

		if err := executeAndRender(cmd.Context(), cmd, conn, sqlText, opts); err != nil {
			_, _ = fmt.Fprintf(out, "Error: %v\n", err)
		}
	}

	return nil
}

func handleDotCommand(out io.Writer, line string, opts *QueryOptions) {
	fields := strings.Fields(line)
	switch fields[0] {
	case ".help":
		_, _ = fmt.Fprintln(out, "Commands:")
		_, _ = fmt.Fprintln(out, "  .help            Show this help")
		_, _ = fmt.Fprintln(out, "  .format FORMAT   Set output format (table, json, csv, md)")
		_, _ = fmt.Fprintln(out, "  .quit            Exit the REPL")
		_, _ = fmt.Fprintln(out, "Statements end with a semicolon.")
	case ".format":
		if len(fields) < 2 {
			_, _ = fmt.Fprintf(out, "Current format: %s\n", opts.Format)
			return
		}
		opts.Format = fields[1]
		_, _ = fmt.Fprintf(out, "Format set to %s\n", opts.Format)
	default:
		_, _ = fmt.Fprintf(out, "Unknown command %s (try .help)\n", fields[0])
	}
}

func replHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".sqlbridge_history")
}
