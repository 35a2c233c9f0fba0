package commands

import (
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/sqlbridge/pkg/executor"
	"github.com/spf13/cobra"
)

// NewConnectionsCommand creates the connections command.
func NewConnectionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "connections",
		Short: "List configured connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConnections(cmd)
		},
	}
}

func runConnections(cmd *cobra.Command) error {
	cc := GetCommandContext(cmd)
	out := cmd.OutOrStdout()

	if len(cc.Cfg.Connections) == 0 {
		_, _ = fmt.Fprintln(out, "No connections configured (create sqlbridge.yaml with a connections block)")
		return nil
	}

	ids := make([]string, 0, len(cc.Cfg.Connections))
	for id := range cc.Cfg.Connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "ENGINE", "TARGET", "REGISTERED"})

	for _, id := range ids {
		conn := cc.Cfg.Connections[id]
		target := conn.Path
		if target == "" {
			target = fmt.Sprintf("%s:%d/%s", conn.Host, conn.Port, conn.Database)
		}
		t.AppendRow(table.Row{id, conn.Type, target, executor.IsRegistered(conn.Type)})
	}

	t.Render()
	return nil
}
