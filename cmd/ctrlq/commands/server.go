package commands

import (
	"net/http"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ctrl-q/ctrlq/errors"
	"github.com/ctrl-q/ctrlq/logger"
	ctrlqserver "github.com/ctrl-q/ctrlq/server"
)

var serverAddr string

// ServerCmd starts the read-only JSON visualization server (spec.md §1's
// "external collaborator"). It renders no UI (Non-goal).
var ServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve the task graph as read-only JSON over HTTP",
	Long: `Load the task graph from the Repository once, then serve it as
read-only JSON over HTTP: /api/tasks, /api/edges, /api/tree,
/api/cycles, /api/duplicate-edges. No UI is rendered.`,
	RunE: runServer,
}

func init() {
	ServerCmd.Flags().StringVar(&serverAddr, "addr", ":8080", "address to listen on")
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	conn, err := connect()
	if err != nil {
		return err
	}

	graph, err := loadGraph(ctx, conn.qr)
	if err != nil {
		return err
	}

	srv := ctrlqserver.New(graph, logger.ComponentLogger("server"))

	log := logger.ComponentLogger("server")
	log.Infow("listening", "addr", serverAddr)
	pterm.Info.Printf("serving task graph on %s\n", serverAddr)

	if err := http.ListenAndServe(serverAddr, srv); err != nil { //nolint:gosec // operator-controlled addr, no timeouts needed for a local dev viz server
		pterm.Error.Printf("server stopped: %v\n", err)
		return errors.Wrap(err, "serving")
	}
	return nil
}
