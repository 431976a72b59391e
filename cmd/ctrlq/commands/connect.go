// Package commands holds the ctrlq CLI's subcommands, each a thin cobra
// wrapper over the config/transport/qrs/ingest/resolve/importer/export
// packages (teacher's cmd/qntx/commands layout).
package commands

import (
	"context"

	"github.com/ctrl-q/ctrlq/config"
	"github.com/ctrl-q/ctrlq/errors"
	"github.com/ctrl-q/ctrlq/ingest"
	"github.com/ctrl-q/ctrlq/logger"
	"github.com/ctrl-q/ctrlq/qrs"
	"github.com/ctrl-q/ctrlq/taskgraph"
	"github.com/ctrl-q/ctrlq/transport"
)

// ConfigFile is bound to the root command's --config flag by main(); every
// subcommand reads it when loading configuration.
var ConfigFile *string

func configFilePath() string {
	if ConfigFile == nil {
		return ""
	}
	return config.EnvFile(*ConfigFile)
}

// connection is what every QSEoW-talking subcommand needs: a loaded
// config, a transport-level client, and a thin Repository client over it.
type connection struct {
	cfg *config.Config
	tc  *transport.Client
	qr  *qrs.Client
}

func connect() (*connection, error) {
	cfg, err := config.Load(configFilePath())
	if err != nil {
		return nil, errors.Wrap(err, "loading configuration")
	}

	tcfg, err := cfg.TransportConfig()
	if err != nil {
		return nil, errors.Wrap(err, "validating connection configuration")
	}

	tc, err := transport.NewClient(tcfg, logger.ComponentLogger("transport"))
	if err != nil {
		return nil, errors.Wrap(err, "building transport client")
	}

	qr := qrs.New(tc, logger.ComponentLogger("qrs"))
	return &connection{cfg: cfg, tc: tc, qr: qr}, nil
}

// loadGraph is the common first step of task-get and task-custom-property-set:
// pull the live graph from the Repository.
func loadGraph(ctx context.Context, qr *qrs.Client) (*taskgraph.Graph, error) {
	g, err := ingest.LoadGraph(ctx, qr)
	if err != nil {
		return nil, errors.Wrap(err, "loading task graph from Repository")
	}
	return g, nil
}
