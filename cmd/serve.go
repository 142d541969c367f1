package cmd

import (
	"context"
	"errors"
	"net/http"

	"github.com/urfave/cli/v3"

	"github.com/askql/askql/internal/server"
)

func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address (overrides the configured one)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServe(ctx, cmd.String("addr"))
		},
	}
}

func runServe(ctx context.Context, addr string) error {
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.retriever.BuildIndex(ctx); err != nil {
		return err
	}

	if addr == "" {
		addr = a.cfg.Server.Addr
	}

	srv := server.New(a.pipeline, a.retriever, a.catalog, a.logger)

	if err := srv.Run(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
