package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

// Execute runs the askql CLI.
func Execute() error {
	root := &cli.Command{
		Name:  "askql",
		Usage: "Answer natural language questions with safe, read-only SQL",
		Description: `askql catalogs a directory of SQLite databases, routes each question to
the most relevant database by semantic similarity, synthesizes a single
SELECT statement with a language model, validates it against a strict
read-only policy, and executes it in a sandboxed connection.`,
		Commands: commandList(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return root.Run(ctx, os.Args)
}

func commandList() []*cli.Command {
	return []*cli.Command{
		ServeCommand(),
		AskCommand(),
		ReindexCommand(),
		DatabasesCommand(),
		ValidateCommand(),
	}
}
