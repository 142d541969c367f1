package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/askql/askql/internal/formatter"
)

func DatabasesCommand() *cli.Command {
	return &cli.Command{
		Name:      "databases",
		Usage:     "List cataloged databases, or show one database's schema",
		ArgsUsage: " [name]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() > 1 {
				return fmt.Errorf("expected at most 1 argument, got %d", cmd.Args().Len())
			}

			return runDatabases(ctx, cmd.Args().First())
		},
	}
}

func runDatabases(ctx context.Context, name string) error {
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	f := formatter.NewFormatter()

	if name == "" {
		fmt.Println(f.FormatCatalog(a.catalog))
		return nil
	}

	dbSchema := a.catalog.Get(name)
	if dbSchema == nil {
		return fmt.Errorf("unknown database: %s", name)
	}

	fmt.Println(f.FormatSchema(dbSchema))

	return nil
}
