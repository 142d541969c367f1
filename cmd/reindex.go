package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/urfave/cli/v3"
)

func ReindexCommand() *cli.Command {
	return &cli.Command{
		Name:  "reindex",
		Usage: "Re-introspect the physical databases and rebuild the schema index",
		Action: func(ctx context.Context, _ *cli.Command) error {
			return runReindex(ctx)
		},
	}
}

func runReindex(ctx context.Context) error {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " introspecting databases..."
	s.Start()

	a, err := newApp(ctx, true)
	if err != nil {
		s.Stop()
		return err
	}
	defer a.close()

	s.Suffix = " embedding schemas..."

	err = a.retriever.BuildIndex(ctx)
	s.Stop()

	if err != nil {
		return err
	}

	fmt.Printf("Indexed %d database(s) from %s\n",
		a.retriever.IndexedCount(), a.cfg.Catalog.Root)
	fmt.Printf("Schema cache written to %s\n", a.cfg.Catalog.CacheFile)

	return nil
}
