package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/askql/askql/internal/formatter"
)

func AskCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Ask a natural language question against the cataloged databases",
		ArgsUsage: " <question>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "format",
				Usage: "output format: table or json",
				Value: "table",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() == 0 {
				return fmt.Errorf("expected a question, e.g.: askql ask \"how many singers are there\"")
			}

			question := strings.Join(cmd.Args().Slice(), " ")

			return runAsk(ctx, question, formatter.OutputFormat(cmd.String("format")))
		},
	}
}

func runAsk(ctx context.Context, question string, format formatter.OutputFormat) error {
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.retriever.BuildIndex(ctx); err != nil {
		return err
	}

	resp := a.pipeline.Ask(ctx, question)

	fmt.Println(formatter.NewFormatter().FormatResponse(resp, format))

	return nil
}
