package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/askql/askql/internal/validate"
)

func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check a SQL query against the read-only safety rules",
		ArgsUsage: " <query>",
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() == 0 {
				return fmt.Errorf("expected a SQL query to validate")
			}

			query := strings.Join(cmd.Args().Slice(), " ")

			if err := validate.Validate(query); err != nil {
				return fmt.Errorf("rejected: %w", err)
			}

			fmt.Println("ok")

			return nil
		},
	}
}
