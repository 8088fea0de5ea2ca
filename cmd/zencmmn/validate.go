package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pbinitiative/zencmmn/pkg/cmmn/model/cmmn10"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Parse CMMN files without deploying them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var errs []error
			for _, file := range args {
				data, err := os.ReadFile(file)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				definitions, err := cmmn10.Unmarshal(data)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", file, err)
					errs = append(errs, fmt.Errorf("%s is not valid", file))
					continue
				}
				for _, c := range definitions.Cases {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: case %s is valid\n", file, c.Id)
				}
			}
			return errors.Join(errs...)
		},
	}
}
