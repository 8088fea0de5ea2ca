package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pbinitiative/zencmmn/internal/log"
	"github.com/pbinitiative/zencmmn/internal/profile"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Error("%s", err)
		log.Sync()
		os.Exit(1)
	}
	log.Sync()
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zencmmn",
		Short: "ZenCmmn case management engine",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			profile.InitProfile()
			log.Init()
		},
		SilenceUsage: true,
	}
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newConfigCommand())
	return cmd
}
