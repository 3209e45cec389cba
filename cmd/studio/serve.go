package main

import (
	"github.com/ds124wfegd/imagestudio/internal/appServer"
	"github.com/spf13/cobra"
)

func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP editing API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			appServer.SetupLogging(cfg.Log)
			return appServer.Run(cmd.Context(), cfg)
		},
	}
}
