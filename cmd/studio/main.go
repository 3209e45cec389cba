package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ds124wfegd/imagestudio/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		logrus.WithError(err).Error("studio command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "studio",
		Short:         "Image editing server and batch editor",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config.yaml (default "+config.DefaultPath+")")

	root.AddCommand(newServeCmd(&cfgPath))
	root.AddCommand(newApplyCmd(&cfgPath))
	root.AddCommand(newPresetsCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func loadConfig(path string) (*config.Config, error) {
	v, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return config.ParseConfig(v)
}
