package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nxreporting/stockex/internal/common"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List cascade providers and their configuration state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		cfg, err := common.LoadConfig()
		if err != nil {
			return err
		}
		ctx := context.Background()
		for i, p := range buildProviders(cfg, logger) {
			state := "not configured"
			if p.IsConfigured(ctx) {
				state = "configured"
			}
			fmt.Printf("%d. %-14s %s\n", i+1, p.Name(), state)
		}
		return nil
	},
}
