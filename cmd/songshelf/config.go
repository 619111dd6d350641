package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/songshelf/internal/api"
	"github.com/jackzampolin/songshelf/internal/config"
	"github.com/jackzampolin/songshelf/internal/home"
	"github.com/jackzampolin/songshelf/internal/server/endpoints"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the songshelf config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file to the home directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		path := h.ConfigPath()
		if h.ConfigExists() && !configForce {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("Wrote default config to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		cfgMgr, err := config.NewManager(cfgFile, h.Path())
		if err != nil {
			return err
		}
		return api.Output(endpoints.SettingsResponse{
			File:     cfgMgr.File(),
			Settings: cfgMgr.Get().Entries(),
		})
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
