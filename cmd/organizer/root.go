package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/pokerjest/animeFolderOrganizer/internal/app"
	"github.com/pokerjest/animeFolderOrganizer/internal/config"
	"github.com/pokerjest/animeFolderOrganizer/internal/db"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configDir string
	logLevel  string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "organizer",
		Short:         "Search the sub_share title corpus and organize anime folders",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVarP(&opts.configDir, "config", "c", ".", "directory containing config.yaml")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level")

	cmd.AddCommand(
		newSearchCommand(opts),
		newBestCommand(opts),
		newDiagCommand(opts),
		newUpdateDBCommand(opts),
		newScanCommand(opts),
	)
	return cmd
}

// loadApp 读取配置、打开数据库并构造服务。返回的 cleanup 必须调用。
func loadApp(opts *rootOptions) (*app.App, func(), error) {
	_ = godotenv.Load()
	if err := config.LoadConfig(opts.configDir); err != nil {
		return nil, nil, err
	}
	cfg := config.AppConfig
	level := cfg.Log.Level
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	config.SetupLogger(level)

	conn, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	closeDB := func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	a, err := app.New(cfg, afero.NewOsFs(), conn, nil)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	return a, func() {
		a.Close()
		closeDB()
	}, nil
}
