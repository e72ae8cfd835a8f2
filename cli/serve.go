package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/pkleine/melodex/config"
	"github.com/pkleine/melodex/server"
	"github.com/pkleine/melodex/subcmd"
)

func serveCmd(ctx context.Context, logger *log.Logger, conf *config.Config, args []string) error {
	subcmd := subcmd.New("serve", "run the web server")
	addr := subcmd.String("addr", conf.Server.Addr, "listen address")
	if err := subcmd.Parse(args); err != nil {
		return fmt.Errorf("flag parsing err: %w", err)
	}

	store, idx, err := openStores(conf)
	if err != nil {
		return err
	}
	defer store.Close()
	defer idx.Close()

	crawler := newCrawler(logger, conf, store, idx)
	return server.New(logger, store, idx, crawler).Run(ctx, *addr)
}
