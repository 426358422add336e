// permabftd is the node binary: it loads an Environment, opens the
// persistent store, wires the transaction pool, scheduler and consensus
// state machine into a node.Node, and runs it until interrupted.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/permabft/chain/config"
	"github.com/permabft/chain/core/scheduler"
	"github.com/permabft/chain/core/txpool"
	"github.com/permabft/chain/core/types"
	"github.com/permabft/chain/cryptoutil"
	"github.com/permabft/chain/network"
	"github.com/permabft/chain/node"
	"github.com/permabft/chain/storage"
)

func main() {
	app := &cli.App{
		Name:    "permabftd",
		Usage:   "run a permabft validator node",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to a YAML config file"},
			&cli.StringFlag{Name: "signing-key-file", Usage: "path to a file containing a 32-byte hex-encoded signing key", Required: true},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	flags := pflag.NewFlagSet("permabftd", pflag.ContinueOnError)
	config.BindFlags(flags)
	if err := flags.Parse(nil); err != nil {
		return err
	}
	if err := flags.Set("config", ctx.String("config")); err != nil {
		return err
	}

	env, err := config.Load(flags)
	if err != nil {
		return fmt.Errorf("permabftd: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("permabftd: build logger: %w", err)
	}
	defer logger.Sync()

	key, err := loadSigningKey(ctx.String("signing-key-file"))
	if err != nil {
		return fmt.Errorf("permabftd: %w", err)
	}

	store, err := storage.Open(env.DataDir)
	if err != nil {
		return fmt.Errorf("permabftd: open store: %w", err)
	}
	defer store.Close()

	pool := txpool.New(func(addr types.Address) uint64 {
		acc, err := store.Account(addr)
		if err != nil {
			return 0
		}
		return acc.Nonce
	})

	sched := scheduler.New(0, 0)
	hub := network.NewHub()
	transport := hub.NewPeer()

	n, err := node.New(env, key, store, pool, sched, transport, logger)
	if err != nil {
		return fmt.Errorf("permabftd: %w", err)
	}

	go serveMetrics(env.MetricsAddr, logger)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("shutdown signal received")
		cancel()
	}()

	logger.Info("starting node", zap.Uint64("chain_id", env.ChainID), zap.String("listen_addr", env.ListenAddr))
	return n.Run(runCtx)
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics server stopped", zap.Error(err))
	}
}

func loadSigningKey(path string) (*cryptoutil.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signing key file: %w", err)
	}
	s := strings.TrimSpace(string(raw))
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode signing key: %w", err)
	}
	return cryptoutil.PrivateKeyFromBytes(b)
}
