// Command ledgernode runs the full node process: chain store, UTXO set,
// mempool, gossip peer layer, candidate assembly, and the ingress HTTP
// API, wired together behind the single critical section spec §5
// requires.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gochain/ledgernode/pkg/candidate"
	"github.com/gochain/ledgernode/pkg/chainstore"
	"github.com/gochain/ledgernode/pkg/config"
	"github.com/gochain/ledgernode/pkg/gossip"
	"github.com/gochain/ledgernode/pkg/logger"
	"github.com/gochain/ledgernode/pkg/mempool"
	"github.com/gochain/ledgernode/pkg/nodecore"
	"github.com/gochain/ledgernode/pkg/nodeerr"
	"github.com/gochain/ledgernode/pkg/txindex"

	"github.com/gochain/ledgernode/pkg/api"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "ledgernode",
		Short: "ledgernode - a minimal UTXO full node",
		Long: `ledgernode runs a single full-node process: block and UTXO
store, mempool admission, difficulty-adjusted proof-of-work validation,
candidate block assembly for an external miner, and a flood-gossip peer
network.`,
		RunE: runNode,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "process config file (env vars override)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runNode(cmd *cobra.Command, args []string) error {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("reading process config: %w", nodeerr.Fatal)
			}
		}
	}
	pc := config.LoadProcess(v)

	log := setupLogger(v)
	log.Info("starting ledgernode: http=%d peer=%d data=%s", pc.HTTPPort, pc.PeerPort, pc.DataDir)

	chainCfgPath := filepath.Join(pc.DataDir, "config.json")
	chainCfg, err := config.Load(chainCfgPath)
	if err != nil {
		return fmt.Errorf("loading chain config: %w", err)
	}
	if err := config.Save(chainCfgPath, chainCfg); err != nil {
		return fmt.Errorf("persisting chain config: %w", err)
	}

	blockDir := filepath.Join(pc.DataDir, "blocks")
	store, err := chainstore.Open(blockDir)
	if err != nil {
		log.Fatal("chain store corrupted, refusing to start: %v", err)
		return err
	}
	log.Info("chain store opened at height %d", store.Height())

	txIndexDir := filepath.Join(pc.DataDir, "txindex")
	txidx, err := txindex.Open(txIndexDir)
	if err != nil {
		return fmt.Errorf("opening tx index: %w", err)
	}
	defer txidx.Close()
	if err := txindex.Rebuild(txidx, store.Blocks()); err != nil {
		return fmt.Errorf("rebuilding tx index: %w", err)
	}

	mp := mempool.New(store.UTXO(), chainCfg)
	builder := candidate.New(store, mp, store.UTXO(), chainCfg)
	core := nodecore.New(store, mp, builder, txidx, chainCfg, chainCfgPath, log)

	gossipNode := gossip.New(core.GossipHandlers(), log)
	core.SetBroadcaster(gossipNode)
	for _, peerURL := range pc.PeerURLs {
		gossipNode.Dial(peerURL)
	}
	defer gossipNode.Close()

	apiServer := api.New(core, log, gossipNode.HandleUpgrade)
	httpSrv := &http.Server{Addr: fmt.Sprintf(":%d", pc.HTTPPort), Handler: apiServer}
	go func() {
		log.Info("ingress API listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("ingress API stopped unexpectedly: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down ledgernode...")
	if err := httpSrv.Close(); err != nil {
		log.Warn("error closing ingress API: %v", err)
	}
	log.Info("ledgernode stopped")
	return nil
}

func setupLogger(v *viper.Viper) *logger.Logger {
	logLevel := logger.INFO
	switch strings.ToLower(v.GetString("logging.level")) {
	case "debug":
		logLevel = logger.DEBUG
	case "warn":
		logLevel = logger.WARN
	case "error":
		logLevel = logger.ERROR
	}

	cfg := logger.DefaultConfig()
	cfg.Level = logLevel
	cfg.Prefix = "ledgernode"
	cfg.UseJSON = strings.ToLower(v.GetString("logging.format")) == "json"
	if logFile := v.GetString("logging.log_file"); logFile != "" {
		cfg.LogFile = logFile
	}
	return logger.NewLogger(cfg)
}
