// Cellnode full node daemon.
//
// Usage:
//
//	cellnoded [--network=testnet --datadir=...]   Run node
//	cellnoded --help                               Show help
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/klingon-tech/cellnode/config"
	"github.com/klingon-tech/cellnode/internal/chain"
	"github.com/klingon-tech/cellnode/internal/freezer"
	"github.com/klingon-tech/cellnode/internal/logging"
	"github.com/klingon-tech/cellnode/internal/storage"
	"github.com/klingon-tech/cellnode/internal/store"
	"github.com/klingon-tech/cellnode/internal/txpool"
)

func main() {
	// ── 1. Parse flags, load config ──────────────────────────────────
	network := flag.String("network", "testnet", "Network type (mainnet or testnet)")
	dataDir := flag.String("datadir", "", "Data directory path (default: platform-specific)")
	logLevel := flag.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	logJSON := flag.Bool("log-json", false, "Emit logs as JSON instead of console format")
	memDB := flag.Bool("memdb", false, "Use an in-memory store instead of Badger (testing only)")
	flag.Parse()

	net := config.Testnet
	if *network == "mainnet" {
		net = config.Mainnet
	}

	cfg := config.Default(net)
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	cfg.Log.Level = *logLevel
	cfg.Log.JSON = *logJSON

	// ── 2. Init logger ────────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" {
		if err := os.MkdirAll(cfg.LogsDir(), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating logs dir: %v\n", err)
			os.Exit(1)
		}
		logFile = cfg.LogsDir() + "/cellnode.log"
	}
	if err := logging.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	logger := logging.WithComponent("node")

	// ── 3. Genesis (hardcoded, not loaded from file) ─────────────────
	genesis := config.GenesisFor(cfg.Network)
	params, err := genesis.Params()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to derive consensus params from genesis")
	}

	logger.Info().
		Str("chain_id", genesis.ChainID).
		Str("network", string(cfg.Network)).
		Uint8("pow_engine", uint8(params.PowEngine)).
		Msg("Starting Cellnode")

	// ── 4. Open storage ───────────────────────────────────────────────
	var db storage.DB
	if *memDB {
		db = storage.NewMemory()
	} else {
		if err := os.MkdirAll(cfg.StoreDir(), 0755); err != nil {
			logger.Fatal().Err(err).Str("path", cfg.StoreDir()).Msg("Failed to create store dir")
		}
		badgerDB, err := storage.NewBadger(cfg.StoreDir())
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.StoreDir()).Msg("Failed to open database")
		}
		defer badgerDB.Close()
		db = badgerDB
	}
	cdb := store.New(db)
	logger.Info().Str("path", cfg.StoreDir()).Msg("Database opened")

	// ── 5. Open the cold-archive tier ─────────────────────────────────
	if err := os.MkdirAll(cfg.FreezerDir(), 0755); err != nil {
		logger.Fatal().Err(err).Str("path", cfg.FreezerDir()).Msg("Failed to create freezer dir")
	}
	archive, err := freezer.Open(cfg.FreezerDir(), freezer.DefaultMaxFileSize)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.FreezerDir()).Msg("Failed to open freezer")
	}
	defer archive.Close()
	cdb.SetArchive(archive)

	// ── 6. Create chain (auto-recovers tip from DB) ───────────────────
	tipHash, _, err := cdb.GetTip()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to read tip")
	}
	fresh := tipHash.IsZero()

	nowFn := func() uint64 { return uint64(time.Now().Unix()) }
	ch, err := chain.New(cdb, params, nowFn)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create chain")
	}

	if fresh {
		genesisBlock, err := genesis.Block()
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to build genesis block")
		}
		genesisEpoch := genesis.Epoch(params)
		if err := ch.InitGenesis(genesisBlock, genesisEpoch); err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize from genesis")
		}
		logger.Info().Msg("Chain initialized from genesis")
	} else {
		tip := ch.Tip()
		logger.Info().
			Uint64("height", ch.Height()).
			Stringer("tip", tip.Hash()).
			Msg("Chain resumed from database")
	}

	// ── 7. Create transaction pool ────────────────────────────────────
	validator := &poolValidator{chain: ch}
	pool := txpool.New(txpool.DefaultConfig(), validator, 10_000)
	ch.Subscribe(&poolNotifier{pool: pool, params: params})

	logger.Info().Msg("Transaction pool ready")

	// ── 8. Periodic freeze sweep ──────────────────────────────────────
	stopFreeze := make(chan struct{})
	go runFreezeLoop(ch, archive, cfg.Freezer.KeepHotBlocks, 5*time.Minute, stopFreeze, logger)

	// ── 9. Startup banner ──────────────────────────────────────────────
	startupTip := ch.Tip()
	logger.Info().
		Uint64("height", ch.Height()).
		Stringer("tip", startupTip.Hash()).
		Msg("Node started successfully")

	// ── 10. Wait for shutdown ──────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

	close(stopFreeze)
	logger.Info().Msg("Goodbye!")
}

// runFreezeLoop periodically moves canonical blocks older than
// keepHotBlocks into archive, until stop is closed. Runs in its own
// goroutine since freezing is a maintenance sweep independent of block
// processing (spec.md §4.9).
func runFreezeLoop(ch *chain.Service, archive store.Archiver, keepHotBlocks uint64, interval time.Duration, stop <-chan struct{}, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := ch.FreezeAncientBlocks(archive, keepHotBlocks); err != nil {
				logger.Warn().Err(err).Msg("Freeze sweep failed")
			}
		}
	}
}
