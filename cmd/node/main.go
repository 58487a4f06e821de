// Command node wires the admission pipeline together: Sequence, Pool,
// Queue and BlockVerifier sharing one ledger and crypto collaborator.
// Flat main() wiring, a panic handler, an HTTP status endpoint.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ddk-chain/ddk-node/internal/blockverifier"
	"github.com/ddk-chain/ddk-node/internal/bus"
	"github.com/ddk-chain/ddk-node/internal/config"
	"github.com/ddk-chain/ddk-node/internal/crypto"
	"github.com/ddk-chain/ddk-node/internal/ledger"
	"github.com/ddk-chain/ddk-node/internal/ledgerstore"
	"github.com/ddk-chain/ddk-node/internal/logging"
	"github.com/ddk-chain/ddk-node/internal/pool"
	"github.com/ddk-chain/ddk-node/internal/queue"
	"github.com/ddk-chain/ddk-node/internal/sequence"
)

var (
	cfgPath  = flag.String("config", "", "path to a TOML config file")
	logLevel = flag.String("log-level", "info", "logrus level")

	txQueue *queue.Queue
	txPool  *pool.Pool
	verif   *blockverifier.Verifier
)

func main() {
	defer handlePanic()
	flag.Parse()

	logging.Setup(logging.Options{Level: *logLevel})

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.WithError(err).Fatal("could not load config")
	}

	store, err := ledgerstore.Open(cfg.Ledger.StorePath)
	if err != nil {
		log.WithError(err).Fatal("could not open ledger store")
	}
	defer store.Close()

	ldgr := ledger.New(store)
	txLogic := crypto.NewLogic(ldgr)
	blockLogic := crypto.NewBlockLogic(txLogic)
	b := bus.New()
	sessions := bus.NewAccountSessions()

	seq := sequence.New(
		sequence.WithWarningLimit(cfg.Mempool.WarningLimit),
		sequence.WithMinInterval(time.Duration(cfg.Mempool.SequencePaceMS)*time.Millisecond),
		sequence.WithWarningObserver(func(depth, limit int) {
			log.WithField("depth", depth).WithField("limit", limit).Warn("sequence overloaded")
		}),
	)

	txPool = pool.New(seq, txLogic, b)
	txPool.SetMaxSharedTxs(cfg.Mempool.MaxSharedTxs)

	txQueue = queue.New(txPool, ldgr, txLogic, sessions, time.Duration(cfg.Mempool.ConflictExpireS)*time.Second)
	txQueue.StartSweeper(time.Minute)

	bvCfg := blockverifier.Config{
		MaxTxsPerBlock:          cfg.BlockVerifier.MaxTxsPerBlock,
		MaxPayloadLength:        cfg.BlockVerifier.MaxPayloadLength,
		BlockSlotWindow:         cfg.BlockVerifier.BlockSlotWindow,
		EpochTimeUnix:           cfg.BlockVerifier.EpochTimeUnix,
		SlotDurationSeconds:     cfg.BlockVerifier.SlotDurationSeconds,
		MasterNodeMigratedBlock: cfg.BlockVerifier.MasterNodeMigratedBlock,
		MaxHeightWithReward:     21_000_000,
	}
	verif = blockverifier.New(bvCfg, blockLogic, txLogic, nil, nil, nil, txPool)

	log.Info("admission pipeline ready")

	http.HandleFunc("/status", statusHTTP)
	if err := http.ListenAndServe("127.0.0.1:9191", nil); err != nil {
		log.WithError(err).Fatal("status server exited")
	}
}

func statusHTTP(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "queue_depth %d\n", txQueue.Len())
	fmt.Fprintf(w, "conflicted_depth %d\n", txQueue.ConflictedLen())
	fmt.Fprintf(w, "pool_size %d\n", txPool.GetSize())
}

func handlePanic() {
	if r := recover(); r != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("%+v", r), "node panic")
	}
}
