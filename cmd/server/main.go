package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/openyield/yieldbridge/internal/api"
	"github.com/openyield/yieldbridge/internal/auth"
	"github.com/openyield/yieldbridge/internal/bridge"
	"github.com/openyield/yieldbridge/internal/config"
	eventskafka "github.com/openyield/yieldbridge/internal/events/kafka"
	"github.com/openyield/yieldbridge/internal/governor"
	"github.com/openyield/yieldbridge/internal/interfaces"
	"github.com/openyield/yieldbridge/internal/ledger"
	"github.com/openyield/yieldbridge/internal/metrics"
	"github.com/openyield/yieldbridge/internal/storage/memory"
	"github.com/openyield/yieldbridge/internal/storage/postgres"
	transportkafka "github.com/openyield/yieldbridge/internal/transport/kafka"
)

type stores struct {
	accounts interfaces.AccountStore
	config   interfaces.ConfigStore
	replay   interfaces.ReplayStore
}

func main() {
	configPath := flag.String("config", "config.yml", "path to the instance config file")
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if err := run(*configPath, log); err != nil {
		log.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}

func run(configPath string, log zerolog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil && cfg.Log.Level != "" {
		log = log.Level(level)
	}
	log = log.With().Str("instance", cfg.Instance).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, cleanup, err := openStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer cleanup()

	caps := auth.NewCapabilitySet()
	for _, grant := range cfg.Grants {
		for _, c := range grant.Capabilities {
			caps.Grant(grant.Caller, auth.Capability(c))
		}
	}

	collector := metrics.NewCollector()

	ledgerOpts := []ledger.Option{ledger.WithMetrics(collector)}
	if cfg.Kafka.EventsTopic != "" && len(cfg.Kafka.Brokers) > 0 {
		publisher := eventskafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
		defer publisher.Close()
		ledgerOpts = append(ledgerOpts, ledger.WithEventPublisher(publisher))
	}
	ledgerService := ledger.NewLedger(st.accounts, caps, log, ledgerOpts...)

	gov := governor.New(st.config, caps, log, collector)
	initialCeiling, err := cfg.ParsedCeilingRate()
	if err != nil {
		return fmt.Errorf("parse ceiling rate: %w", err)
	}
	if err := gov.Init(ctx, initialCeiling); err != nil {
		return fmt.Errorf("initialize ceiling rate: %w", err)
	}

	var br *bridge.Bridge
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.OutboundTopic != "" {
		sender := transportkafka.NewSender(cfg.Kafka.Brokers, cfg.Kafka.OutboundTopic)
		defer sender.Close()
		br = bridge.New(ledgerService, st.replay, sender, log, cfg.Instance, cfg.Bridge.Caller, cfg.Bridge.Peers).
			WithMetrics(collector)

		if cfg.Kafka.InboundTopic != "" {
			consumer := transportkafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.InboundTopic, cfg.Kafka.GroupID, log)
			defer consumer.Close()
			go func() {
				// A transient inbound failure stops the process with
				// its offset uncommitted; kafka redelivers on restart.
				if err := consumer.Run(ctx, br.Inbound); err != nil {
					log.Error().Err(err).Msg("bridge consumer stopped")
					stop()
				}
			}()
		}
	}

	server := api.NewServer(ledgerService, gov, br, collector, log, cfg.Custody.Caller)
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Routes(),
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("stopped")
	return nil
}

func openStores(ctx context.Context, cfg *config.Config) (stores, func(), error) {
	switch cfg.Storage.Driver {
	case "postgres":
		db, err := sql.Open("postgres", cfg.Storage.DSN)
		if err != nil {
			return stores{}, nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return stores{}, nil, err
		}
		st := postgres.NewStore(db)
		if err := st.EnsureSchema(ctx); err != nil {
			db.Close()
			return stores{}, nil, err
		}
		return stores{accounts: st, config: st, replay: st}, func() { db.Close() }, nil
	default:
		st := memory.NewStore()
		return stores{accounts: st, config: st, replay: st}, func() {}, nil
	}
}
