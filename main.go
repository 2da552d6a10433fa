// Copyright 2025 Archon 72 Project
//
// Accountability engine daemon
//
// Wires the constitutional accountability engine: witnessed event writer,
// breach/escalation/cessation services, dissent metrics, dual-channel
// cessation flag, and the HTTP API (status queries plus breach, decision,
// content-verification and execution endpoints). Runs periodic escalation
// sweeps and cessation threshold checks.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/archon72/accountability-engine/pkg/breach"
	"github.com/archon72/accountability-engine/pkg/cessation"
	"github.com/archon72/accountability-engine/pkg/config"
	"github.com/archon72/accountability-engine/pkg/content"
	"github.com/archon72/accountability-engine/pkg/database"
	"github.com/archon72/accountability-engine/pkg/dissent"
	"github.com/archon72/accountability-engine/pkg/escalation"
	"github.com/archon72/accountability-engine/pkg/halt"
	"github.com/archon72/accountability-engine/pkg/kvdb"
	"github.com/archon72/accountability-engine/pkg/ledger"
	"github.com/archon72/accountability-engine/pkg/memstore"
	"github.com/archon72/accountability-engine/pkg/server"
	"github.com/archon72/accountability-engine/pkg/store"
	"github.com/archon72/accountability-engine/pkg/witness"
	"github.com/archon72/accountability-engine/pkg/writer"
)

// stores bundles the repository set the services run on, either Postgres or
// in-memory.
type stores struct {
	breaches      store.BreachRepository
	escalations   store.EscalationRepository
	cessations    store.CessationRepository
	dissent       store.DissentRepository
	contentHashes store.ContentHashRepository
	durableFlag   store.CessationFlagChannel

	// events is non-nil when a durable event store is available; the KV
	// event log is the fallback.
	events writer.EventStore
}

func main() {
	logger := log.New(os.Stdout, "[Daemon] ", log.LstdFlags)

	governancePath := flag.String("governance-config", "", "path to governance YAML config")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	if *governancePath != "" {
		gov, err := config.LoadGovernanceConfig(*governancePath)
		if err != nil {
			logger.Fatalf("Failed to load governance config: %v", err)
		}
		cfg.Governance = gov.Governance
		logger.Printf("Loaded governance config from %s (environment=%s)", *governancePath, gov.Environment)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// KV storage: event log and the fast cessation-flag channel.
	kvDB, err := dbm.NewDB("accountability", dbm.GoLevelDBBackend, cfg.DataDir)
	if err != nil {
		logger.Fatalf("Failed to open KV database: %v", err)
	}
	defer kvDB.Close()
	kv := kvdb.NewKVAdapter(kvDB)
	eventLog := ledger.NewEventLog(kv)

	// Durable storage: Postgres when configured, in-memory otherwise.
	st, dbClient, err := buildStores(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}
	if dbClient != nil {
		defer dbClient.Close()
	}

	// Witness: load the operator key, or generate an ephemeral one when no
	// key path is configured (whichever store is in use).
	wit, err := buildWitness(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize witness: %v", err)
	}

	// Cessation flag and halt gate.
	flags := cessation.NewFlagStore(cessation.NewKVFlagChannel(kv), st.durableFlag)
	gate := halt.NewGate(flags)

	// Event writer. Appends go to Postgres when configured, to the KV log
	// otherwise; the fast flag channel stays on KV either way.
	var eventStore writer.EventStore = eventLog
	if st.events != nil {
		eventStore = st.events
	}
	eventWriter, err := writer.New(eventStore, wit, gate)
	if err != nil {
		logger.Fatalf("Failed to initialize event writer: %v", err)
	}

	// Services, running on the configured governance thresholds.
	gov := cfg.Governance
	registry := prometheus.NewRegistry()
	breachSvc := breach.NewService(st.breaches, eventWriter, gate)
	escalationSvc := escalation.NewService(st.breaches, st.escalations, eventWriter, gate,
		escalation.WithThresholdDays(gov.EscalationThresholdDays))
	considerationSvc := cessation.NewConsiderationService(st.breaches, st.cessations, eventWriter, gate,
		cessation.WithThresholds(gov.CessationThreshold, gov.WarningThreshold, gov.CessationWindowDays))
	executionSvc := cessation.NewExecutionService(eventWriter, flags, gate)
	dissentSvc := dissent.NewService(st.dissent, gate, dissent.WithRegistry(registry),
		dissent.WithThreshold(gov.DissentThresholdPercent, gov.DissentPeriodDays))
	verifier := content.NewVerifier(st.contentHashes)
	publishSvc := content.NewPublishService(verifier, gate)

	// Periodic governance sweeps (FR31, FR32). A halted system stops
	// sweeping; halt is not a retry condition.
	go runSweeps(ctx, cfg, logger, escalationSvc, considerationSvc)

	// Status API.
	handlers := server.NewGovernanceHandlers(
		escalationSvc, considerationSvc, flags, dissentSvc, eventWriter, gate)
	breachHandlers := server.NewBreachHandlers(breachSvc, escalationSvc, publishSvc)
	cessationHandlers := server.NewCessationHandlers(considerationSvc, executionSvc)
	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux)
	breachHandlers.RegisterRoutes(mux)
	cessationHandlers.RegisterRoutes(mux)

	apiServer := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		logger.Printf("Status API listening on %s", cfg.ListenAddr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Status API failed: %v", err)
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		logger.Printf("Metrics listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("Metrics server failed: %v", err)
		}
	}()

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Printf("Received %v, shutting down", sig)

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
	logger.Println("Shutdown complete")
}

// memStores builds the in-memory repository set.
func memStores() *stores {
	escalations := memstore.NewEscalationStore()
	return &stores{
		breaches:      memstore.NewBreachStore(escalations),
		escalations:   escalations,
		cessations:    memstore.NewCessationStore(),
		dissent:       memstore.NewDissentStore(),
		contentHashes: memstore.NewContentHashStore(),
		durableFlag:   memstore.NewFlagChannel(),
	}
}

// buildStores opens Postgres when configured and falls back to in-memory
// stores otherwise. The in-memory mode exists for development and tests; a
// production deployment sets ARCHON72_DB_REQUIRED.
func buildStores(cfg *config.Config, logger *log.Logger) (*stores, *database.Client, error) {
	if cfg.DatabaseURL == "" {
		logger.Println("No database configured, using in-memory stores (development mode)")
		return memStores(), nil, nil
	}

	client, err := database.NewClient(cfg)
	if err != nil {
		if cfg.DatabaseRequired {
			return nil, nil, fmt.Errorf("database required but unavailable: %w", err)
		}
		logger.Printf("Database unavailable (%v), using in-memory stores", err)
		return memStores(), nil, nil
	}

	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := client.Migrate(migrateCtx); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	repos := database.NewRepositories(client)
	return &stores{
		breaches:      repos.Breaches,
		escalations:   repos.Escalations,
		cessations:    repos.Cessations,
		dissent:       repos.Dissent,
		contentHashes: repos.ContentHashes,
		durableFlag:   repos.CessationFlag,
		events:        repos.Events,
	}, client, nil
}

func buildWitness(cfg *config.Config) (witness.Witness, error) {
	if cfg.WitnessKeyPath != "" {
		return witness.LoadEd25519Witness(cfg.WitnessID, cfg.WitnessKeyPath)
	}
	// Ephemeral key: attestations from this run cannot be re-verified after
	// restart. Acceptable only alongside in-memory stores.
	return witness.NewEd25519Witness(cfg.WitnessID, nil)
}

// runSweeps drives the timed state machines: the 7-day escalation sweep and
// the 90-day cessation threshold check.
func runSweeps(
	ctx context.Context,
	cfg *config.Config,
	logger *log.Logger,
	escalationSvc *escalation.Service,
	considerationSvc *cessation.ConsiderationService,
) {
	escalationTicker := time.NewTicker(cfg.EscalationSweepInterval)
	cessationTicker := time.NewTicker(cfg.CessationCheckInterval)
	defer escalationTicker.Stop()
	defer cessationTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-escalationTicker.C:
			escalated, err := escalationSvc.CheckAndEscalateBreaches(ctx)
			if err != nil {
				if errors.Is(err, halt.ErrSystemHalted) {
					logger.Printf("Escalation sweep stopped: %v", err)
					return
				}
				logger.Printf("Escalation sweep failed: %v", err)
				continue
			}
			if len(escalated) > 0 {
				logger.Printf("Escalation sweep: %d breach(es) escalated to Conclave agenda", len(escalated))
			}
		case <-cessationTicker.C:
			consideration, err := considerationSvc.CheckAndTriggerCessation(ctx)
			if err != nil {
				if errors.Is(err, halt.ErrSystemHalted) {
					logger.Printf("Cessation check stopped: %v", err)
					return
				}
				logger.Printf("Cessation check failed: %v", err)
				continue
			}
			if consideration != nil {
				logger.Printf("CRITICAL: cessation consideration placed on agenda: %s", consideration.ConsiderationID)
			}
		}
	}
}
