package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gocarina/gocsv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vampfi/bonus-engine/internal/config"
	"github.com/vampfi/bonus-engine/internal/logger"
	"github.com/vampfi/bonus-engine/internal/metrics"
	"github.com/vampfi/bonus-engine/internal/tracer"
	"github.com/vampfi/bonus-engine/pkg/bonusEngine"
	"github.com/vampfi/bonus-engine/pkg/bonusTypes"
	"github.com/vampfi/bonus-engine/pkg/clients/alchemy"
	"github.com/vampfi/bonus-engine/pkg/clients/coinmarketcap"
	"github.com/vampfi/bonus-engine/pkg/clients/helius"
	"github.com/vampfi/bonus-engine/pkg/depositTracer"
	"github.com/vampfi/bonus-engine/pkg/depositValuator"
	"github.com/vampfi/bonus-engine/pkg/priceOracle"
	"github.com/vampfi/bonus-engine/pkg/progressBus"
	"github.com/vampfi/bonus-engine/pkg/progressBus/progressBusTypes"
	"github.com/vampfi/bonus-engine/pkg/requestPool"
	"github.com/vampfi/bonus-engine/pkg/storage"
	"github.com/vampfi/bonus-engine/pkg/storage/memory"
	"github.com/vampfi/bonus-engine/pkg/storage/postgres"
	"github.com/vampfi/bonus-engine/pkg/traceQueue"
	"github.com/vampfi/bonus-engine/pkg/transferSource"
	"go.uber.org/zap"
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Trace a wallet's deposits into casino treasuries and compute its score",
	RunE: func(cmd *cobra.Command, args []string) error {
		initTraceCmd(cmd)
		cfg := config.NewConfig()

		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		if err != nil {
			return err
		}
		defer l.Sync() //nolint:errcheck

		wallet := viper.GetString("wallet")
		if wallet == "" {
			return fmt.Errorf("--wallet is required")
		}
		chain, err := config.ParseChain(viper.GetString("chain"))
		if err != nil {
			return err
		}

		tracer.StartTracer(cfg.DatadogApmEnabled, chain)

		metricsClient, err := metrics.InitMetricsSinksFromConfig(cfg, l)
		if err != nil {
			return err
		}
		defer metricsClient.Flush()
		if cfg.PrometheusConfig.Enabled {
			go servePrometheus(cfg.PrometheusConfig.Port, l)
		}

		pool := requestPool.NewPool(cfg.TraceConfig.RequestPoolSize)

		adapters := make([]transferSource.ChainAdapter, 0)
		if cfg.AlchemyConfig.RpcUrl != "" {
			adapters = append(adapters, transferSource.NewEvmAdapter(alchemy.NewClient(cfg.AlchemyConfig.RpcUrl, l), pool, l))
		}
		if cfg.HeliusConfig.RpcUrl != "" {
			adapters = append(adapters, transferSource.NewSolanaAdapter(helius.NewClient(cfg.HeliusConfig.RpcUrl, cfg.HeliusConfig.ApiKey, l), pool, l))
		}

		oracle := priceOracle.NewOracle(
			coinmarketcap.NewClient(cfg.CoinMarketCapConfig.BaseUrl, cfg.CoinMarketCapConfig.ApiKey, l),
			pool,
			cfg.TraceConfig.PriceRetryAttempts,
			cfg.TraceConfig.PriceRetryDelay,
			metricsClient,
			l,
		)
		valuator := depositValuator.NewDepositValuator(oracle, l)

		engine := bonusEngine.NewBonusEngine(adapters, valuator, &depositTracer.TracerConfig{
			CandidateBatchSize: cfg.TraceConfig.CandidateBatchSize,
			BatchDelay:         cfg.TraceConfig.BatchDelay,
			MaxPages:           cfg.TraceConfig.MaxPages,
		}, metricsClient, l)

		store, err := buildResultStore(cfg, l)
		if err != nil {
			return err
		}

		bus := progressBus.NewBus(l)
		if !viper.GetBool("no_progress") {
			consumer := &progressBusTypes.Consumer{
				Id:      "cli-progress-bar",
				Channel: make(chan *progressBusTypes.ProgressEvent, 64),
			}
			bus.Subscribe(consumer)
			defer bus.Unsubscribe(consumer)
			go renderProgress(consumer)
		}

		queue := traceQueue.NewTraceQueue(engine, store, cfg.TraceConfig.RescanCooldown, bus.Sink(), l)
		go queue.Process()
		defer queue.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		response, err := queue.EnqueueAndWait(ctx, traceQueue.TraceRequestData{
			Wallet:   wallet,
			Chain:    chain,
			CasinoId: viper.GetString("casino"),
			Force:    viper.GetBool("force"),
		})
		if err != nil {
			return err
		}
		if response.Error != nil {
			return response.Error
		}

		if response.FromCache {
			l.Sugar().Infow("Served stored result within rescan cooldown",
				zap.String("wallet", wallet),
			)
		}

		encoded, err := json.MarshalIndent(response.Result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))

		if csvOut := viper.GetString("csv_out"); csvOut != "" {
			if err := writeCsv(csvOut, response.Result); err != nil {
				return err
			}
			l.Sugar().Infow("Wrote per-casino scores",
				zap.String("path", csvOut),
			)
		}
		return nil
	},
}

func initTraceCmd(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(f.Name); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}

func buildResultStore(cfg *config.Config, l *zap.Logger) (storage.BonusResultStore, error) {
	if cfg.DatabaseConfig.Host == "" {
		return memory.NewInMemoryBonusResultStore(), nil
	}
	db, err := postgres.NewGormConnection(&cfg.DatabaseConfig)
	if err != nil {
		return nil, err
	}
	return postgres.NewPostgresBonusResultStore(db, l)
}

func servePrometheus(port int, l *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
		l.Sugar().Errorw("prometheus server stopped", zap.Error(err))
	}
}

func renderProgress(consumer *progressBusTypes.Consumer) {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription(progressBusTypes.Status_ScanningWallets),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
	for event := range consumer.Channel {
		if event.Message != "" {
			bar.Describe(event.Message)
		}
		_ = bar.Set(int(event.Percent))
	}
}

// casinoScoreRow is the flat CSV form of one casino's score.
type casinoScoreRow struct {
	Wallet     string `csv:"wallet"`
	Chain      string `csv:"chain"`
	CasinoId   string `csv:"casino_id"`
	TotalUsd   string `csv:"total_deposited_usd"`
	Score      int64  `csv:"score"`
	TotalScore int64  `csv:"total_score"`
}

func writeCsv(path string, result *bonusTypes.BonusResult) error {
	rows := make([]*casinoScoreRow, 0, result.PerCasino.Len())
	for pair := result.PerCasino.Oldest(); pair != nil; pair = pair.Next() {
		rows = append(rows, &casinoScoreRow{
			Wallet:     result.Wallet,
			Chain:      result.Chain,
			CasinoId:   pair.Key,
			TotalUsd:   pair.Value.TotalDepositedUsd.String(),
			Score:      pair.Value.Score,
			TotalScore: result.TotalScore,
		})
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gocsv.MarshalFile(&rows, f)
}
