package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vampfi/bonus-engine/internal/config"
	"github.com/vampfi/bonus-engine/pkg/clients/coinmarketcap"
	"github.com/vampfi/bonus-engine/pkg/depositTracer"
	"github.com/vampfi/bonus-engine/pkg/priceOracle"
	"github.com/vampfi/bonus-engine/pkg/requestPool"
)

var rootCmd = &cobra.Command{
	Use:   "bonus-engine",
	Short: "Traces casino deposits through intermediary wallets and computes loyalty scores",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initConfig(rootCmd)

	rootCmd.PersistentFlags().Bool(config.Debug, false, `"true" or "false"`)

	rootCmd.PersistentFlags().String(config.AlchemyRpcUrl, "", `e.g. "https://eth-mainnet.g.alchemy.com/v2/<api-key>"`)
	rootCmd.PersistentFlags().String(config.AlchemyApiKey, "", `Alchemy API key`)
	rootCmd.PersistentFlags().String(config.HeliusRpcUrl, "", `e.g. "https://api.helius.xyz"`)
	rootCmd.PersistentFlags().String(config.HeliusApiKey, "", `Helius API key`)
	rootCmd.PersistentFlags().String(config.CoinMarketCapBaseUrl, coinmarketcap.DefaultBaseUrl, `Historical quotes API base url`)
	rootCmd.PersistentFlags().String(config.CoinMarketCapApiKey, "", `CoinMarketCap API key`)

	rootCmd.PersistentFlags().Int(config.TraceRequestPoolSize, requestPool.DefaultPoolSize, `Max concurrently in-flight provider requests`)
	rootCmd.PersistentFlags().Int(config.TraceCandidateBatchSize, depositTracer.DefaultCandidateBatchSize, `Candidate wallets checked per batch`)
	rootCmd.PersistentFlags().Int(config.TraceBatchDelayMs, 1100, `Delay between candidate batches in milliseconds`)
	rootCmd.PersistentFlags().Int(config.TraceMaxPages, 0, `Max pages per transfer fetch, 0 for unbounded`)
	rootCmd.PersistentFlags().Int(config.TracePriceRetryAttempts, priceOracle.DefaultRetryAttempts, `Retry budget for a single price lookup`)
	rootCmd.PersistentFlags().Int(config.TracePriceRetryDelayMs, 1000, `Delay between price lookup attempts in milliseconds`)
	rootCmd.PersistentFlags().Int(config.TraceRescanCooldownHours, 24, `Minimum hours between full rescans of a wallet`)

	rootCmd.PersistentFlags().String(config.DatabaseHost, "", `PostgreSQL host; empty runs with in-memory result storage`)
	rootCmd.PersistentFlags().Int(config.DatabasePort, 5432, `PostgreSQL port`)
	rootCmd.PersistentFlags().String(config.DatabaseUser, "bonus_engine", `PostgreSQL username`)
	rootCmd.PersistentFlags().String(config.DatabasePassword, "", `PostgreSQL password`)
	rootCmd.PersistentFlags().String(config.DatabaseDbName, "bonus_engine", `PostgreSQL database name`)
	rootCmd.PersistentFlags().String(config.DatabaseSchemaName, "", `PostgreSQL schema name (default "public")`)

	rootCmd.PersistentFlags().Bool(config.PrometheusEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().Int(config.PrometheusPort, 2112, `The port to run the prometheus server on`)
	rootCmd.PersistentFlags().Bool(config.StatsdEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String(config.StatsdUrl, "", `e.g. "localhost:8125"`)
	rootCmd.PersistentFlags().Float64(config.StatsdSampleRate, 1, `Statsd sample rate between 0 and 1`)
	rootCmd.PersistentFlags().Bool(config.DatadogApmEnabled, false, `e.g. "true" or "false"`)

	// setup sub commands
	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(versionCmd)

	traceCmd.PersistentFlags().StringP("wallet", "w", "", `The wallet address to trace (required)`)
	traceCmd.PersistentFlags().StringP("chain", "c", "ethereum", `The chain to trace on (ethereum, solana)`)
	traceCmd.PersistentFlags().String("casino", "", `Restrict the trace to one casino id; empty traces all casinos on the chain`)
	traceCmd.PersistentFlags().Bool("force", false, `Retrace even within the rescan cooldown`)
	traceCmd.PersistentFlags().String("csv-out", "", `Write per-casino scores to this CSV file`)
	traceCmd.PersistentFlags().Bool("no-progress", false, `Disable the progress bar`)

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	viper.SetEnvPrefix(config.ENV_PREFIX)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.AutomaticEnv()
}
