// Package config holds the runtime configuration for the bonus engine:
// supported chains, partner casinos and their treasury addresses, external
// provider endpoints, and the pacing knobs for tracing and valuation.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const ENV_PREFIX = "BONUS_ENGINE"

// Chain identifies a supported blockchain.
type Chain string

const (
	Chain_Ethereum Chain = "ethereum"
	Chain_Solana   Chain = "solana"
)

// ParseChain validates a chain name from configuration or CLI input.
func ParseChain(name string) (Chain, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ethereum", "eth":
		return Chain_Ethereum, nil
	case "solana", "sol":
		return Chain_Solana, nil
	default:
		return "", fmt.Errorf("unsupported chain '%s'", name)
	}
}

// Flag names shared between the CLI layer and viper bindings.
const (
	Debug = "debug"

	AlchemyRpcUrl = "alchemy.rpc-url"
	AlchemyApiKey = "alchemy.api-key"

	HeliusRpcUrl = "helius.rpc-url"
	HeliusApiKey = "helius.api-key"

	CoinMarketCapBaseUrl = "coinmarketcap.base-url"
	CoinMarketCapApiKey  = "coinmarketcap.api-key"

	TraceRequestPoolSize     = "trace.request-pool-size"
	TraceCandidateBatchSize  = "trace.candidate-batch-size"
	TraceBatchDelayMs        = "trace.batch-delay-ms"
	TraceMaxPages            = "trace.max-pages"
	TracePriceRetryAttempts  = "trace.price-retry-attempts"
	TracePriceRetryDelayMs   = "trace.price-retry-delay-ms"
	TraceRescanCooldownHours = "trace.rescan-cooldown-hours"

	DatabaseHost       = "database.host"
	DatabasePort       = "database.port"
	DatabaseUser       = "database.user"
	DatabasePassword   = "database.password"
	DatabaseDbName     = "database.db_name"
	DatabaseSchemaName = "database.schema_name"

	PrometheusEnabled = "prometheus.enabled"
	PrometheusPort    = "prometheus.port"
	StatsdEnabled     = "datadog.statsd.enabled"
	StatsdUrl         = "datadog.statsd.url"
	StatsdSampleRate  = "datadog.statsd.sample-rate"
	DatadogApmEnabled = "datadog.apm.enabled"
)

// AlchemyConfig configures the EVM asset-transfer provider.
type AlchemyConfig struct {
	RpcUrl string
	ApiKey string
}

// HeliusConfig configures the Solana transfer and asset-metadata provider.
type HeliusConfig struct {
	RpcUrl string
	ApiKey string
}

// CoinMarketCapConfig configures the historical price provider.
type CoinMarketCapConfig struct {
	BaseUrl string
	ApiKey  string
}

// TraceConfig contains the pacing and sizing knobs for a trace. The defaults
// mirror the provider rate limits the engine is tuned for.
type TraceConfig struct {
	// RequestPoolSize bounds concurrently in-flight provider requests
	RequestPoolSize int
	// CandidateBatchSize is how many candidate wallets are checked per batch
	CandidateBatchSize int
	// BatchDelay is the pause inserted between candidate batches
	BatchDelay time.Duration
	// MaxPages caps pagination per transfer fetch; 0 means unbounded
	MaxPages int
	// PriceRetryAttempts is the retry budget for a single price lookup
	PriceRetryAttempts int
	// PriceRetryDelay is the fixed delay between price lookup attempts
	PriceRetryDelay time.Duration
	// RescanCooldown is the minimum interval between full rescans of a wallet
	RescanCooldown time.Duration
}

type DatabaseConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	DbName     string
	SchemaName string
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

type StatsdConfig struct {
	Enabled    bool
	Url        string
	SampleRate float64
}

type Config struct {
	Debug bool

	AlchemyConfig       AlchemyConfig
	HeliusConfig        HeliusConfig
	CoinMarketCapConfig CoinMarketCapConfig
	TraceConfig         TraceConfig
	DatabaseConfig      DatabaseConfig
	PrometheusConfig    PrometheusConfig
	StatsdConfig        StatsdConfig
	DatadogApmEnabled   bool
}

// CasinoConfig describes a partner casino and its treasury addresses.
// Each casino has at most one treasury per chain.
type CasinoConfig struct {
	Id         string
	Name       string
	Treasuries map[Chain]string
}

// Partner casino treasuries. These are deployment constants, not runtime state.
var Casinos = []*CasinoConfig{
	{
		Id:   "midnight",
		Name: "Midnight Casino",
		Treasuries: map[Chain]string{
			Chain_Ethereum: "0x8a6f1f7cbe6aed3e5bdb22c02aad5ded5da46f21",
			Chain_Solana:   "CasMNzqatDYoevVYN1V27nCJdKxSJyNuQFbUProWuPBH",
		},
	},
	{
		Id:   "redfang",
		Name: "RedFang",
		Treasuries: map[Chain]string{
			Chain_Ethereum: "0x43b17f9fd9eac0a5b17ab1db2c78b34b2eea42fc",
		},
	},
	{
		Id:   "luckybat",
		Name: "LuckyBat",
		Treasuries: map[Chain]string{
			Chain_Ethereum: "0xf24a01ae29dec4629dfb4170647c4ed4efc392cd",
			Chain_Solana:   "LkyBXnxLoxVyBzfBpGGkz2KdMFr4ca8QCXMCX9PcKKT",
		},
	},
}

// GetCasino returns the casino configuration for the given id, or nil when
// no such casino is configured.
func GetCasino(casinoId string) *CasinoConfig {
	for _, c := range Casinos {
		if c.Id == casinoId {
			return c
		}
	}
	return nil
}

// GetTreasuryForCasinoAndChain resolves the treasury address for a casino on
// a chain. The second return value is false when the casino is unknown or has
// no treasury on that chain.
func GetTreasuryForCasinoAndChain(casinoId string, chain Chain) (string, bool) {
	c := GetCasino(casinoId)
	if c == nil {
		return "", false
	}
	treasury, ok := c.Treasuries[chain]
	return treasury, ok
}

// ListCasinosForChain returns every configured casino with a treasury on the
// given chain.
func ListCasinosForChain(chain Chain) []*CasinoConfig {
	casinos := make([]*CasinoConfig, 0)
	for _, c := range Casinos {
		if _, ok := c.Treasuries[chain]; ok {
			casinos = append(casinos, c)
		}
	}
	return casinos
}

var kebab = regexp.MustCompile(`[-.]`)

// KebabToSnakeCase normalizes a flag name into the key format viper and
// environment variable bindings use.
func KebabToSnakeCase(s string) string {
	return kebab.ReplaceAllString(s, "_")
}

// NewConfig assembles a Config from viper, which the CLI layer has already
// bound to flags and environment variables.
func NewConfig() *Config {
	return &Config{
		Debug: viper.GetBool(KebabToSnakeCase(Debug)),

		AlchemyConfig: AlchemyConfig{
			RpcUrl: viper.GetString(KebabToSnakeCase(AlchemyRpcUrl)),
			ApiKey: viper.GetString(KebabToSnakeCase(AlchemyApiKey)),
		},
		HeliusConfig: HeliusConfig{
			RpcUrl: viper.GetString(KebabToSnakeCase(HeliusRpcUrl)),
			ApiKey: viper.GetString(KebabToSnakeCase(HeliusApiKey)),
		},
		CoinMarketCapConfig: CoinMarketCapConfig{
			BaseUrl: viper.GetString(KebabToSnakeCase(CoinMarketCapBaseUrl)),
			ApiKey:  viper.GetString(KebabToSnakeCase(CoinMarketCapApiKey)),
		},
		TraceConfig: TraceConfig{
			RequestPoolSize:    viper.GetInt(KebabToSnakeCase(TraceRequestPoolSize)),
			CandidateBatchSize: viper.GetInt(KebabToSnakeCase(TraceCandidateBatchSize)),
			BatchDelay:         time.Duration(viper.GetInt(KebabToSnakeCase(TraceBatchDelayMs))) * time.Millisecond,
			MaxPages:           viper.GetInt(KebabToSnakeCase(TraceMaxPages)),
			PriceRetryAttempts: viper.GetInt(KebabToSnakeCase(TracePriceRetryAttempts)),
			PriceRetryDelay:    time.Duration(viper.GetInt(KebabToSnakeCase(TracePriceRetryDelayMs))) * time.Millisecond,
			RescanCooldown:     time.Duration(viper.GetInt(KebabToSnakeCase(TraceRescanCooldownHours))) * time.Hour,
		},
		DatabaseConfig: DatabaseConfig{
			Host:       viper.GetString(KebabToSnakeCase(DatabaseHost)),
			Port:       viper.GetInt(KebabToSnakeCase(DatabasePort)),
			User:       viper.GetString(KebabToSnakeCase(DatabaseUser)),
			Password:   viper.GetString(KebabToSnakeCase(DatabasePassword)),
			DbName:     viper.GetString(KebabToSnakeCase(DatabaseDbName)),
			SchemaName: viper.GetString(KebabToSnakeCase(DatabaseSchemaName)),
		},
		PrometheusConfig: PrometheusConfig{
			Enabled: viper.GetBool(KebabToSnakeCase(PrometheusEnabled)),
			Port:    viper.GetInt(KebabToSnakeCase(PrometheusPort)),
		},
		StatsdConfig: StatsdConfig{
			Enabled:    viper.GetBool(KebabToSnakeCase(StatsdEnabled)),
			Url:        viper.GetString(KebabToSnakeCase(StatsdUrl)),
			SampleRate: viper.GetFloat64(KebabToSnakeCase(StatsdSampleRate)),
		},
		DatadogApmEnabled: viper.GetBool(KebabToSnakeCase(DatadogApmEnabled)),
	}
}
