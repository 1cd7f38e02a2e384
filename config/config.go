package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the merged configuration for both the orchestrator and the
// worker binary. Each process only reads the sections it needs; sharing one
// file keeps local dev and docker-compose setups simple, the way the
// teacher repo shares one config.yaml between cmd/server and cmd/worker.
type Config struct {
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Worker       WorkerConfig       `mapstructure:"worker"`
	AI           AIConfig           `mapstructure:"ai"`
	Acceptance   AcceptanceConfig   `mapstructure:"acceptance"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Chain        ChainConfig        `mapstructure:"chain"`
	CORS         CORSConfig         `mapstructure:"cors"`
}

// OrchestratorConfig governs the orchestrator's HTTP server and its calls
// out to the worker.
type OrchestratorConfig struct {
	Host                   string `mapstructure:"host"`
	Port                   int    `mapstructure:"port"`
	Mode                   string `mapstructure:"mode"`
	WorkerBaseURL          string `mapstructure:"worker_base_url"`
	WorkerPollIntervalMs   int    `mapstructure:"worker_poll_interval_ms"`
	WorkerTimeoutMs        int    `mapstructure:"worker_timeout_ms"`
	AnalysisJobDedupeTTLMs int    `mapstructure:"analysis_job_dedupe_ttl_ms"`
}

// WorkerConfig governs the worker's HTTP server and persistence.
type WorkerConfig struct {
	Port        int    `mapstructure:"worker_port"`
	DatabaseURL string `mapstructure:"database_url"`
	PGSSLMode   string `mapstructure:"pgsslmode"`
	ArtifactDir string `mapstructure:"artifact_dir"`
}

// ProviderConfig is one AI provider entry, mirroring the teacher's
// ModelConfig{Name, APIProvider, APIKey} shape in qs3c's config.go but
// generalized to a provider with an ordered list of model names, per
// spec.md §4.3's provider-fallback contract.
type ProviderConfig struct {
	Name    string   `mapstructure:"name"`
	BaseURL string   `mapstructure:"base_url"`
	APIKey  string   `mapstructure:"api_key"`
	Models  []string `mapstructure:"models"`
}

// AIConfig governs the optimizer loop and provider fallback plan.
type AIConfig struct {
	Providers         []ProviderConfig `mapstructure:"providers"`
	MaxOptimizerCycles int              `mapstructure:"max_optimizer_cycles"`
	ProviderRetries    int              `mapstructure:"provider_retries"`
	RetryBaseDelayMs   int              `mapstructure:"retry_base_delay_ms"`
}

// AcceptanceConfig governs AcceptanceValidator thresholds.
type AcceptanceConfig struct {
	MaxAttempts                int     `mapstructure:"max_attempts"`
	MaxAllowedRegressionPct    float64 `mapstructure:"max_allowed_regression_pct"`
	MaxDeploymentRegressionPct float64 `mapstructure:"max_deployment_regression_pct"`
}

// RedisConfig backs the orchestrator's CodeFingerprint dedupe cache.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// ChainConfig governs the ProofBuilder's on-chain submission collaborator.
type ChainConfig struct {
	RPCURL              string `mapstructure:"chain_rpc_url"`
	BackendSignerKey    string `mapstructure:"backend_signer_private_key"`
	RegistryAddress     string `mapstructure:"gas_optimization_registry_address"`
	ChainID             int64  `mapstructure:"chain_id"`
}

// CORSConfig is unchanged in shape from the teacher's.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// Load reads configPath (or, when one is present, a sibling config.local.yaml
// in its place, exactly like the teacher's config.Load), then lets environment
// variables named per spec.md §6.4 override any field.
func Load(configPath string) (*Config, error) {
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")
	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindSpecEnvVars()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("orchestrator.worker_poll_interval_ms", 1000)
	viper.SetDefault("orchestrator.worker_timeout_ms", 180000)
	viper.SetDefault("orchestrator.analysis_job_dedupe_ttl_ms", 600000)
	viper.SetDefault("ai.max_optimizer_cycles", 2)
	viper.SetDefault("ai.provider_retries", 2)
	viper.SetDefault("ai.retry_base_delay_ms", 600)
	viper.SetDefault("acceptance.max_attempts", 3)
	viper.SetDefault("acceptance.max_allowed_regression_pct", 10.0)
	viper.SetDefault("acceptance.max_deployment_regression_pct", 20.0)
}

// bindSpecEnvVars maps the flat, non-nested environment variable names
// spec.md §6.4 names literally onto the nested config keys above — viper's
// AutomaticEnv alone would look for ORCHESTRATOR_WORKER_POLL_INTERVAL_MS,
// not WORKER_POLL_INTERVAL_MS.
func bindSpecEnvVars() {
	_ = viper.BindEnv("orchestrator.worker_poll_interval_ms", "WORKER_POLL_INTERVAL_MS")
	_ = viper.BindEnv("orchestrator.worker_timeout_ms", "WORKER_TIMEOUT_MS")
	_ = viper.BindEnv("orchestrator.analysis_job_dedupe_ttl_ms", "ANALYSIS_JOB_DEDUPE_TTL_MS")
	_ = viper.BindEnv("ai.max_optimizer_cycles", "AI_MAX_OPTIMIZER_CYCLES")
	_ = viper.BindEnv("ai.provider_retries", "AI_PROVIDER_RETRIES")
	_ = viper.BindEnv("ai.retry_base_delay_ms", "AI_RETRY_BASE_DELAY_MS")
	_ = viper.BindEnv("acceptance.max_attempts", "AI_ACCEPTANCE_MAX_ATTEMPTS")
	_ = viper.BindEnv("acceptance.max_allowed_regression_pct", "AI_MAX_ALLOWED_REGRESSION_PCT")
	_ = viper.BindEnv("acceptance.max_deployment_regression_pct", "AI_MAX_DEPLOYMENT_REGRESSION_PCT")
	_ = viper.BindEnv("worker.worker_port", "WORKER_PORT")
	_ = viper.BindEnv("worker.database_url", "DATABASE_URL")
	_ = viper.BindEnv("worker.pgsslmode", "PGSSLMODE")
	_ = viper.BindEnv("chain.chain_rpc_url", "CHAIN_RPC_URL")
	_ = viper.BindEnv("chain.backend_signer_private_key", "BACKEND_SIGNER_PRIVATE_KEY")
	_ = viper.BindEnv("chain.gas_optimization_registry_address", "GAS_OPTIMIZATION_REGISTRY_ADDRESS")
}
