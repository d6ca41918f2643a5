package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "eduscout/0.1"). Per prd002-provider-clients R5.2.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// GenAIConfig holds shared settings for stages that call a generative AI API.
// Per prd001-query-generation R3.1, prd006-scoring R3.2.
type GenAIConfig struct {
	// Model is the model identifier sent to the primary backend.
	Model string `json:"model" yaml:"model"`

	// APIKey authenticates the primary backend.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// FallbackBaseURL points the secondary backend at an OpenAI-compatible
	// endpoint (e.g. a DeepSeek or local Ollama deployment).
	FallbackBaseURL string `json:"fallback_base_url,omitempty" yaml:"fallback_base_url,omitempty"`

	// FallbackModel is the model identifier for the secondary backend.
	FallbackModel string `json:"fallback_model,omitempty" yaml:"fallback_model,omitempty"`

	// FallbackAPIKey authenticates the secondary backend.
	FallbackAPIKey string `json:"fallback_api_key,omitempty" yaml:"fallback_api_key,omitempty"`

	// Temperature for all calls. Query generation and scoring want
	// low-temperature, reproducible output (default 0.1).
	Temperature float32 `json:"temperature" yaml:"temperature"`

	// CallTimeout bounds a single backend call (default 20s).
	CallTimeout time.Duration `json:"call_timeout" yaml:"call_timeout"`
}

// QueryConfig holds settings for the query generation stage.
// Per prd001-query-generation R2.1-R2.4.
type QueryConfig struct {
	// MaxQueries caps the number of localized queries per request (default 3).
	MaxQueries int `json:"max_queries" yaml:"max_queries"`

	// LocalizationKeywords maps a language code to the deterministic
	// fallback keyword appended to templated queries (e.g. "id" →
	// "kursus lengkap"). Used when the generative path fails.
	LocalizationKeywords map[string]string `json:"localization_keywords" yaml:"localization_keywords"`
}

// ProviderConfig holds settings for the provider clients stage.
// Per prd002-provider-clients R3.1-R3.4, R5.1-R5.3.
type ProviderConfig struct {
	HTTPConfig `yaml:",inline"`

	// EnableYouTube controls the YouTube Data API client.
	EnableYouTube bool `json:"enable_youtube" yaml:"enable_youtube"`

	// EnableBrave controls the Brave Search API client.
	EnableBrave bool `json:"enable_brave" yaml:"enable_brave"`

	// EnableDuckDuckGo controls the keyless DuckDuckGo client.
	EnableDuckDuckGo bool `json:"enable_duckduckgo" yaml:"enable_duckduckgo"`

	// YouTubeAPIKey authenticates the YouTube Data API.
	YouTubeAPIKey string `json:"youtube_api_key,omitempty" yaml:"youtube_api_key,omitempty"`

	// BraveAPIKey authenticates the Brave Search API.
	BraveAPIKey string `json:"brave_api_key,omitempty" yaml:"brave_api_key,omitempty"`

	// YouTubeDailyQuota is the daily unit budget (default 10000; a search
	// costs 100 units).
	YouTubeDailyQuota int `json:"youtube_daily_quota" yaml:"youtube_daily_quota"`

	// BraveMonthlyQuota is the monthly request budget (default 2000).
	BraveMonthlyQuota int `json:"brave_monthly_quota" yaml:"brave_monthly_quota"`

	// RequestsPerSecond paces each client (default 1).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
}

// CacheConfig holds settings for the result cache stage.
// Per prd003-result-cache R1.2, R2.1-R2.3.
type CacheConfig struct {
	// TTL is the entry lifetime (default 1h). Expired entries are misses.
	TTL time.Duration `json:"ttl" yaml:"ttl"`

	// MaxEntries bounds the in-memory store; least-recently-used entries
	// are evicted beyond it (default 1024).
	MaxEntries int `json:"max_entries" yaml:"max_entries"`

	// RedisAddr, when set, selects the Redis-backed store instead of the
	// in-memory one.
	RedisAddr string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`

	// RedisDB selects the Redis logical database.
	RedisDB int `json:"redis_db" yaml:"redis_db"`
}

// OrchestratorConfig holds settings for the search orchestration stage.
// Per prd004-search-orchestration R2.1-R2.4.
type OrchestratorConfig struct {
	// MaxResultsPerProvider caps each provider call (default 10).
	MaxResultsPerProvider int `json:"max_results_per_provider" yaml:"max_results_per_provider"`

	// WorkerPoolSize bounds concurrent provider fan-out tasks (default 4).
	WorkerPoolSize int `json:"worker_pool_size" yaml:"worker_pool_size"`

	// TaskTimeout bounds one provider fan-out task (default 30s).
	TaskTimeout time.Duration `json:"task_timeout" yaml:"task_timeout"`
}

// KnowledgeConfig holds settings for the market knowledge stage.
// Per prd005-market-knowledge R1.3.
type KnowledgeConfig struct {
	// Dir is the base directory for the knowledge database and exports.
	Dir string `json:"dir" yaml:"dir"`

	// InitialConfidence is assigned to novel local-language variants
	// (default 0.3).
	InitialConfidence float64 `json:"initial_confidence" yaml:"initial_confidence"`

	// ValidatedConfidence is the threshold above which a variant counts
	// as validated for reconciliation (default 0.6).
	ValidatedConfidence float64 `json:"validated_confidence" yaml:"validated_confidence"`
}

// ScoringConfig holds settings for the scoring stage.
// Per prd006-scoring R1.1-R1.5, R3.1.
type ScoringConfig struct {
	// TrustedDomains lists domains whose results earn the trust bonus
	// and may terminate at the rule stage.
	TrustedDomains []string `json:"trusted_domains" yaml:"trusted_domains"`

	// LLMConcurrency bounds concurrent generative scoring calls (default 5).
	LLMConcurrency int `json:"llm_concurrency" yaml:"llm_concurrency"`

	// RuleTerminalScore is the rule-stage score at or above which the
	// generative stage is skipped (default 8.0).
	RuleTerminalScore float64 `json:"rule_terminal_score" yaml:"rule_terminal_score"`

	// SelectionFloor is the minimum score for a result to be marked
	// selected (default 6.0).
	SelectionFloor float64 `json:"selection_floor" yaml:"selection_floor"`
}

// QualityConfig holds the weighted-blend coefficients and anomaly
// thresholds for quality evaluation. All of these are business policy,
// never hardcoded (prd007-quality R3.1).
type QualityConfig struct {
	// AvgWeight, RatioWeight and MedianWeight blend the average score,
	// high-quality ratio and median score into the overall score. They
	// should sum to 1.
	AvgWeight    float64 `json:"avg_weight" yaml:"avg_weight"`
	RatioWeight  float64 `json:"ratio_weight" yaml:"ratio_weight"`
	MedianWeight float64 `json:"median_weight" yaml:"median_weight"`

	// HighQualityFloor is the per-result score from which a result counts
	// as high quality (default 7.0).
	HighQualityFloor float64 `json:"high_quality_floor" yaml:"high_quality_floor"`

	// AvgScoreFloor triggers the low-average anomaly (default 5.0).
	AvgScoreFloor float64 `json:"avg_score_floor" yaml:"avg_score_floor"`

	// MinResults triggers the few-results anomaly (default 3).
	MinResults int `json:"min_results" yaml:"min_results"`

	// QualityRatioFloor triggers the low-quality-ratio anomaly (default 0.3).
	QualityRatioFloor float64 `json:"quality_ratio_floor" yaml:"quality_ratio_floor"`

	// VarianceCeiling triggers the high-variance anomaly (default 8.0).
	VarianceCeiling float64 `json:"variance_ceiling" yaml:"variance_ceiling"`
}

// OptimizationConfig holds settings for the optimization stage.
// Per prd008-optimization R3.1-R3.3.
type OptimizationConfig struct {
	// Enabled turns the optimization loop on.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// AutoApproveRisk is the highest risk level that auto-approves.
	AutoApproveRisk RiskLevel `json:"auto_approve_risk" yaml:"auto_approve_risk"`

	// AutoApproveImprovement is the minimum expected improvement for
	// auto-approval (default 5.0).
	AutoApproveImprovement float64 `json:"auto_approve_improvement" yaml:"auto_approve_improvement"`

	// MaxPlans caps generated plans per anomaly (default 4).
	MaxPlans int `json:"max_plans" yaml:"max_plans"`
}

// PipelineConfig groups all stage configurations plus the global limits.
type PipelineConfig struct {
	Query        QueryConfig        `json:"query" yaml:"query"`
	GenAI        GenAIConfig        `json:"genai" yaml:"genai"`
	Providers    ProviderConfig     `json:"providers" yaml:"providers"`
	Cache        CacheConfig        `json:"cache" yaml:"cache"`
	Orchestrator OrchestratorConfig `json:"orchestrator" yaml:"orchestrator"`
	Knowledge    KnowledgeConfig    `json:"knowledge" yaml:"knowledge"`
	Scoring      ScoringConfig      `json:"scoring" yaml:"scoring"`
	Quality      QualityConfig      `json:"quality" yaml:"quality"`
	Optimization OptimizationConfig `json:"optimization" yaml:"optimization"`

	// MaxConcurrentRequests bounds end-to-end requests system-wide via the
	// admission gate (default 8). Per prd009-pipeline R3.1.
	MaxConcurrentRequests int `json:"max_concurrent_requests" yaml:"max_concurrent_requests"`

	// AdmissionWait is how long a request waits for a permit before
	// failing fast with a busy signal (default 2s).
	AdmissionWait time.Duration `json:"admission_wait" yaml:"admission_wait"`

	// RequestTimeout wraps one whole request including optimization
	// (default 2m).
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`
}
