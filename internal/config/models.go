package config

import "time"

// LLMConfig represents the provider selection
type LLMConfig struct {
	Provider           string
	PlannerTemperature float32
}

// OpenAIConfig represents the configuration for OpenAI-compatible endpoints
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// PipelineConfig holds the knobs of the analysis pipeline
type PipelineConfig struct {
	MaxBodySize        int
	PlannerMaxAttempts int
	MaxActionSteps     int
	NoReplyMarkers     []string
}

// MemoryConfig selects and configures the sender memory backend
type MemoryConfig struct {
	Type          string
	FilePath      string
	SQLitePath    string
	MySQLDSN      string
	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
	Timeout       time.Duration
}

// ServerConfig configures the SMTP daemon
type ServerConfig struct {
	FilterType        string
	ListenAddress     string
	Domain            string
	MetricsAddress    string
	AnalysisTimeout   time.Duration
	PriorityHeader    string
	UrgencyHeader     string
	RiskHeader        string
	SenderCountHeader string
	RelayEnabled      bool
	RelayAddress      string
	RelayPort         int
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider:           c.GetString("llm.provider"),
		PlannerTemperature: float32(c.GetFloat64("llm.planner_temperature")),
	}
}

// GetOpenAI returns the configuration of an OpenAI-compatible provider.
// section is "openai" or "groq".
func (c *Config) GetOpenAI(section string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString(section + ".api_key"),
		BaseURL:     c.GetString(section + ".base_url"),
		ModelName:   c.GetString(section + ".model_name"),
		MaxTokens:   c.GetInt(section + ".max_tokens"),
		Temperature: float32(c.GetFloat64(section + ".temperature")),
		TopP:        float32(c.GetFloat64(section + ".top_p")),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
	}
}

// GetPipeline returns the pipeline configuration
func (c *Config) GetPipeline() PipelineConfig {
	return PipelineConfig{
		MaxBodySize:        c.GetInt("pipeline.max_body_size"),
		PlannerMaxAttempts: c.GetInt("pipeline.planner_max_attempts"),
		MaxActionSteps:     c.GetInt("pipeline.max_action_steps"),
		NoReplyMarkers:     c.GetStringSlice("pipeline.noreply_markers"),
	}
}

// GetMemory returns the sender memory configuration
func (c *Config) GetMemory() MemoryConfig {
	timeout, err := c.GetDuration("memory.timeout")
	if err != nil {
		timeout = 5 * time.Second
	}
	return MemoryConfig{
		Type:          c.GetString("memory.type"),
		FilePath:      c.GetString("memory.file_path"),
		SQLitePath:    c.GetString("memory.sqlite_path"),
		MySQLDSN:      c.GetString("memory.mysql_dsn"),
		PostgresDSN:   c.GetString("memory.postgres_dsn"),
		RedisAddr:     c.GetString("memory.redis_addr"),
		RedisPassword: c.GetString("memory.redis_password"),
		RedisDB:       c.GetInt("memory.redis_db"),
		RedisKey:      c.GetString("memory.redis_key"),
		Timeout:       timeout,
	}
}

// GetServer returns the SMTP daemon configuration
func (c *Config) GetServer() ServerConfig {
	timeout, err := c.GetDuration("server.analysis_timeout")
	if err != nil {
		timeout = 60 * time.Second
	}
	return ServerConfig{
		FilterType:        c.GetString("server.filter_type"),
		ListenAddress:     c.GetString("server.listen_address"),
		Domain:            c.GetString("server.domain"),
		MetricsAddress:    c.GetString("server.metrics_address"),
		AnalysisTimeout:   timeout,
		PriorityHeader:    c.GetString("server.headers.priority"),
		UrgencyHeader:     c.GetString("server.headers.urgency"),
		RiskHeader:        c.GetString("server.headers.risk"),
		SenderCountHeader: c.GetString("server.headers.sender_count"),
		RelayEnabled:      c.GetBool("server.relay.enabled"),
		RelayAddress:      c.GetString("server.relay.address"),
		RelayPort:         c.GetInt("server.relay.port"),
	}
}
