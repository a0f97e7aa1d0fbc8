package config

import "time"

const (
	defaultCacheDir         = "~/.local/share/cardforge/cache"
	defaultLogDir           = "~/.local/share/cardforge/logs"
	defaultAPIBind          = "127.0.0.1:7615"
	defaultOpenSeaBaseURL   = "https://api.opensea.io/api/v2"
	defaultOpenSeaChain     = "ethereum"
	defaultOpenAIBaseURL    = "https://api.openai.com/v1/chat/completions"
	defaultOpenAIModel      = "gpt-4o"
	defaultOpenAITimeout    = 60
	defaultGoAPIBaseURL     = "https://api.goapi.ai/mj/v2"
	defaultGoAPIProcessMode = "fast"
	defaultGoAPITimeout     = 30
	defaultPollInterval     = 5
	defaultMaxPollAttempts  = 60
	defaultAspectRatio      = "2:3"
	defaultStyleSuffix      = "fantasy trading card art, ornate border, dramatic lighting"
	defaultNotifyTimeout    = 10
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir: defaultCacheDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		OpenSea: OpenSea{
			BaseURL: defaultOpenSeaBaseURL,
			Chain:   defaultOpenSeaChain,
		},
		OpenAI: OpenAI{
			BaseURL:        defaultOpenAIBaseURL,
			Model:          defaultOpenAIModel,
			TimeoutSeconds: defaultOpenAITimeout,
		},
		GoAPI: GoAPI{
			BaseURL:        defaultGoAPIBaseURL,
			ProcessMode:    defaultGoAPIProcessMode,
			TimeoutSeconds: defaultGoAPITimeout,
		},
		Generator: Generator{
			PollIntervalSeconds: defaultPollInterval,
			MaxPollAttempts:     defaultMaxPollAttempts,
			StyleSuffix:         defaultStyleSuffix,
			AspectRatio:         defaultAspectRatio,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Generation:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// PollInterval returns the generator poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	seconds := c.Generator.PollIntervalSeconds
	if seconds <= 0 {
		seconds = defaultPollInterval
	}
	return time.Duration(seconds) * time.Second
}
