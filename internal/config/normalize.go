package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeOpenSea()
	c.normalizeOpenAI()
	c.normalizeGoAPI()
	c.normalizeGenerator()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeOpenSea() {
	c.OpenSea.APIKey = fallbackEnv(c.OpenSea.APIKey, "OPENSEA_API_KEY")
	c.OpenSea.BaseURL = strings.TrimRight(strings.TrimSpace(c.OpenSea.BaseURL), "/")
	if c.OpenSea.BaseURL == "" {
		c.OpenSea.BaseURL = defaultOpenSeaBaseURL
	}
	c.OpenSea.Chain = strings.ToLower(strings.TrimSpace(c.OpenSea.Chain))
	if c.OpenSea.Chain == "" {
		c.OpenSea.Chain = defaultOpenSeaChain
	}
	c.OpenSea.Contract = strings.ToLower(strings.TrimSpace(c.OpenSea.Contract))
}

func (c *Config) normalizeOpenAI() {
	c.OpenAI.APIKey = fallbackEnv(c.OpenAI.APIKey, "OPENAI_API_KEY")
	c.OpenAI.BaseURL = strings.TrimSpace(c.OpenAI.BaseURL)
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = defaultOpenAIBaseURL
	}
	c.OpenAI.Model = strings.TrimSpace(c.OpenAI.Model)
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = defaultOpenAIModel
	}
	if c.OpenAI.TimeoutSeconds <= 0 {
		c.OpenAI.TimeoutSeconds = defaultOpenAITimeout
	}
}

func (c *Config) normalizeGoAPI() {
	c.GoAPI.APIKey = fallbackEnv(c.GoAPI.APIKey, "GOAPI_API_KEY")
	c.GoAPI.BaseURL = strings.TrimRight(strings.TrimSpace(c.GoAPI.BaseURL), "/")
	if c.GoAPI.BaseURL == "" {
		c.GoAPI.BaseURL = defaultGoAPIBaseURL
	}
	c.GoAPI.ProcessMode = strings.ToLower(strings.TrimSpace(c.GoAPI.ProcessMode))
	if c.GoAPI.ProcessMode == "" {
		c.GoAPI.ProcessMode = defaultGoAPIProcessMode
	}
	if c.GoAPI.TimeoutSeconds <= 0 {
		c.GoAPI.TimeoutSeconds = defaultGoAPITimeout
	}
}

func (c *Config) normalizeGenerator() {
	if c.Generator.PollIntervalSeconds <= 0 {
		c.Generator.PollIntervalSeconds = defaultPollInterval
	}
	if c.Generator.MaxPollAttempts <= 0 {
		c.Generator.MaxPollAttempts = defaultMaxPollAttempts
	}
	c.Generator.StyleSuffix = strings.TrimSpace(c.Generator.StyleSuffix)
	c.Generator.AspectRatio = strings.TrimSpace(c.Generator.AspectRatio)
	if c.Generator.AspectRatio == "" {
		c.Generator.AspectRatio = defaultAspectRatio
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func fallbackEnv(value, envKey string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	return strings.TrimSpace(os.Getenv(envKey))
}
