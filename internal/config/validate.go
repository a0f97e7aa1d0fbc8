package config

import (
	"errors"
	"fmt"
	"strings"
)

var validProcessModes = map[string]struct{}{
	"relax": {},
	"fast":  {},
	"turbo": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateOpenSea(); err != nil {
		return err
	}
	if err := c.validateOpenAI(); err != nil {
		return err
	}
	if err := c.validateGoAPI(); err != nil {
		return err
	}
	if err := c.validateGenerator(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateOpenSea() error {
	if c.OpenSea.APIKey == "" {
		return requiredKeyError("opensea.api_key", "OPENSEA_API_KEY")
	}
	if c.OpenSea.Contract == "" {
		return errors.New("opensea.contract must be set to the NFT collection contract address")
	}
	if !strings.HasPrefix(c.OpenSea.Contract, "0x") || len(c.OpenSea.Contract) != 42 {
		return fmt.Errorf("opensea.contract %q does not look like a contract address", c.OpenSea.Contract)
	}
	return nil
}

func (c *Config) validateOpenAI() error {
	if c.OpenAI.APIKey == "" {
		return requiredKeyError("openai.api_key", "OPENAI_API_KEY")
	}
	return nil
}

func (c *Config) validateGoAPI() error {
	if c.GoAPI.APIKey == "" {
		return requiredKeyError("goapi.api_key", "GOAPI_API_KEY")
	}
	if _, ok := validProcessModes[c.GoAPI.ProcessMode]; !ok {
		return fmt.Errorf("goapi.process_mode must be relax, fast, or turbo (got %q)", c.GoAPI.ProcessMode)
	}
	return nil
}

func (c *Config) validateGenerator() error {
	if c.Generator.PollIntervalSeconds < 1 {
		return errors.New("generator.poll_interval_seconds must be at least 1")
	}
	if c.Generator.MaxPollAttempts < 1 {
		return errors.New("generator.max_poll_attempts must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}

func requiredKeyError(field, envKey string) error {
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = "~/.config/cardforge/config.toml"
	}
	return fmt.Errorf("%s is required. Set %s env var or edit %s (create with 'cardforge config init')", field, envKey, defaultPath)
}
