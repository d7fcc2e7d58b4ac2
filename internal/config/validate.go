package config

import (
	"errors"
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ContentCacheDir) == "" {
		c.Paths.ContentCacheDir = defaultContentCacheDir
	}
	if c.Paths.ContentCacheDir, err = expandPath(c.Paths.ContentCacheDir); err != nil {
		return fmt.Errorf("paths.content_cache_dir: %w", err)
	}

	c.Zotero.BaseURL = strings.TrimRight(strings.TrimSpace(c.Zotero.BaseURL), "/")
	if c.Zotero.BaseURL == "" {
		c.Zotero.BaseURL = defaultZoteroBaseURL
	}
	if c.Zotero.TimeoutSeconds <= 0 {
		c.Zotero.TimeoutSeconds = defaultZoteroTimeoutSeconds
	}

	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}

	if c.Batch.Concurrency <= 0 {
		c.Batch.Concurrency = defaultBatchConcurrency
	}
	if c.Batch.StageTimeoutSeconds <= 0 {
		c.Batch.StageTimeoutSeconds = defaultStageTimeoutSeconds
	}
	if c.Batch.SessionRetentionMinutes <= 0 {
		c.Batch.SessionRetentionMinutes = defaultSessionRetentionMinutes
	}
	if c.Batch.PausePollMillis <= 0 {
		c.Batch.PausePollMillis = defaultPausePollMillis
	}

	if strings.TrimSpace(c.Fetch.UserAgent) == "" {
		c.Fetch.UserAgent = defaultFetchUserAgent
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		c.Fetch.TimeoutSeconds = defaultFetchTimeoutSeconds
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		c.Fetch.MaxBodyBytes = defaultFetchMaxBodyBytes
	}

	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaultLogFormat
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateZotero(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateZotero() error {
	if strings.TrimSpace(c.Zotero.APIKey) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/citelink/config.toml"
		}
		return fmt.Errorf("zotero.api_key is required; edit %s (create with 'citelink config init')", defaultPath)
	}
	if strings.TrimSpace(c.Zotero.LibraryID) == "" {
		return errors.New("zotero.library_id must be set")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if !c.LLM.Enabled {
		return nil
	}
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return errors.New("llm.api_key must be set when llm.enabled is true")
	}
	if c.LLM.MinConfidence < 0 || c.LLM.MinConfidence > 1 {
		return errors.New("llm.min_confidence must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateBatch() error {
	if c.Batch.Concurrency > 64 {
		return errors.New("batch.concurrency must not exceed 64")
	}
	return nil
}
