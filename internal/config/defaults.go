package config

const (
	defaultDataDir                 = "~/.local/share/citelink"
	defaultLogDir                  = "~/.local/share/citelink/logs"
	defaultContentCacheDir         = "~/.local/share/citelink/cache/content"
	defaultAPIBind                 = "127.0.0.1:7816"
	defaultZoteroBaseURL           = "https://api.zotero.org"
	defaultZoteroTimeoutSeconds    = 60
	defaultLLMBaseURL              = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel                = "google/gemini-3-flash-preview"
	defaultLLMTimeoutSeconds       = 60
	defaultLLMMinConfidence        = 0.7
	defaultBatchConcurrency        = 5
	defaultStageTimeoutSeconds     = 60
	defaultSessionRetentionMinutes = 60
	defaultPausePollMillis         = 200
	defaultFetchUserAgent          = "citelink/0.1 (+https://github.com/citelink/citelink)"
	defaultFetchTimeoutSeconds     = 45
	defaultFetchMaxBodyBytes       = 8 << 20
	defaultLogFormat               = "auto"
	defaultLogLevel                = "info"
	defaultNotifyRequestTimeout    = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:         defaultDataDir,
			LogDir:          defaultLogDir,
			ContentCacheDir: defaultContentCacheDir,
			APIBind:         defaultAPIBind,
		},
		Zotero: Zotero{
			BaseURL:        defaultZoteroBaseURL,
			TimeoutSeconds: defaultZoteroTimeoutSeconds,
		},
		LLM: LLM{
			Enabled:        true,
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			MinConfidence:  defaultLLMMinConfidence,
		},
		Batch: Batch{
			Concurrency:             defaultBatchConcurrency,
			StageTimeoutSeconds:     defaultStageTimeoutSeconds,
			SessionRetentionMinutes: defaultSessionRetentionMinutes,
			PausePollMillis:         defaultPausePollMillis,
		},
		Fetch: Fetch{
			UserAgent:      defaultFetchUserAgent,
			TimeoutSeconds: defaultFetchTimeoutSeconds,
			MaxBodyBytes:   defaultFetchMaxBodyBytes,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Suggestions:    true,
			Batches:        true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
