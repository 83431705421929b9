package config

const (
	defaultDataDir         = "~/.local/share/carbonscan"
	defaultDocumentsDir    = "~/.local/share/carbonscan/documents"
	defaultSnippetsDir     = "~/.local/share/carbonscan/snippets"
	defaultExportDir       = "~/.local/share/carbonscan/export"
	defaultLogDir          = "~/.local/share/carbonscan/logs"
	defaultSearchBaseURL   = "https://html.duckduckgo.com/html/"
	defaultSearchLimit     = 10
	defaultSearchTimeout   = 20
	defaultUserAgent       = "carbonscan/dev"
	defaultDownloadTimeout = 120
	defaultDownloadMax     = int64(100 << 20)
	defaultExtractMaxPages = 400
	defaultLLMBaseURL      = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel        = "google/gemini-3-flash-preview"
	defaultLLMTimeout      = 60
	defaultDebounceMillis  = 500
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

func defaultKeywords() []string {
	return []string{
		"scope 1",
		"scope 2",
		"scope 3",
		"greenhouse gas",
		"ghg emissions",
		"tco2e",
		"kgco2e",
		"carbon credit",
		"carbon offset",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:      defaultDataDir,
			DocumentsDir: defaultDocumentsDir,
			SnippetsDir:  defaultSnippetsDir,
			ExportDir:    defaultExportDir,
			LogDir:       defaultLogDir,
		},
		Search: Search{
			BaseURL:        defaultSearchBaseURL,
			ResultLimit:    defaultSearchLimit,
			RequestTimeout: defaultSearchTimeout,
			UserAgent:      defaultUserAgent,
		},
		Download: Download{
			RequestTimeout: defaultDownloadTimeout,
			MaxBytes:       defaultDownloadMax,
		},
		Extract: Extract{
			MaxPages: defaultExtractMaxPages,
			Keywords: defaultKeywords(),
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeout,
		},
		Store: Store{
			DebounceMillis: defaultDebounceMillis,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
