package config

const (
	defaultConfigPath         = "~/.config/scenesmith/config.toml"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLLMBaseURL         = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel           = "google/gemini-3-flash-preview"
	defaultLLMReferer         = "https://github.com/scenesmith/scenesmith"
	defaultLLMTitle           = "scenesmith"
	defaultLLMTimeoutSeconds  = 120
	defaultLLMMaxRetries      = 3
	defaultMinScenes          = 8
	defaultMaxScenes          = 12
	defaultMinSceneSeconds    = 20
	defaultMaxSceneSeconds    = 45
	defaultMinTotalSeconds    = 240
	defaultMaxTotalSeconds    = 480
	defaultAckToken           = "understood"
	defaultLedgerFileName     = "ledger.db"
	defaultLogDirName         = "logs"
	defaultPlaceholderBraces  = `\{\{[^{}\n]*\}\}`
	defaultPlaceholderAngle   = `<[A-Z][A-Z0-9_]{2,}>`
	defaultPlaceholderDunder  = `\b__[A-Z][A-Z0-9_]*__\b`
	defaultPlaceholderLiteral = `\bPLACEHOLDER\b`
)

var defaultFillerPhrases = []string{
	"your animation code here",
	"replace this with",
	"insert scene content",
	"demo_text",
	"hello, manim",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	dataDir := defaultDataDir()
	return Config{
		Paths: Paths{
			LogDir:     dataDir + "/" + defaultLogDirName,
			LedgerPath: dataDir + "/" + defaultLedgerFileName,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			MaxRetries:     defaultLLMMaxRetries,
		},
		Plan: Plan{
			MinScenes:       defaultMinScenes,
			MaxScenes:       defaultMaxScenes,
			MinSceneSeconds: defaultMinSceneSeconds,
			MaxSceneSeconds: defaultMaxSceneSeconds,
			MinTotalSeconds: defaultMinTotalSeconds,
			MaxTotalSeconds: defaultMaxTotalSeconds,
		},
		Fragments: Fragments{
			FillerPhrases: append([]string(nil), defaultFillerPhrases...),
			PlaceholderPatterns: []string{
				defaultPlaceholderBraces,
				defaultPlaceholderAngle,
				defaultPlaceholderDunder,
				defaultPlaceholderLiteral,
			},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Engine: Engine{
			AckToken: defaultAckToken,
		},
	}
}
