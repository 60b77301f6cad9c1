package config

const (
	defaultDataDir            = "~/.local/share/briefcast"
	defaultEpisodesDir        = "~/.local/share/briefcast/episodes"
	defaultLogDir             = "~/.local/share/briefcast/logs"
	defaultAPIBind            = "127.0.0.1:8316"
	defaultScriptGenBaseURL   = "https://api.anthropic.com"
	defaultScriptGenModel     = "claude-sonnet-4-20250514"
	defaultScriptGenMaxTokens = 4000
	defaultScriptGenTimeout   = 300
	defaultVoiceBaseURL       = "https://api.elevenlabs.io"
	defaultVoiceModel         = "eleven_turbo_v2_5"
	defaultVoiceAlex          = "Chris - Charming, Down-to-Earth"
	defaultVoiceMorgan        = "Matilda - Knowledgable, Professional"
	defaultVoiceRate          = 2.0
	defaultVoiceTimeout       = 120
	defaultFeedTitle          = "Intelligence Briefings"
	defaultFeedLanguage       = "en-us"
	defaultWeeklyCap          = 50
	defaultWorkers            = 4
	defaultDepth              = "standard"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			EpisodesDir: defaultEpisodesDir,
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
		},
		ScriptGen: ScriptGen{
			BaseURL:        defaultScriptGenBaseURL,
			Model:          defaultScriptGenModel,
			MaxTokens:      defaultScriptGenMaxTokens,
			TimeoutSeconds: defaultScriptGenTimeout,
		},
		Voice: Voice{
			BaseURL:           defaultVoiceBaseURL,
			Model:             defaultVoiceModel,
			VoiceAlex:         defaultVoiceAlex,
			VoiceMorgan:       defaultVoiceMorgan,
			RequestsPerSecond: defaultVoiceRate,
			TimeoutSeconds:    defaultVoiceTimeout,
		},
		Feed: Feed{
			Title:    defaultFeedTitle,
			Language: defaultFeedLanguage,
		},
		Production: Production{
			WeeklyCap:    defaultWeeklyCap,
			Workers:      defaultWorkers,
			DefaultDepth: defaultDepth,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
