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
	c.normalizeScriptGen()
	c.normalizeVoice()
	c.normalizeFeed()
	c.normalizeProduction()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.EpisodesDir) == "" {
		c.Paths.EpisodesDir = defaultEpisodesDir
	}
	if c.Paths.EpisodesDir, err = expandPath(c.Paths.EpisodesDir); err != nil {
		return fmt.Errorf("paths.episodes_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	return nil
}

func (c *Config) normalizeScriptGen() {
	c.ScriptGen.APIKey = strings.TrimSpace(c.ScriptGen.APIKey)
	if c.ScriptGen.APIKey == "" {
		c.ScriptGen.APIKey = strings.TrimSpace(os.Getenv("BRIEFCAST_SCRIPTGEN_API_KEY"))
	}
	c.ScriptGen.BaseURL = strings.TrimSpace(c.ScriptGen.BaseURL)
	if c.ScriptGen.BaseURL == "" {
		c.ScriptGen.BaseURL = defaultScriptGenBaseURL
	}
	if strings.TrimSpace(c.ScriptGen.Model) == "" {
		c.ScriptGen.Model = defaultScriptGenModel
	}
	if c.ScriptGen.MaxTokens <= 0 {
		c.ScriptGen.MaxTokens = defaultScriptGenMaxTokens
	}
	if c.ScriptGen.TimeoutSeconds <= 0 {
		c.ScriptGen.TimeoutSeconds = defaultScriptGenTimeout
	}
}

func (c *Config) normalizeVoice() {
	c.Voice.APIKey = strings.TrimSpace(c.Voice.APIKey)
	if c.Voice.APIKey == "" {
		c.Voice.APIKey = strings.TrimSpace(os.Getenv("BRIEFCAST_VOICE_API_KEY"))
	}
	c.Voice.BaseURL = strings.TrimSpace(c.Voice.BaseURL)
	if c.Voice.BaseURL == "" {
		c.Voice.BaseURL = defaultVoiceBaseURL
	}
	if strings.TrimSpace(c.Voice.Model) == "" {
		c.Voice.Model = defaultVoiceModel
	}
	if strings.TrimSpace(c.Voice.VoiceAlex) == "" {
		c.Voice.VoiceAlex = defaultVoiceAlex
	}
	if strings.TrimSpace(c.Voice.VoiceMorgan) == "" {
		c.Voice.VoiceMorgan = defaultVoiceMorgan
	}
	if c.Voice.RequestsPerSecond <= 0 {
		c.Voice.RequestsPerSecond = defaultVoiceRate
	}
	if c.Voice.TimeoutSeconds <= 0 {
		c.Voice.TimeoutSeconds = defaultVoiceTimeout
	}
}

func (c *Config) normalizeFeed() {
	c.Feed.BaseURL = strings.TrimRight(strings.TrimSpace(c.Feed.BaseURL), "/")
	if strings.TrimSpace(c.Feed.Title) == "" {
		c.Feed.Title = defaultFeedTitle
	}
	if strings.TrimSpace(c.Feed.Language) == "" {
		c.Feed.Language = defaultFeedLanguage
	}
}

func (c *Config) normalizeProduction() {
	if c.Production.WeeklyCap < 0 {
		c.Production.WeeklyCap = 0
	}
	if c.Production.Workers <= 0 {
		c.Production.Workers = defaultWorkers
	}
	depth := strings.ToLower(strings.TrimSpace(c.Production.DefaultDepth))
	if depth == "" {
		depth = defaultDepth
	}
	c.Production.DefaultDepth = depth
	c.Production.AutoqueueCron = strings.TrimSpace(c.Production.AutoqueueCron)
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
