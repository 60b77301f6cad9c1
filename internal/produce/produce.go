package produce

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"briefcast/internal/config"
	"briefcast/internal/feed"
	"briefcast/internal/logging"
	"briefcast/internal/queue"
	"briefcast/internal/runner"
	"briefcast/internal/services"
	"briefcast/internal/services/scriptgen"
	"briefcast/internal/services/voice"
)

// ScriptService is the slice of the script-generation client production needs.
type ScriptService interface {
	GenerateScript(ctx context.Context, topic, depth, seriesContext string) (*scriptgen.Script, error)
	TopicFromChat(ctx context.Context, message string) (string, error)
	SuggestTopic(ctx context.Context, recentTitles []string) (string, error)
}

// VoiceService is the slice of the synthesis client production needs.
type VoiceService interface {
	SynthesizeDialogue(ctx context.Context, lines []voice.Line, progress voice.ProgressFunc) ([]byte, error)
}

// Producer turns queued jobs into published episodes: script, audio, catalog
// row, feed rebuild. One Producer serves every job kind.
type Producer struct {
	cfg       *config.Config
	store     *queue.Store
	scripts   ScriptService
	voices    VoiceService
	publisher *feed.Publisher
	logger    *slog.Logger
}

// New constructs a producer.
func New(cfg *config.Config, store *queue.Store, scripts ScriptService, voices VoiceService, publisher *feed.Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		cfg:       cfg,
		store:     store,
		scripts:   scripts,
		voices:    voices,
		publisher: publisher,
		logger:    logging.NewComponentLogger(logger, "produce"),
	}
}

// Registrar receives a work function per job kind.
type Registrar interface {
	Register(kind queue.Kind, work runner.Work)
}

// RegisterAll binds every producer work function to its kind.
func (p *Producer) RegisterAll(registrar Registrar) {
	registrar.Register(queue.KindEpisode, p.EpisodeWork)
	registrar.Register(queue.KindChat, p.ChatWork)
	registrar.Register(queue.KindAutoqueue, p.AutoqueueWork)
	registrar.Register(queue.KindSeriesEpisode, p.SeriesEpisodeWork)
}

// EpisodeInput is the payload for episode and series_episode jobs.
type EpisodeInput struct {
	Topic     string `json:"topic"`
	Depth     string `json:"depth,omitempty"`
	Brief     string `json:"brief,omitempty"`
	Context   string `json:"context,omitempty"`
	SeriesEp  int    `json:"series_ep,omitempty"`
	IsTrailer bool   `json:"is_trailer,omitempty"`
}

// ChatInput is the payload for chat jobs.
type ChatInput struct {
	Message string `json:"message"`
	Depth   string `json:"depth,omitempty"`
}

// Result is the terminal payload recorded on successful jobs.
type Result struct {
	EpisodeID string `json:"episode_id"`
	Title     string `json:"title"`
	File      string `json:"file"`
	FileSize  int64  `json:"file_size"`
	Topic     string `json:"topic"`
}

// EpisodeWork produces one standalone episode from a caller-supplied topic.
func (p *Producer) EpisodeWork(ctx context.Context, job *queue.Job, progress runner.ProgressFunc) (string, error) {
	var input EpisodeInput
	if err := decodeInput(job.InputJSON, &input); err != nil {
		return "", err
	}
	if strings.TrimSpace(input.Topic) == "" {
		return "", services.Wrap(services.ErrConfiguration, "produce", "episode", "topic required", nil)
	}
	return p.produceEpisode(ctx, job, input, progress)
}

// ChatWork distills the chat message into a topic, then produces an episode.
func (p *Producer) ChatWork(ctx context.Context, job *queue.Job, progress runner.ProgressFunc) (string, error) {
	var input ChatInput
	if err := decodeInput(job.InputJSON, &input); err != nil {
		return "", err
	}
	if strings.TrimSpace(input.Message) == "" {
		return "", services.Wrap(services.ErrConfiguration, "produce", "chat", "message required", nil)
	}

	progress("Choosing topic")
	topic, err := p.scripts.TopicFromChat(ctx, input.Message)
	if err != nil {
		return "", err
	}
	return p.produceEpisode(ctx, job, EpisodeInput{Topic: topic, Depth: input.Depth}, progress)
}

// AutoqueueWork sources its own topic, avoiding recently published titles.
func (p *Producer) AutoqueueWork(ctx context.Context, job *queue.Job, progress runner.ProgressFunc) (string, error) {
	progress("Choosing topic")
	episodes, err := p.store.ListEpisodes(ctx)
	if err != nil {
		return "", fmt.Errorf("load recent episodes: %w", err)
	}
	titles := make([]string, 0, len(episodes))
	for i, episode := range episodes {
		if i >= 20 {
			break
		}
		titles = append(titles, episode.Title)
	}

	topic, err := p.scripts.SuggestTopic(ctx, titles)
	if err != nil {
		return "", err
	}
	return p.produceEpisode(ctx, job, EpisodeInput{Topic: topic}, progress)
}

// SeriesEpisodeWork produces one step of a series plan. The series id rides
// on the job row; the step details ride in the input payload.
func (p *Producer) SeriesEpisodeWork(ctx context.Context, job *queue.Job, progress runner.ProgressFunc) (string, error) {
	var input EpisodeInput
	if err := decodeInput(job.InputJSON, &input); err != nil {
		return "", err
	}
	if job.SeriesID == "" {
		return "", services.Wrap(services.ErrConfiguration, "produce", "series episode", "job has no series id", nil)
	}
	if strings.TrimSpace(input.Topic) == "" {
		return "", services.Wrap(services.ErrConfiguration, "produce", "series episode", "step topic required", nil)
	}
	return p.produceEpisode(ctx, job, input, progress)
}

func (p *Producer) produceEpisode(ctx context.Context, job *queue.Job, input EpisodeInput, progress runner.ProgressFunc) (string, error) {
	depth := input.Depth
	if depth == "" {
		depth = p.cfg.Production.DefaultDepth
	}

	topic := input.Topic
	if input.Brief != "" {
		topic = topic + "\n\nProduction brief: " + input.Brief
	}

	progress("Writing script")
	script, err := p.scripts.GenerateScript(ctx, topic, depth, input.Context)
	if err != nil {
		return "", err
	}

	progress("Synthesizing audio")
	lines, err := p.dialogueLines(script.Dialogue)
	if err != nil {
		return "", err
	}
	audio, err := p.voices.SynthesizeDialogue(ctx, lines, func(done, total int) {
		progress(fmt.Sprintf("Synthesizing audio (%d/%d)", done, total))
	})
	if err != nil {
		return "", err
	}

	progress("Publishing")
	episode := &queue.Episode{
		ID:          uuid.NewString(),
		Title:       script.Title,
		Description: script.Description,
		Depth:       depth,
		IsTrailer:   input.IsTrailer,
		Sources:     script.Sources,
		SeriesID:    job.SeriesID,
		SeriesEp:    input.SeriesEp,
		Published:   time.Now().UTC(),
	}
	episode.File = filepath.Join(p.cfg.Paths.EpisodesDir, "ep_"+episode.ID+".mp3")
	if err := os.WriteFile(episode.File, audio, 0o644); err != nil {
		return "", fmt.Errorf("write episode audio: %w", err)
	}
	episode.FileSize = int64(len(audio))

	if err := p.store.SaveEpisode(ctx, episode); err != nil {
		_ = os.Remove(episode.File)
		return "", fmt.Errorf("save episode: %w", err)
	}
	p.publisher.RepublishAsync(context.WithoutCancel(ctx))

	p.logger.Info("episode produced",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("episode_id", episode.ID),
		logging.String("title", episode.Title),
		logging.Int64("bytes", episode.FileSize),
	)

	return encodeResult(Result{
		EpisodeID: episode.ID,
		Title:     episode.Title,
		File:      episode.File,
		FileSize:  episode.FileSize,
		Topic:     input.Topic,
	})
}

// dialogueLines maps script speakers to configured voice ids.
func (p *Producer) dialogueLines(dialogue []scriptgen.DialogueLine) ([]voice.Line, error) {
	lines := make([]voice.Line, 0, len(dialogue))
	for _, turn := range dialogue {
		voiceID, err := p.voiceFor(turn.Speaker)
		if err != nil {
			return nil, err
		}
		lines = append(lines, voice.Line{VoiceID: voiceID, Text: turn.Text})
	}
	return lines, nil
}

func (p *Producer) voiceFor(speaker string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(speaker)) {
	case "alex":
		return p.cfg.Voice.VoiceAlex, nil
	case "morgan":
		return p.cfg.Voice.VoiceMorgan, nil
	default:
		return "", services.Wrap(services.ErrSynthesis, "produce", "voice mapping",
			fmt.Sprintf("unknown speaker %q", speaker), nil)
	}
}

// DeleteEpisode removes a published episode and its audio file, then rebuilds
// the feed so the entry disappears.
func (p *Producer) DeleteEpisode(ctx context.Context, episodeID string) error {
	episode, err := p.store.GetEpisode(ctx, episodeID)
	if err != nil {
		return err
	}
	if episode == nil {
		return services.Wrap(services.ErrNotFound, "produce", "delete episode", episodeID, nil)
	}

	removed, err := p.store.RemoveEpisode(ctx, episodeID)
	if err != nil {
		return err
	}
	if removed && episode.File != "" {
		if err := os.Remove(episode.File); err != nil && !os.IsNotExist(err) {
			p.logger.Warn("episode audio not removed",
				logging.String("episode_id", episodeID),
				logging.Error(err),
			)
		}
	}
	return p.publisher.Republish(ctx)
}

func decodeInput(inputJSON string, target any) error {
	if strings.TrimSpace(inputJSON) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(inputJSON), target); err != nil {
		return fmt.Errorf("decode job input: %w", err)
	}
	return nil
}

func encodeResult(result Result) (string, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(data), nil
}
