package produce_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"briefcast/internal/config"
	"briefcast/internal/feed"
	"briefcast/internal/logging"
	"briefcast/internal/produce"
	"briefcast/internal/queue"
	"briefcast/internal/services"
	"briefcast/internal/services/scriptgen"
	"briefcast/internal/services/voice"
	"briefcast/internal/testsupport"
)

type fakeScripts struct {
	script     *scriptgen.Script
	scriptErr  error
	chatTopic  string
	autoTopic  string
	lastTopic  string
	lastDepth  string
	lastSeries string
	recent     []string
}

func (f *fakeScripts) GenerateScript(_ context.Context, topic, depth, seriesContext string) (*scriptgen.Script, error) {
	f.lastTopic = topic
	f.lastDepth = depth
	f.lastSeries = seriesContext
	if f.scriptErr != nil {
		return nil, f.scriptErr
	}
	return f.script, nil
}

func (f *fakeScripts) TopicFromChat(_ context.Context, _ string) (string, error) {
	return f.chatTopic, nil
}

func (f *fakeScripts) SuggestTopic(_ context.Context, recentTitles []string) (string, error) {
	f.recent = recentTitles
	return f.autoTopic, nil
}

type fakeVoices struct {
	lines []voice.Line
}

func (f *fakeVoices) SynthesizeDialogue(_ context.Context, lines []voice.Line, progress voice.ProgressFunc) ([]byte, error) {
	f.lines = lines
	if progress != nil {
		progress(len(lines), len(lines))
	}
	return []byte("audio"), nil
}

func defaultScript() *scriptgen.Script {
	return &scriptgen.Script{
		Title:       "Quantum Networking Arrives",
		Description: "What entanglement routing changes.",
		Sources:     []string{"https://example.com/qnet"},
		Dialogue: []scriptgen.DialogueLine{
			{Speaker: "Alex", Text: "Start with the repeater breakthrough."},
			{Speaker: "Morgan", Text: "And why it matters for security."},
		},
	}
}

func newProducer(t *testing.T, scripts *fakeScripts, voices *fakeVoices) (*produce.Producer, *queue.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	publisher := feed.NewPublisher(cfg, store, logging.NewNop())
	producer := produce.New(cfg, store, scripts, voices, publisher, logging.NewNop())
	return producer, store, cfg
}

func noProgress(string) {}

func TestEpisodeWorkPublishesEpisode(t *testing.T) {
	scripts := &fakeScripts{script: defaultScript()}
	voices := &fakeVoices{}
	producer, store, cfg := newProducer(t, scripts, voices)

	input, _ := json.Marshal(produce.EpisodeInput{Topic: "quantum networking", Depth: "deep"})
	job := testsupport.NewJob(t, store, queue.KindEpisode, string(input))

	resultJSON, err := producer.EpisodeWork(context.Background(), job, noProgress)
	if err != nil {
		t.Fatalf("EpisodeWork failed: %v", err)
	}

	var result produce.Result
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Title != "Quantum Networking Arrives" {
		t.Fatalf("unexpected result title: %q", result.Title)
	}
	if result.Topic != "quantum networking" {
		t.Fatalf("unexpected result topic: %q", result.Topic)
	}

	audio, err := os.ReadFile(result.File)
	if err != nil {
		t.Fatalf("read episode audio: %v", err)
	}
	if string(audio) != "audio" || result.FileSize != int64(len(audio)) {
		t.Fatalf("audio file mismatch: %q size %d", audio, result.FileSize)
	}

	episode, err := store.GetEpisode(context.Background(), result.EpisodeID)
	if err != nil || episode == nil {
		t.Fatalf("episode not cataloged: %v", err)
	}
	if episode.Depth != "deep" {
		t.Fatalf("unexpected depth: %q", episode.Depth)
	}
	if scripts.lastDepth != "deep" {
		t.Fatalf("depth not forwarded to script generation: %q", scripts.lastDepth)
	}

	if voices.lines[0].VoiceID != cfg.Voice.VoiceAlex || voices.lines[1].VoiceID != cfg.Voice.VoiceMorgan {
		t.Fatalf("speakers not mapped to configured voices: %+v", voices.lines)
	}
}

func TestEpisodeWorkDefaultsDepthAndAppendsBrief(t *testing.T) {
	scripts := &fakeScripts{script: defaultScript()}
	producer, store, cfg := newProducer(t, scripts, &fakeVoices{})

	input, _ := json.Marshal(produce.EpisodeInput{Topic: "fusion startups", Brief: "focus on funding"})
	job := testsupport.NewJob(t, store, queue.KindEpisode, string(input))

	if _, err := producer.EpisodeWork(context.Background(), job, noProgress); err != nil {
		t.Fatalf("EpisodeWork failed: %v", err)
	}
	if scripts.lastDepth != cfg.Production.DefaultDepth {
		t.Fatalf("expected default depth %q, got %q", cfg.Production.DefaultDepth, scripts.lastDepth)
	}
	if !strings.Contains(scripts.lastTopic, "focus on funding") {
		t.Fatalf("brief not appended to topic: %q", scripts.lastTopic)
	}
}

func TestEpisodeWorkMarksTrailerInCatalog(t *testing.T) {
	producer, store, _ := newProducer(t, &fakeScripts{script: defaultScript()}, &fakeVoices{})

	input, _ := json.Marshal(produce.EpisodeInput{Topic: "season preview", IsTrailer: true})
	job := testsupport.NewJob(t, store, queue.KindEpisode, string(input))

	resultJSON, err := producer.EpisodeWork(context.Background(), job, noProgress)
	if err != nil {
		t.Fatalf("EpisodeWork failed: %v", err)
	}
	var result produce.Result
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	episode, err := store.GetEpisode(context.Background(), result.EpisodeID)
	if err != nil || episode == nil {
		t.Fatalf("episode not cataloged: %v", err)
	}
	if !episode.IsTrailer {
		t.Fatal("trailer flag not persisted on the episode")
	}
}

func TestEpisodeWorkRequiresTopic(t *testing.T) {
	producer, store, _ := newProducer(t, &fakeScripts{script: defaultScript()}, &fakeVoices{})
	job := testsupport.NewJob(t, store, queue.KindEpisode, `{}`)

	_, err := producer.EpisodeWork(context.Background(), job, noProgress)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestEpisodeWorkRejectsUnknownSpeaker(t *testing.T) {
	script := defaultScript()
	script.Dialogue = append(script.Dialogue, scriptgen.DialogueLine{Speaker: "Sam", Text: "surprise guest"})
	producer, store, _ := newProducer(t, &fakeScripts{script: script}, &fakeVoices{})

	input, _ := json.Marshal(produce.EpisodeInput{Topic: "guests"})
	job := testsupport.NewJob(t, store, queue.KindEpisode, string(input))

	_, err := producer.EpisodeWork(context.Background(), job, noProgress)
	if !errors.Is(err, services.ErrSynthesis) {
		t.Fatalf("expected ErrSynthesis for unknown speaker, got %v", err)
	}
}

func TestChatWorkDistillsTopic(t *testing.T) {
	scripts := &fakeScripts{script: defaultScript(), chatTopic: "rate cuts and startups"}
	producer, store, _ := newProducer(t, scripts, &fakeVoices{})

	input, _ := json.Marshal(produce.ChatInput{Message: "what do rate cuts mean for seed rounds?"})
	job := testsupport.NewJob(t, store, queue.KindChat, string(input))

	resultJSON, err := producer.ChatWork(context.Background(), job, noProgress)
	if err != nil {
		t.Fatalf("ChatWork failed: %v", err)
	}
	var result produce.Result
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Topic != "rate cuts and startups" {
		t.Fatalf("chat topic not used: %q", result.Topic)
	}
}

func TestAutoqueueWorkAvoidsRecentTitles(t *testing.T) {
	scripts := &fakeScripts{script: defaultScript(), autoTopic: "grid-scale batteries"}
	producer, store, cfg := newProducer(t, scripts, &fakeVoices{})

	ctx := context.Background()
	if err := store.SaveEpisode(ctx, &queue.Episode{
		ID:    "ep-prev",
		Title: "Previous Briefing",
		File:  cfg.Paths.EpisodesDir + "/ep_prev.mp3",
	}); err != nil {
		t.Fatalf("SaveEpisode failed: %v", err)
	}

	job := testsupport.NewJob(t, store, queue.KindAutoqueue, "")
	if _, err := producer.AutoqueueWork(ctx, job, noProgress); err != nil {
		t.Fatalf("AutoqueueWork failed: %v", err)
	}
	if len(scripts.recent) != 1 || scripts.recent[0] != "Previous Briefing" {
		t.Fatalf("recent titles not forwarded: %v", scripts.recent)
	}
}

func TestSeriesEpisodeWorkRequiresSeriesID(t *testing.T) {
	producer, store, _ := newProducer(t, &fakeScripts{script: defaultScript()}, &fakeVoices{})

	input, _ := json.Marshal(produce.EpisodeInput{Topic: "step one", SeriesEp: 1})
	job := testsupport.NewJob(t, store, queue.KindSeriesEpisode, string(input))

	_, err := producer.SeriesEpisodeWork(context.Background(), job, noProgress)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestDeleteEpisodeRemovesRowAndAudio(t *testing.T) {
	producer, store, cfg := newProducer(t, &fakeScripts{script: defaultScript()}, &fakeVoices{})

	ctx := context.Background()
	file := cfg.Paths.EpisodesDir + "/ep_gone.mp3"
	if err := os.WriteFile(file, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	if err := store.SaveEpisode(ctx, &queue.Episode{ID: "ep-gone", Title: "Doomed", File: file}); err != nil {
		t.Fatalf("SaveEpisode failed: %v", err)
	}

	if err := producer.DeleteEpisode(ctx, "ep-gone"); err != nil {
		t.Fatalf("DeleteEpisode failed: %v", err)
	}
	if episode, err := store.GetEpisode(ctx, "ep-gone"); err != nil || episode != nil {
		t.Fatalf("episode row must be gone: %v %v", episode, err)
	}
	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Fatalf("audio file must be removed: %v", err)
	}
}

func TestDeleteEpisodeMissingReturnsNotFound(t *testing.T) {
	producer, _, _ := newProducer(t, &fakeScripts{script: defaultScript()}, &fakeVoices{})

	err := producer.DeleteEpisode(context.Background(), "no-such-episode")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
