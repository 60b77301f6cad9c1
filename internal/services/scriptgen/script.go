package scriptgen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"briefcast/internal/queue"
	"briefcast/internal/services"
)

// DialogueLine is one host turn in a generated script.
type DialogueLine struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Script is a complete generated episode script.
type Script struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Dialogue    []DialogueLine `json:"dialogue"`
	Sources     []string       `json:"sources"`
}

// SeriesOutline is a generated multi-episode plan.
type SeriesOutline struct {
	Title    string           `json:"title"`
	Episodes []queue.PlanStep `json:"episodes"`
}

// GenerateScript produces a two-host episode script for the topic at the
// given depth. Context passed to the brief lets series episodes reference
// earlier installments; it may be empty.
func (c *Client) GenerateScript(ctx context.Context, topic, depth, seriesContext string) (*Script, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, services.Wrap(services.ErrGeneration, "scriptgen", "script", "topic required", nil)
	}

	prompt := buildScriptPrompt(topic, depth, seriesContext)
	content, err := c.CompleteJSON(ctx, scriptSystemPrompt, prompt)
	if err != nil {
		return nil, services.Wrap(services.ErrGeneration, "scriptgen", "script", topic, err)
	}

	var script Script
	if err := DecodeModelJSON(content, &script); err != nil {
		return nil, services.Wrap(services.ErrGeneration, "scriptgen", "script", "parse payload", err)
	}
	if err := validateScript(&script); err != nil {
		return nil, services.Wrap(services.ErrGeneration, "scriptgen", "script", "invalid payload", err)
	}
	return &script, nil
}

// OutlineSeries produces an ordered plan of episode steps for the prompt.
// The plan is fixed at creation; production later walks it in order.
func (c *Client) OutlineSeries(ctx context.Context, prompt string, episodes int) (*SeriesOutline, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, services.Wrap(services.ErrGeneration, "scriptgen", "outline", "prompt required", nil)
	}
	if episodes <= 0 {
		episodes = defaultSeriesEpisodes
	}

	content, err := c.CompleteJSON(ctx, outlineSystemPrompt, buildOutlinePrompt(prompt, episodes))
	if err != nil {
		return nil, services.Wrap(services.ErrGeneration, "scriptgen", "outline", prompt, err)
	}

	var outline SeriesOutline
	if err := DecodeModelJSON(content, &outline); err != nil {
		return nil, services.Wrap(services.ErrGeneration, "scriptgen", "outline", "parse payload", err)
	}
	outline.Title = strings.TrimSpace(outline.Title)
	if outline.Title == "" {
		return nil, services.Wrap(services.ErrGeneration, "scriptgen", "outline", "missing series title", nil)
	}
	if len(outline.Episodes) == 0 {
		return nil, services.Wrap(services.ErrGeneration, "scriptgen", "outline", "empty episode plan", nil)
	}
	for i := range outline.Episodes {
		outline.Episodes[i].Title = strings.TrimSpace(outline.Episodes[i].Title)
		if outline.Episodes[i].Title == "" {
			return nil, services.Wrap(services.ErrGeneration, "scriptgen", "outline",
				fmt.Sprintf("episode %d has no title", i+1), nil)
		}
	}
	return &outline, nil
}

// TopicFromChat distills a free-text message into a single briefing topic.
func (c *Client) TopicFromChat(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", services.Wrap(services.ErrGeneration, "scriptgen", "chat topic", "message required", nil)
	}

	content, err := c.CompleteJSON(ctx, chatTopicSystemPrompt, message)
	if err != nil {
		return "", services.Wrap(services.ErrGeneration, "scriptgen", "chat topic", "", err)
	}

	var parsed struct {
		Topic string `json:"topic"`
	}
	if err := DecodeModelJSON(content, &parsed); err != nil {
		return "", services.Wrap(services.ErrGeneration, "scriptgen", "chat topic", "parse payload", err)
	}
	topic := strings.TrimSpace(parsed.Topic)
	if topic == "" {
		return "", services.Wrap(services.ErrGeneration, "scriptgen", "chat topic", "empty topic", nil)
	}
	return topic, nil
}

// SuggestTopic picks a fresh briefing topic, avoiding recently covered ones.
func (c *Client) SuggestTopic(ctx context.Context, recentTitles []string) (string, error) {
	content, err := c.CompleteJSON(ctx, autoTopicSystemPrompt, buildAutoTopicPrompt(recentTitles))
	if err != nil {
		return "", services.Wrap(services.ErrGeneration, "scriptgen", "suggest topic", "", err)
	}

	var parsed struct {
		Topic string `json:"topic"`
	}
	if err := DecodeModelJSON(content, &parsed); err != nil {
		return "", services.Wrap(services.ErrGeneration, "scriptgen", "suggest topic", "parse payload", err)
	}
	topic := strings.TrimSpace(parsed.Topic)
	if topic == "" {
		return "", services.Wrap(services.ErrGeneration, "scriptgen", "suggest topic", "empty topic", nil)
	}
	return topic, nil
}

func validateScript(script *Script) error {
	script.Title = strings.TrimSpace(script.Title)
	if script.Title == "" {
		return errors.New("missing title")
	}
	if len(script.Dialogue) == 0 {
		return errors.New("empty dialogue")
	}
	for i, line := range script.Dialogue {
		if strings.TrimSpace(line.Speaker) == "" {
			return fmt.Errorf("dialogue line %d has no speaker", i+1)
		}
		if strings.TrimSpace(line.Text) == "" {
			return fmt.Errorf("dialogue line %d has no text", i+1)
		}
	}
	return nil
}
