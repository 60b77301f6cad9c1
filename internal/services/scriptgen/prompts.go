package scriptgen

import (
	"fmt"
	"strings"
)

const defaultSeriesEpisodes = 5

// segmentMinutes maps a production depth to the target episode length.
var segmentMinutes = map[string]int{
	"executive": 10,
	"standard":  16,
	"deep":      24,
}

const scriptSystemPrompt = `You are writing a premium executive intelligence podcast script for two hosts, Alex and Morgan.
Alex frames the strategic picture; Morgan grounds it in operational reality and pushes back at least once per episode with a real counter-argument.
The listener is a senior executive in analytics and AI. Sharp, specific, zero fluff.
Respond with JSON only, no prose, matching:
{"title": "...", "description": "one-paragraph episode summary", "sources": ["..."], "dialogue": [{"speaker": "Alex", "text": "..."}, {"speaker": "Morgan", "text": "..."}]}`

func buildScriptPrompt(topic, depth, seriesContext string) string {
	minutes, ok := segmentMinutes[depth]
	if !ok {
		minutes = segmentMinutes["standard"]
	}
	var builder strings.Builder
	fmt.Fprintf(&builder, "Write a %d-minute episode on this topic:\n%s\n", minutes, topic)
	builder.WriteString("\nName specific companies, people, or real situations as examples. ")
	builder.WriteString("Alternate speakers; never give either host two consecutive turns.")
	if seriesContext = strings.TrimSpace(seriesContext); seriesContext != "" {
		builder.WriteString("\n\nThis episode is part of a series. Context from the series so far:\n")
		builder.WriteString(seriesContext)
	}
	return builder.String()
}

const outlineSystemPrompt = `You are an executive podcast series producer.
Respond with JSON only, matching:
{"title": "series title", "episodes": [{"title": "...", "tension": "the central tension in one sentence", "brief": "production notes for the episode"}]}`

func buildOutlinePrompt(prompt string, episodes int) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Create a %d-episode deep-dive series arc for this prompt:\n%s\n\n", episodes, prompt)
	builder.WriteString("Episode 1 is the executive overview (the what and why). ")
	fmt.Fprintf(&builder, "Episodes 2 through %d go progressively deeper: mechanisms, case studies, frameworks, edge cases, implications.", episodes)
	return builder.String()
}

const chatTopicSystemPrompt = `You are an editorial producer for an executive intelligence podcast.
Distill the user's message into one concrete briefing topic.
Respond with JSON only: {"topic": "..."}`

const autoTopicSystemPrompt = `You are an editorial strategist for an executive intelligence podcast covering analytics, AI, and enterprise strategy.
Propose the single most actionable briefing topic right now.
Respond with JSON only: {"topic": "..."}`

func buildAutoTopicPrompt(recentTitles []string) string {
	if len(recentTitles) == 0 {
		return "Pick a high-leverage topic. No episodes have been published yet."
	}
	var builder strings.Builder
	builder.WriteString("Pick a high-leverage topic that does not repeat these recent episodes:\n")
	for _, title := range recentTitles {
		builder.WriteString("- ")
		builder.WriteString(title)
		builder.WriteByte('\n')
	}
	return builder.String()
}
