package voice

import (
	"context"
	"strings"

	"briefcast/internal/services"
)

// Line is one synthesis unit: a speaker name resolved to a voice id by the
// caller, plus the text to render.
type Line struct {
	VoiceID string
	Text    string
}

// ProgressFunc reports synthesis progress as lines complete.
type ProgressFunc func(done, total int)

// SynthesizeDialogue renders each line in order and concatenates the encoded
// audio. MP3 frame streams concatenate cleanly, so stitching is a plain
// append. The first failing line aborts the whole dialogue.
func (c *Client) SynthesizeDialogue(ctx context.Context, lines []Line, progress ProgressFunc) ([]byte, error) {
	if len(lines) == 0 {
		return nil, services.Wrap(services.ErrSynthesis, "voice", "dialogue", "no lines to synthesize", nil)
	}

	var audio []byte
	for i, line := range lines {
		if strings.TrimSpace(line.Text) == "" {
			continue
		}
		segment, err := c.Synthesize(ctx, line.VoiceID, line.Text)
		if err != nil {
			return nil, err
		}
		audio = append(audio, segment...)
		if progress != nil {
			progress(i+1, len(lines))
		}
	}
	if len(audio) == 0 {
		return nil, services.Wrap(services.ErrSynthesis, "voice", "dialogue", "dialogue produced no audio", nil)
	}
	return audio, nil
}
