package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageResponseText(t *testing.T) {
	resp := &MessageResponse{
		Content: []ContentBlock{
			{Type: "text", Text: "{\"slug\":"},
			{Type: "tool_use", Text: "ignored"},
			{Type: "text", Text: "\"the-grazing-goat\"}"},
		},
	}
	assert.Equal(t, `{"slug":"the-grazing-goat"}`, resp.Text())
}

func TestTokenUsageAdd(t *testing.T) {
	u := TokenUsage{InputTokens: 100, OutputTokens: 20}
	u.Add(TokenUsage{InputTokens: 50, OutputTokens: 30, CacheReadInputTokens: 10})

	assert.Equal(t, int64(150), u.InputTokens)
	assert.Equal(t, int64(50), u.OutputTokens)
	assert.Equal(t, int64(10), u.CacheReadInputTokens)
}

func TestEstimateCost(t *testing.T) {
	u := TokenUsage{
		InputTokens:  1_000_000,
		OutputTokens: 1_000_000,
	}

	// sonnet: $3 in + $15 out per MTok
	assert.InDelta(t, 18.0, u.EstimateCost("claude-sonnet-4-5-20250929"), 0.001)
	// unknown model has no pricing
	assert.InDelta(t, 0.0, u.EstimateCost("unknown-model"), 0.001)
}

func TestEstimateCostWithCache(t *testing.T) {
	u := TokenUsage{
		InputTokens:              500_000,
		OutputTokens:             100_000,
		CacheCreationInputTokens: 200_000,
		CacheReadInputTokens:     1_000_000,
	}

	// haiku: in 0.80, out 4.00; cache write x1.25, cache read x0.1
	// 0.5*0.80 + 0.1*4.00 + 0.2*0.80*1.25 + 1.0*0.80*0.1 = 0.4 + 0.4 + 0.2 + 0.08
	assert.InDelta(t, 1.08, u.EstimateCost("claude-haiku-4-5-20251001"), 0.001)
}

func TestToSDKMessagesWithImages(t *testing.T) {
	msgs := toSDKMessages([]Message{
		{
			Role:    "user",
			Content: "Classify this photo.",
			Images:  []ImageData{{MediaType: "image/jpeg", Base64: "aGVsbG8="}},
		},
	})

	// one message, image block precedes the text block
	assert.Len(t, msgs, 1)
	assert.Len(t, msgs[0].Content, 2)
	assert.NotNil(t, msgs[0].Content[0].OfImage)
	assert.NotNil(t, msgs[0].Content[1].OfText)
}
