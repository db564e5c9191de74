package extraction

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultModel     = openai.GPT4o
	defaultMaxTokens = 2000
)

const prompt = `Extract multiple-choice questions (MCQ) from this image. For each question:
1. Extract the question text.
2. Extract all answer choices.
3. Identify which choice is the correct answer (if indicated in the image).

Format the output as JSON with this structure:
{
    "questions": [
        {
            "question_text": "The question text here",
            "choices": [
                {"choice_text": "Option A", "is_correct": false},
                {"choice_text": "Option B", "is_correct": true}
            ]
        }
    ]
}

If the correct answer is not marked in the image, make all "is_correct" values false.`

type OpenAIConfig struct {
	APIKey string
	// BaseURL overrides the API endpoint, mostly for tests and proxies.
	BaseURL   string
	Model     string
	MaxTokens int
}

// OpenAI extracts questions with a vision-capable chat model.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func NewOpenAI(c OpenAIConfig) *OpenAI {
	cc := openai.DefaultConfig(c.APIKey)
	if c.BaseURL != "" {
		cc.BaseURL = c.BaseURL
	}

	o := &OpenAI{
		client:    openai.NewClientWithConfig(cc),
		model:     c.Model,
		maxTokens: c.MaxTokens,
	}
	if o.model == "" {
		o.model = defaultModel
	}
	if o.maxTokens <= 0 {
		o.maxTokens = defaultMaxTokens
	}

	return o
}

func (o *OpenAI) Extract(ctx context.Context, jpeg []byte) ([]byte, error) {
	url := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: url}},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty response")
	}

	return cutJSON(resp.Choices[0].Message.Content)
}
