// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/docsift/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	answerSystemPrompt = `You answer questions about a small collection of documents.
Use only the numbered excerpts provided by the user. If the excerpts do not
contain the answer, reply with exactly: I don't know.
Keep the answer under 120 words.`

	// maxContextRunes bounds each excerpt sent to the model.
	maxContextRunes = 2000
)

// Answerer implements ai.Answerer using OpenAI-compatible chat APIs.
type Answerer struct {
	client llms.Model
	logger *slog.Logger
}

// newAnswerer is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newAnswerer(config *ai.Config) (*Answerer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.AnswerHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.AnswerModel),
	)
	if err != nil {
		return nil, err
	}

	return &Answerer{
		client: client,
		logger: slog.Default().With("component", "openai-answerer"),
	}, nil
}

// NewAnswerer creates a new answerer using the provided configuration.
//
// Returns ai.Answerer interface to enforce abstraction.
func NewAnswerer(config *ai.Config) (ai.Answerer, error) {
	return newAnswerer(config)
}

// Answer asks the chat model to answer query using only contexts.
func (a *Answerer) Answer(ctx context.Context, query string, contexts []string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" || len(contexts) == 0 {
		return "", nil
	}

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(answerSystemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(buildAnswerPrompt(query, contexts))},
		},
	}

	response, err := a.client.GenerateContent(ctx, content, llms.WithTemperature(0.0))
	if err != nil {
		a.logger.Error("failed to generate answer", "err", err)
		return "", err
	}

	if len(response.Choices) < 1 {
		a.logger.Debug("no choices returned from model")
		return "", nil
	}

	answer := strings.TrimSpace(response.Choices[0].Content)
	if strings.EqualFold(answer, "I don't know.") {
		return "", nil
	}
	return answer, nil
}

// buildAnswerPrompt numbers each excerpt and appends the question.
func buildAnswerPrompt(query string, contexts []string) string {
	var b strings.Builder
	for i, c := range contexts {
		r := []rune(strings.TrimSpace(c))
		if len(r) > maxContextRunes {
			r = r[:maxContextRunes]
		}
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, string(r))
	}
	fmt.Fprintf(&b, "Question: %s", query)
	return b.String()
}
