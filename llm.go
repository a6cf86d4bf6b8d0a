package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"
const defaultOpenAIModel = "gpt-4o-mini"

const llmSystemPrompt = "You are a helpful assistant that provides concise and accurate responses."

// fallbackRequirements is returned whenever requirement extraction fails.
const fallbackRequirements = "Unable to extract requirements"

type completeFunc func(systemPrompt, userPrompt string) (string, error)

// AIProcessor runs the four classification/drafting operations. Every
// operation is a single attempt against the configured provider and returns
// a safe default instead of an error on any failure. The complete field is
// swappable in tests.
type AIProcessor struct {
	cfg             Config
	knowledge       *KnowledgeIndex
	urgencyKeywords *UrgencyKeywords
	complete        completeFunc
}

func NewAIProcessor(cfg Config, knowledge *KnowledgeIndex) *AIProcessor {
	p := &AIProcessor{cfg: cfg, knowledge: knowledge}
	p.complete = p.completeChat
	if cfg.UrgencyKeywordsPath != "" {
		kw, err := LoadUrgencyKeywords(cfg.UrgencyKeywordsPath)
		if err != nil {
			log.Printf("llm urgency keywords skipped path=%s err=%v", cfg.UrgencyKeywordsPath, err)
		} else {
			p.urgencyKeywords = kw
		}
	}
	return p
}

func (p *AIProcessor) ClassifySentiment(text string) string {
	prompt := fmt.Sprintf(`Analyze the sentiment of the following text and classify it as Positive, Negative, or Neutral.
Provide only the classification as a single word.

Text: %s`, text)

	response, err := p.complete(llmSystemPrompt, prompt)
	if err != nil {
		log.Printf("llm sentiment error (defaulting to %s): %v", SentimentNeutral, err)
		return SentimentNeutral
	}

	switch sentiment := strings.ToLower(strings.TrimSpace(response)); {
	case strings.Contains(sentiment, "positive"):
		return SentimentPositive
	case strings.Contains(sentiment, "negative"):
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

func (p *AIProcessor) ClassifyUrgency(text string) string {
	if p.urgencyKeywords.Match(text) {
		return UrgencyUrgent
	}

	prompt := fmt.Sprintf(`Analyze the following email text and determine if it's urgent or not urgent.
Consider keywords like 'immediately', 'critical', 'cannot access', 'urgent', 'emergency', etc.
Provide only the classification as either 'Urgent' or 'Not urgent'.

Text: %s`, text)

	response, err := p.complete(llmSystemPrompt, prompt)
	if err != nil {
		log.Printf("llm urgency error (defaulting to %s): %v", UrgencyNotUrgent, err)
		return UrgencyNotUrgent
	}

	urgency := strings.ToLower(strings.TrimSpace(response))
	if strings.Contains(urgency, "not urgent") {
		return UrgencyNotUrgent
	}
	if strings.Contains(urgency, "urgent") {
		return UrgencyUrgent
	}
	return UrgencyNotUrgent
}

func (p *AIProcessor) ExtractRequirements(text string) string {
	prompt := fmt.Sprintf(`Extract the key requirements, requests, or issues mentioned in the following email text.
Provide a concise summary of what the customer needs.

Text: %s`, text)

	response, err := p.complete(llmSystemPrompt, prompt)
	if err != nil {
		log.Printf("llm requirements error (using fallback): %v", err)
		return fallbackRequirements
	}
	return strings.TrimSpace(response)
}

// DraftResponse composes a reply draft for a classified email, folding in
// knowledge-base entries relevant to the body. A failed call returns an
// error-description string so the draft slot is visibly broken on the
// dashboard instead of silently empty.
func (p *AIProcessor) DraftResponse(e Email) string {
	knowledgeStr := "No relevant knowledge found."
	if relevant := p.knowledge.Retrieve(e.Body, 3); len(relevant) > 0 {
		knowledgeStr = strings.Join(relevant, "\n")
	}

	prompt := fmt.Sprintf(`You are a customer support representative. Draft a professional and friendly response to the following email.
Acknowledge the customer's sentiment and address their concerns appropriately.

Use the following knowledge base information if relevant:
%s

Sender: %s
Subject: %s
Email Content: %s
Sentiment: %s
Urgency: %s
Key Requirements: %s

Provide only the response text without any additional formatting or explanations.`,
		knowledgeStr, e.Sender, e.Subject, e.Body, e.Sentiment, e.Urgency, e.Requirements)

	response, err := p.complete(llmSystemPrompt, prompt)
	if err != nil {
		log.Printf("llm draft error: %v", err)
		return fmt.Sprintf("Error generating response: %v", err)
	}
	return strings.TrimSpace(response)
}

func (p *AIProcessor) completeChat(systemPrompt, userPrompt string) (string, error) {
	switch p.cfg.LLMProvider {
	case "openai":
		model := p.cfg.LLMModel
		if model == "" {
			model = defaultOpenAIModel
		}
		return callOpenAI(p.cfg, model, systemPrompt, userPrompt)
	default:
		model := p.cfg.LLMModel
		if model == "" {
			model = defaultAnthropicModel
		}
		return callAnthropic(p.cfg, model, systemPrompt, userPrompt)
	}
}

// --- Anthropic ---

func callAnthropic(cfg Config, model, systemPrompt, userPrompt string) (string, error) {
	client := anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))

	message, err := client.Messages.New(context.Background(), anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(cfg.LLMMaxTokens),
		Temperature: anthropic.Float(cfg.LLMTemperature),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("Anthropic API error: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Printf("llm anthropic response size=%d tokens_in=%d tokens_out=%d", len(block.Text), message.Usage.InputTokens, message.Usage.OutputTokens)
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in Anthropic response")
}

// --- OpenAI ---

const llmHTTPTimeout = 60 * time.Second

var llmHTTPClient = &http.Client{
	Timeout: llmHTTPTimeout,
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func callOpenAI(cfg Config, model, systemPrompt, userPrompt string) (string, error) {
	reqBody := openAIRequest{
		Model: model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequest("POST", "https://api.openai.com/v1/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.OpenAIAPIKey)

	resp, err := llmHTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OpenAI API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var openAIResp openAIResponse
	if err := json.Unmarshal(respBody, &openAIResp); err != nil {
		return "", fmt.Errorf("parsing OpenAI response: %w", err)
	}
	if openAIResp.Error != nil {
		return "", fmt.Errorf("OpenAI API error: %s", openAIResp.Error.Message)
	}
	if len(openAIResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in OpenAI response")
	}

	log.Printf("llm openai response size=%d", len(openAIResp.Choices[0].Message.Content))
	return openAIResp.Choices[0].Message.Content, nil
}
