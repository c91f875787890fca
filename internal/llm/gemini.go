package llm

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/metamate-app/metamate/internal/config"
	"github.com/metamate-app/metamate/internal/db"
)

// GeminiClient handles Gemini API operations
type GeminiClient struct {
	client      *genai.Client
	model       *genai.GenerativeModel
	answerModel *genai.GenerativeModel
	prompts     *PromptBuilder
	db          *db.DB
	modelName   string
	limiter     *rate.Limiter
	cacheTTL    time.Duration
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(cfg *config.Gemini, database *db.DB) (*GeminiClient, error) {
	ctx := context.Background()

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	// Low temperature for classification and extraction
	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(cfg.Temperature)
	model.SetTopK(40)
	model.SetTopP(0.95)
	model.SetMaxOutputTokens(int32(cfg.MaxTokens))

	// Higher temperature for visitor-facing answers so the twin doesn't
	// sound canned
	answerModel := client.GenerativeModel(cfg.Model)
	answerModel.SetTemperature(cfg.AnswerTemperature)
	answerModel.SetTopK(40)
	answerModel.SetTopP(0.95)
	answerModel.SetMaxOutputTokens(int32(cfg.AnswerMaxTokens))

	return &GeminiClient{
		client:      client,
		model:       model,
		answerModel: answerModel,
		prompts:     NewPromptBuilder(),
		db:          database,
		modelName:   cfg.Model,
		limiter:     rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMin)/60.0), cfg.RequestsPerMin),
		cacheTTL:    time.Duration(cfg.CacheHours) * time.Hour,
	}, nil
}

// Close closes the Gemini client
func (g *GeminiClient) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// DetectTask classifies a visitor message as a task/meeting request
func (g *GeminiClient) DetectTask(ctx context.Context, question, conversationContext string) (*TaskDetection, error) {
	prompt := g.prompts.BuildTaskDetection(question, conversationContext)

	startTime := time.Now()
	text, err := g.generate(ctx, g.model, prompt)
	if err != nil {
		g.db.LogUsage("gemini", "detect_task", 0, 0, time.Since(startTime), err)
		return nil, fmt.Errorf("failed to classify message: %w", err)
	}

	tokens := g.estimateTokens(prompt + text)
	g.db.LogUsage("gemini", "detect_task", tokens, g.calculateCost(tokens), time.Since(startTime), nil)

	return parseDetection(text, question), nil
}

// parseDetection interprets the YES/NO classifier response.
func parseDetection(response, question string) *TaskDetection {
	trimmed := strings.TrimSpace(response)
	upper := strings.ToUpper(trimmed)

	detection := &TaskDetection{
		URLs: ExtractURLs(question),
	}

	if !strings.HasPrefix(upper, "YES") {
		return detection
	}
	detection.IsTask = true

	// Condensed description is everything after the YES line
	if idx := strings.Index(trimmed, "\n"); idx != -1 {
		detection.TaskDescription = strings.TrimSpace(trimmed[idx+1:])
	}
	if detection.TaskDescription == "" {
		detection.TaskDescription = question
	}

	// The classifier sometimes replaces URLs with placeholder text. Restore
	// any URL from the original message that went missing.
	var dropped []string
	for _, u := range detection.URLs {
		if !strings.Contains(detection.TaskDescription, u) {
			dropped = append(dropped, u)
		}
	}
	if len(dropped) > 0 {
		detection.TaskDescription += " - Links: " + strings.Join(dropped, " ")
	}

	lowerResp := strings.ToLower(response)
	lowerQ := strings.ToLower(question)
	if strings.Contains(lowerResp, "meeting") || strings.Contains(lowerResp, "call") ||
		strings.Contains(lowerQ, "meet") || strings.Contains(lowerQ, "call") {
		detection.IsMeetingRequest = true
		detection.RequireConfirmation = true
	}

	return detection
}

// ExtractMeetingDetails pulls structured date/time/duration out of free text
func (g *GeminiClient) ExtractMeetingDetails(ctx context.Context, text string, now time.Time) *MeetingDetails {
	prompt := g.prompts.BuildMeetingExtraction(text, now)

	startTime := time.Now()
	response, err := g.generate(ctx, g.model, prompt)
	if err != nil {
		g.db.LogUsage("gemini", "extract_meeting", 0, 0, time.Since(startTime), err)
		log.Printf("Meeting extraction failed, parsing message directly: %v", err)
		return ParseMeetingResponse("", text, now)
	}

	tokens := g.estimateTokens(prompt + response)
	g.db.LogUsage("gemini", "extract_meeting", tokens, g.calculateCost(tokens), time.Since(startTime), nil)

	return ParseMeetingResponse(response, text, now)
}

// ExtractTopic condenses the recent conversation into a short topic line
func (g *GeminiClient) ExtractTopic(ctx context.Context, history, question string) (string, error) {
	urls := ExtractURLs(question)
	prompt := g.prompts.BuildTopicExtraction(history, question, urls)

	// Check cache
	hash := g.hashPrompt(prompt)
	cached, err := g.db.GetCachedResponse(hash)
	if err == nil && cached != nil {
		return cached.Response, nil
	}

	startTime := time.Now()
	topic, err := g.generate(ctx, g.model, prompt)
	if err != nil {
		g.db.LogUsage("gemini", "extract_topic", 0, 0, time.Since(startTime), err)
		return "", fmt.Errorf("failed to extract topic: %w", err)
	}
	topic = strings.TrimSpace(topic)

	tokens := g.estimateTokens(prompt + topic)
	g.db.LogUsage("gemini", "extract_topic", tokens, g.calculateCost(tokens), time.Since(startTime), nil)

	g.db.SaveCachedResponse(&db.LLMCache{
		Hash:      hash,
		Prompt:    prompt,
		Response:  topic,
		Model:     g.modelName,
		Tokens:    tokens,
		ExpiresAt: time.Now().Add(g.cacheTTL),
	})

	return topic, nil
}

// Answer generates a grounded reply as the owner's digital twin
func (g *GeminiClient) Answer(ctx context.Context, req *AnswerRequest) (string, error) {
	prompt := g.prompts.BuildAnswer(req)

	// Check cache
	hash := g.hashPrompt(prompt)
	cached, err := g.db.GetCachedResponse(hash)
	if err == nil && cached != nil {
		log.Printf("Using cached answer for %s", req.Owner.Username)
		return cached.Response, nil
	}

	startTime := time.Now()
	answer, err := g.generate(ctx, g.answerModel, prompt)
	if err != nil {
		g.db.LogUsage("gemini", "answer", 0, 0, time.Since(startTime), err)
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}
	answer = strings.TrimSpace(answer)

	tokens := g.estimateTokens(prompt + answer)
	g.db.LogUsage("gemini", "answer", tokens, g.calculateCost(tokens), time.Since(startTime), nil)

	g.db.SaveCachedResponse(&db.LLMCache{
		Hash:      hash,
		Prompt:    prompt,
		Response:  answer,
		Model:     g.modelName,
		Tokens:    tokens,
		ExpiresAt: time.Now().Add(g.cacheTTL),
	})

	return answer, nil
}

// generate runs one rate-limited model call and returns the response text
func (g *GeminiClient) generate(ctx context.Context, model *genai.GenerativeModel, prompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	text := g.extractText(resp)
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}

// extractText extracts text from Gemini response
func (g *GeminiClient) extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder

	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			text.WriteString(fmt.Sprintf("%v", part))
		}
	}

	return text.String()
}

// hashPrompt generates a hash for caching
func (g *GeminiClient) hashPrompt(prompt string) string {
	h := sha256.New()
	h.Write([]byte(prompt))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// estimateTokens estimates token count (rough approximation)
func (g *GeminiClient) estimateTokens(text string) int {
	// Rough estimate: 1 token ~= 4 characters
	return len(text) / 4
}

// calculateCost calculates API cost (Gemini 2.5 Flash pricing)
func (g *GeminiClient) calculateCost(tokens int) float64 {
	costPerToken := 0.0000003 // $0.30 per 1M tokens blended
	return float64(tokens) * costPerToken
}
