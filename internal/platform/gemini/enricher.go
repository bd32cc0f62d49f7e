package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Config holds the Gemini enricher settings.
type Config struct {
	// APIKey authenticates against the Gemini API.
	APIKey string

	// ModelName selects the model, e.g. "gemini-2.0-flash".
	ModelName string

	// MaxRetries bounds retry attempts for transient API failures.
	MaxRetries int

	// RetryDelaySeconds is the base delay for exponential backoff.
	RetryDelaySeconds int
}

// generateFunc issues one model call and returns the raw response text.
// Swappable so tests can run without a live client.
type generateFunc func(ctx context.Context, prompt string) (string, error)

// Enricher implements task.Enricher over the Gemini API.
type Enricher struct {
	logger   *slog.Logger
	config   Config
	client   *genai.Client
	generate generateFunc
	rng      *rand.Rand
}

// NewEnricher creates an Enricher backed by a live Gemini client.
func NewEnricher(ctx context.Context, logger *slog.Logger, config Config) (*Enricher, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: API key cannot be empty", ErrInvalidConfig)
	}
	if config.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", ErrInvalidConfig, err)
	}

	e := &Enricher{
		logger: logger,
		config: config,
		client: client,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	e.generate = e.callModel
	return e, nil
}

// callModel issues one GenerateContent call and extracts the text.
func (e *Enricher) callModel(ctx context.Context, prompt string) (string, error) {
	resp, err := e.client.Models.GenerateContent(ctx, e.config.ModelName, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no content generated", ErrInvalidResponse)
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: finish reason safety", ErrContentBlocked)
	}
	return resp.Text(), nil
}

// TranslateTitlesBatch implements task.Enricher.
func (e *Enricher) TranslateTitlesBatch(ctx context.Context, titles []string) ([]string, error) {
	if len(titles) == 0 {
		return []string{}, nil
	}

	prompt, err := buildPrompt(translateInstruction, titles)
	if err != nil {
		return nil, err
	}

	results, err := e.callBatch(ctx, prompt, len(titles))
	if err != nil {
		return nil, fmt.Errorf("failed to translate titles: %w", err)
	}
	return results, nil
}

// SummarizeContentBatch implements task.Enricher.
func (e *Enricher) SummarizeContentBatch(ctx context.Context, texts []string, maxLen int) ([]string, error) {
	if len(texts) == 0 {
		return []string{}, nil
	}

	truncated := make([]string, len(texts))
	for i, text := range texts {
		truncated[i] = truncate(text, maxInputChars)
	}

	prompt, err := buildPrompt(fmt.Sprintf(summarizeContentInstruction, maxLen), truncated)
	if err != nil {
		return nil, err
	}

	results, err := e.callBatch(ctx, prompt, len(texts))
	if err != nil {
		return nil, fmt.Errorf("failed to summarize contents: %w", err)
	}
	return results, nil
}

// SummarizeCommentsBatch implements task.Enricher.
func (e *Enricher) SummarizeCommentsBatch(ctx context.Context, commentBatches [][]string, maxLen int) ([]string, error) {
	if len(commentBatches) == 0 {
		return []string{}, nil
	}

	// Flatten each story's comments into one text block. Stories with no
	// comments stay empty and are sentinel-mapped without asking the model.
	threads := make([]string, len(commentBatches))
	for i, comments := range commentBatches {
		threads[i] = truncate(strings.Join(comments, "\n---\n"), maxInputChars)
	}

	prompt, err := buildPrompt(fmt.Sprintf(summarizeCommentsInstruction, maxLen), threads)
	if err != nil {
		return nil, err
	}

	results, err := e.callBatch(ctx, prompt, len(commentBatches))
	if err != nil {
		return nil, fmt.Errorf("failed to summarize comments: %w", err)
	}

	for i, comments := range commentBatches {
		if len(comments) == 0 {
			results[i] = ""
		}
	}
	return results, nil
}

// callBatch runs one retried model call and aligns the decoded array to
// exactly n entries. A short response is padded with the empty sentinel
// and an overlong one truncated: alignment is this boundary's contract,
// and a partial translation is more useful than a failed batch.
func (e *Enricher) callBatch(ctx context.Context, prompt string, n int) ([]string, error) {
	raw, err := e.callWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}

	decoded, err := decodeArray(raw)
	if err != nil {
		return nil, err
	}

	if len(decoded) != n {
		e.logger.WarnContext(ctx, "model returned misaligned array, padding to input length",
			slog.Int("got", len(decoded)),
			slog.Int("want", n))
	}

	results := make([]string, n)
	for i := 0; i < n && i < len(decoded); i++ {
		results[i] = strings.TrimSpace(decoded[i])
	}
	return results, nil
}

// callWithRetry calls the model with exponential backoff and jitter.
// Permanent errors (blocked content, malformed responses) are returned
// immediately; transient API errors are retried up to MaxRetries times.
func (e *Enricher) callWithRetry(ctx context.Context, prompt string) (string, error) {
	maxRetries := e.config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 3
	}
	baseDelaySeconds := e.config.RetryDelaySeconds
	if baseDelaySeconds < 1 {
		baseDelaySeconds = 2
	}

	for attempt := 0; ; attempt++ {
		raw, err := e.generate(ctx, prompt)
		if err == nil {
			return raw, nil
		}

		if errors.Is(err, ErrContentBlocked) || errors.Is(err, ErrInvalidResponse) {
			return "", err
		}

		e.logger.WarnContext(ctx, "Gemini API call failed",
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()))

		if attempt >= maxRetries {
			return "", fmt.Errorf("%w: exceeded %d retry attempts: %v",
				ErrTransientFailure, maxRetries, err)
		}

		// delay = baseDelay * 2^attempt * (0.5 + rand(0, 0.5))
		backoff := float64(baseDelaySeconds) * math.Pow(2, float64(attempt))
		jitter := 0.5 + e.rng.Float64()*0.5
		delay := time.Duration(backoff * jitter * float64(time.Second))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", ErrTransientFailure, ctx.Err())
		}
	}
}

const maxInputChars = 8000

const translateInstruction = `Translate each of the following titles to Simplified Chinese.
Keep technical terms, product names and acronyms in their original form.
Respond with ONLY a JSON array of strings, one translated title per input, in input order.
Use an empty string for any title you cannot translate.`

const summarizeContentInstruction = `Summarize each of the following article texts in Simplified Chinese, at most %d characters each.
Respond with ONLY a JSON array of strings, one summary per input, in input order.
Use an empty string for any text you cannot summarize.`

const summarizeCommentsInstruction = `Each of the following entries is a discussion thread, comments separated by "---".
Summarize the main viewpoints of each thread in Simplified Chinese, at most %d characters each.
Respond with ONLY a JSON array of strings, one summary per input, in input order.
Use an empty string for any empty or unusable thread.`

// buildPrompt combines the instruction with a JSON-encoded input array.
func buildPrompt(instruction string, inputs []string) (string, error) {
	encoded, err := json.Marshal(inputs)
	if err != nil {
		return "", fmt.Errorf("failed to encode prompt inputs: %w", err)
	}
	return instruction + "\n\nInput:\n" + string(encoded), nil
}

// decodeArray extracts the JSON string array from the model's response,
// tolerating markdown code fences around it.
func decodeArray(raw string) ([]string, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var decoded []string
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return nil, fmt.Errorf("%w: not a JSON string array: %v", ErrInvalidResponse, err)
	}
	return decoded, nil
}

// truncate bounds a string to max characters on a rune boundary.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
