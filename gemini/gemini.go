// Package gemini provides a dispatcher for Google's Gemini models.
package gemini

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const providerName = "gemini"

// Dispatcher sends generate requests to the Gemini API through the
// official genai SDK.
type Dispatcher struct {
	genaiClient *genai.Client
	modelName   string
	parameters  map[string]any
	debugMode   bool
}

// New creates a Gemini dispatcher. The context is used only for SDK client
// initialization (context.Background() is fine); no network request is
// made here. The parameters map holds the validated values resolved at
// construction time.
func New(ctx context.Context, apiKey, modelName string, parameters map[string]any, requestTimeoutSeconds int, debugMode bool) (*Dispatcher, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("gemini model name is required")
	}

	if requestTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(requestTimeoutSeconds)*time.Second)
		defer cancel()
	}

	genaiClient, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	if debugMode {
		log.Printf("Gemini dispatcher for model %s", modelName)
	}

	return &Dispatcher{
		genaiClient: genaiClient,
		modelName:   modelName,
		parameters:  parameters,
		debugMode:   debugMode,
	}, nil
}

// Dispatch sends the input to the Gemini model and returns the text
// response.
func (d *Dispatcher) Dispatch(ctx context.Context, input string) (string, error) {
	if d.genaiClient == nil {
		return "", fmt.Errorf("gemini dispatcher not initialized")
	}

	model := d.genaiClient.GenerativeModel(d.modelName)
	if model == nil {
		return "", fmt.Errorf("failed to get generative model: %s", d.modelName)
	}
	d.applyParameters(model)

	resp, err := model.GenerateContent(ctx, genai.Text(input))
	if err != nil {
		return "", fmt.Errorf("failed to generate content from Gemini: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
			return "", fmt.Errorf("gemini content generation blocked due to safety settings")
		}
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return "", fmt.Errorf("gemini prompt blocked: %s", resp.PromptFeedback.BlockReason.String())
		}
		return "", fmt.Errorf("gemini response was empty or malformed")
	}

	var resultText string
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			resultText += string(txt)
		} else if d.debugMode {
			log.Printf("Gemini dispatcher received non-text part: %T. Ignoring.", part)
		}
	}
	if resultText == "" {
		return "", fmt.Errorf("gemini response contained no usable text content")
	}

	return resultText, nil
}

// applyParameters maps the validated parameter set onto the SDK's
// generation config.
func (d *Dispatcher) applyParameters(model *genai.GenerativeModel) {
	if v, ok := d.parameters["temperature"].(float64); ok {
		model.SetTemperature(float32(v))
	}
	if v, ok := d.parameters["top_p"].(float64); ok {
		model.SetTopP(float32(v))
	}
	if v, ok := d.parameters["top_k"].(int); ok {
		model.SetTopK(int32(v))
	}
	if v, ok := d.parameters["max_tokens"].(int); ok {
		model.SetMaxOutputTokens(int32(v))
	}
}

// ProviderName returns the name of this provider.
func (d *Dispatcher) ProviderName() string {
	return providerName
}

// Close cleans up the underlying SDK client.
func (d *Dispatcher) Close() error {
	if d.genaiClient != nil {
		return d.genaiClient.Close()
	}
	return nil
}
