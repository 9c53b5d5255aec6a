package genai

import (
	"context"
	"fmt"

	"moodmate/internal/config"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	genaisdk "google.golang.org/genai"
)

// Client adapts a configured chat model to single-prompt generation. The
// model, generation parameters, and safety thresholds are fixed at startup.
type Client struct {
	chatModel model.BaseChatModel
}

// New builds the generative-text client for the provider selected in config.
func New(cfg *config.Config) (*Client, error) {
	provider := cfg.Chat.Provider
	provCfg, ok := cfg.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", provider)
	}

	var (
		chatModel model.BaseChatModel
		err       error
	)
	switch provider {
	case "gemini":
		client, cerr := genaisdk.NewClient(context.Background(), &genaisdk.ClientConfig{
			APIKey: provCfg.APIKey,
		})
		if cerr != nil {
			return nil, fmt.Errorf("new gemini client: %w", cerr)
		}
		chatModel, err = gemini.NewChatModel(context.Background(), &gemini.Config{
			Client:         client,
			Model:          provCfg.Model,
			MaxTokens:      intPtr(provCfg.MaxOutputTokens),
			Temperature:    provCfg.Temperature,
			TopP:           provCfg.TopP,
			TopK:           provCfg.TopK,
			SafetySettings: safetySettings(provCfg.BlockThreshold),
		})
	case "openai":
		chatModel, err = openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
			BaseURL:     provCfg.BaseURL,
			Model:       provCfg.Model,
			APIKey:      provCfg.APIKey,
			MaxTokens:   intPtr(provCfg.MaxOutputTokens),
			Temperature: provCfg.Temperature,
			TopP:        provCfg.TopP,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		maxTokens := provCfg.MaxOutputTokens
		if maxTokens <= 0 {
			maxTokens = 2048
		}
		chatModel, err = claude.NewChatModel(context.Background(), &claude.Config{
			APIKey:      provCfg.APIKey,
			Model:       provCfg.Model,
			BaseURL:     baseURLPtr,
			MaxTokens:   maxTokens,
			Temperature: provCfg.Temperature,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", provider, err)
	}
	return &Client{chatModel: chatModel}, nil
}

// Reply generates a single completion for the rendered prompt.
func (c *Client) Reply(ctx context.Context, prompt string) (string, error) {
	resp, err := c.chatModel.Generate(ctx, []*schema.Message{
		{Role: schema.User, Content: prompt},
	})
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	return resp.Content, nil
}

// The same threshold applies to every harm category, matching the upstream
// default surface.
func safetySettings(threshold string) []*genaisdk.SafetySetting {
	var block genaisdk.HarmBlockThreshold
	switch threshold {
	case "none":
		block = genaisdk.HarmBlockThresholdBlockNone
	case "low":
		block = genaisdk.HarmBlockThresholdBlockLowAndAbove
	case "high":
		block = genaisdk.HarmBlockThresholdBlockOnlyHigh
	default:
		block = genaisdk.HarmBlockThresholdBlockMediumAndAbove
	}
	categories := []genaisdk.HarmCategory{
		genaisdk.HarmCategoryHarassment,
		genaisdk.HarmCategoryHateSpeech,
		genaisdk.HarmCategorySexuallyExplicit,
		genaisdk.HarmCategoryDangerousContent,
	}
	settings := make([]*genaisdk.SafetySetting, 0, len(categories))
	for _, cat := range categories {
		settings = append(settings, &genaisdk.SafetySetting{Category: cat, Threshold: block})
	}
	return settings
}

func intPtr(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}
