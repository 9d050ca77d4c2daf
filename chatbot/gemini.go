// Package chatbot answers shopper questions with Gemini.
package chatbot

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const assistantPrompt = `You are a helpful fashion assistant for Stylish Hub, an e-commerce store specializing in premium leather jackets, hoodies, pants, and fashion wear for men and women.

Your role:
- Help customers find the right products
- Provide styling advice
- Answer questions about sizing, materials, and care
- Suggest complementary items
- Assist with order-related queries
- Maintain a friendly, professional tone

Product Categories:
- Leather Jackets: Premium quality, various styles
- Hoodies: Comfortable, stylish casual wear
- Pants: Tailored fits, designer styles
- Women's Wear: Elegant, contemporary fashion
- Men's Wear: Sharp, sophisticated styles

Keep responses concise but helpful. If you don't know specific product details, acknowledge this and suggest browsing the product catalog.`

type GeminiResponder struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiResponder(ctx context.Context, apiKey, model string) (*GeminiResponder, error) {
	c, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	m := c.GenerativeModel(model)
	m.SystemInstruction = genai.NewUserContent(genai.Text(assistantPrompt))
	return &GeminiResponder{client: c, model: m}, nil
}

func (r *GeminiResponder) Respond(ctx context.Context, message string) (string, error) {
	resp, err := r.model.GenerateContent(ctx, genai.Text("Customer message: "+message))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return responseText(resp), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

func (r *GeminiResponder) Close() error {
	return r.client.Close()
}
