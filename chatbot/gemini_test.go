package chatbot

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
)

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: nil},
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("Try the "), genai.Text("biker jacket. ")}}},
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("ignored")}}},
		},
	}
	assert.Equal(t, "Try the biker jacket.", responseText(resp))
}

func TestResponseTextEmpty(t *testing.T) {
	assert.Empty(t, responseText(&genai.GenerateContentResponse{}))
}
