package gemini

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"

	"github.com/hirelinehq/hireline/internal/ai"
)

type generateCall struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

type fakeModels struct {
	generateCalls []generateCall
	generateResp  *genai.GenerateContentResponse
	generateErr   error

	embedModel string
	embedResp  *genai.EmbedContentResponse
	embedErr   error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.generateCalls = append(f.generateCalls, generateCall{model: model, contents: contents, config: config})
	return f.generateResp, f.generateErr
}

func (f *fakeModels) EmbedContent(_ context.Context, model string, _ []*genai.Content, _ *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.embedModel = model
	return f.embedResp, f.embedErr
}

func textResponse(texts ...string) *genai.GenerateContentResponse {
	parts := make([]*genai.Part, 0, len(texts))
	for _, text := range texts {
		parts = append(parts, &genai.Part{Text: text})
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: parts},
		}},
	}
}

func TestCompleteMapsRolesAndConfig(t *testing.T) {
	fake := &fakeModels{generateResp: textResponse("hello!")}
	c := &Client{models: fake, modelName: "gemini-2.5-pro"}

	messages := []ai.Message{
		{Role: ai.RoleUser, Content: "hi"},
		{Role: ai.RoleAssistant, Content: "hey, how can i help?"},
		{Role: ai.RoleUser, Content: "   "},
		{Role: ai.RoleUser, Content: "any jobs?"},
	}

	output, err := c.Complete(context.Background(), "be brief", messages, 1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output != "hello!" {
		t.Fatalf("unexpected output: %q", output)
	}

	if len(fake.generateCalls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(fake.generateCalls))
	}
	call := fake.generateCalls[0]
	if call.model != "gemini-2.5-pro" {
		t.Fatalf("unexpected model: %q", call.model)
	}

	// The blank turn must be filtered out.
	if len(call.contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(call.contents))
	}
	wantRoles := []string{"user", "model", "user"}
	for i, content := range call.contents {
		if string(content.Role) != wantRoles[i] {
			t.Fatalf("content %d role = %q, want %q", i, content.Role, wantRoles[i])
		}
	}

	if call.config == nil || call.config.SystemInstruction == nil {
		t.Fatal("expected system instruction to be set")
	}
	if got := call.config.SystemInstruction.Parts[0].Text; got != "be brief" {
		t.Fatalf("unexpected system instruction: %q", got)
	}
	if call.config.MaxOutputTokens != 1024 {
		t.Fatalf("unexpected max tokens: %d", call.config.MaxOutputTokens)
	}
}

func TestCompleteRejectsEmptyHistory(t *testing.T) {
	c := &Client{models: &fakeModels{}, modelName: "m"}

	_, err := c.Complete(context.Background(), "sys", []ai.Message{{Role: ai.RoleUser, Content: "  "}}, 0)
	if err == nil {
		t.Fatal("expected error for all-blank history")
	}
}

func TestCompletePropagatesAPIError(t *testing.T) {
	fake := &fakeModels{generateErr: errors.New("backend down")}
	c := &Client{models: fake, modelName: "m"}

	_, err := c.Complete(context.Background(), "", []ai.Message{{Role: ai.RoleUser, Content: "hi"}}, 0)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestGenerateContentJoinsParts(t *testing.T) {
	fake := &fakeModels{generateResp: textResponse("first", "  ", "second")}
	c := &Client{models: fake, modelName: "m"}

	output, err := c.GenerateContent(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output != "first\nsecond" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestGenerateContentEmptyResponse(t *testing.T) {
	fake := &fakeModels{generateResp: &genai.GenerateContentResponse{}}
	c := &Client{models: fake, modelName: "m"}

	if _, err := c.GenerateContent(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestGenerateContentRequiresPrompt(t *testing.T) {
	c := &Client{models: &fakeModels{}, modelName: "m"}

	if _, err := c.GenerateContent(context.Background(), "   "); err == nil {
		t.Fatal("expected error for blank prompt")
	}
}

func TestEmbed(t *testing.T) {
	fake := &fakeModels{embedResp: &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: []float32{0.1, 0.2, 0.3}}},
	}}
	c := &Client{models: fake, modelName: "m", embedModel: "embed-model"}

	vec, err := c.Embed(context.Background(), "warehouse work")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Fatalf("unexpected vector: %v", vec)
	}
	if fake.embedModel != "embed-model" {
		t.Fatalf("unexpected embed model: %q", fake.embedModel)
	}
}

func TestEmbedEmptyVector(t *testing.T) {
	fake := &fakeModels{embedResp: &genai.EmbedContentResponse{}}
	c := &Client{models: fake, modelName: "m", embedModel: "e"}

	if _, err := c.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected error for empty embedding")
	}
}
