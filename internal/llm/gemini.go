package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/lithammer/dedent"
	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"google.golang.org/genai"
)

const geminiModel = "gemini-3-flash-preview"

// Gemini pricing (per million tokens)
const (
	geminiInputPricePerMillion  = 0.50 // $0.50 per 1M input tokens (text/image/video)
	geminiOutputPricePerMillion = 3.00 // $3.00 per 1M output tokens (including thinking)
)

var geminiPrompt = strings.TrimSpace(dedent.Dedent(`
	Analyze this game art asset and suggest descriptive metadata for it.

	Respond in JSON format with these fields:
	- filename: a kebab-case filename suggestion without extension (e.g. "female-elf-archer")
	- title: a short, descriptive title for the asset
	- description: a production-oriented description covering the subject's appearance, the environment, and any props (2-3 sentences)
	- tags: a comprehensive list of tags covering subject type, character specifics, environment, props, art style, composition and color

	Respond ONLY with the JSON object, no markdown or other text.`))

// metadataResponseSchema constrains Gemini's output to the four required
// fields with tags as a string array.
var metadataResponseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"filename": {
			Type:        genai.TypeString,
			Description: "Kebab-case filename suggestion without extension",
		},
		"title": {
			Type:        genai.TypeString,
			Description: "Short descriptive title",
		},
		"description": {
			Type:        genai.TypeString,
			Description: "Production-oriented description of subject, environment and props",
		},
		"tags": {
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
	},
	Required:         []string{"filename", "title", "description", "tags"},
	PropertyOrdering: []string{"filename", "title", "description", "tags"},
}

// replySchema validates the response body locally. The service is asked for
// the same shape, but a malformed or incomplete reply must still be caught
// on our side and classified.
var replySchema = jsonschema.MustCompileString("metadata-reply.json", `{
	"type": "object",
	"required": ["filename", "title", "description", "tags"],
	"properties": {
		"filename": {"type": "string"},
		"title": {"type": "string"},
		"description": {"type": "string"},
		"tags": {"type": "array", "items": {"type": "string"}}
	}
}`)

// GeminiAnalyzer uses Google's Gemini API to suggest image metadata.
type GeminiAnalyzer struct {
	client *genai.Client
}

// NewGeminiAnalyzer creates a new Gemini-based analyzer.
// It uses the GEMINI_API_KEY environment variable for authentication.
func NewGeminiAnalyzer(ctx context.Context) (*GeminiAnalyzer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: os.Getenv("GEMINI_API_KEY"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiAnalyzer{client: client}, nil
}

// AnalyzeImage implements the Analyzer interface using Gemini structured
// output with near-deterministic generation.
func (g *GeminiAnalyzer) AnalyzeImage(ctx context.Context, imageData []byte, mimeType string) (*AnalysisResult, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(geminiPrompt),
		{InlineData: &genai.Blob{Data: imageData, MIMEType: mimeType}},
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   metadataResponseSchema,
		Temperature:      genai.Ptr(float32(0.1)),
	}

	result, err := g.client.Models.GenerateContent(ctx, geminiModel, contents, config)
	if err != nil {
		return nil, transportErr(fmt.Errorf("failed to generate content: %w", err))
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, transportErr(fmt.Errorf("no response from Gemini"))
	}

	md, err := decodeMetadata(result.Text())
	if err != nil {
		return nil, err
	}

	// Calculate usage and cost
	usage := Usage{}
	if result.UsageMetadata != nil {
		usage.InputTokens = int64(result.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int64(result.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int64(result.UsageMetadata.TotalTokenCount)
		usage.CostUSD = calculateGeminiCost(usage.InputTokens, usage.OutputTokens)
	}

	log.Info().
		Str("model", geminiModel).
		Str("filename", md.Filename).
		Int("tags", len(md.Tags)).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Msg("metadata llm call")

	return &AnalysisResult{Metadata: md, Usage: usage}, nil
}

func calculateGeminiCost(inputTokens, outputTokens int64) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * geminiInputPricePerMillion
	outputCost := float64(outputTokens) / 1_000_000 * geminiOutputPricePerMillion
	return inputCost + outputCost
}

// decodeMetadata parses and validates a response body, then normalizes the
// suggested filename.
func decodeMetadata(text string) (*ImageMetadata, error) {
	// Clean up the response - remove markdown code blocks if present
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var raw any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, parseErr(fmt.Errorf("response is not valid JSON: %w (response: %s)", err, text))
	}
	if err := replySchema.Validate(raw); err != nil {
		return nil, shapeErr(fmt.Errorf("response does not match metadata schema: %w", err))
	}

	var md ImageMetadata
	if err := json.Unmarshal([]byte(text), &md); err != nil {
		return nil, parseErr(fmt.Errorf("failed to decode metadata: %w", err))
	}

	md.Filename = NormalizeFilename(md.Filename)
	return &md, nil
}

var (
	whitespaceRe   = regexp.MustCompile(`\s+`)
	invalidCharsRe = regexp.MustCompile(`[^a-z0-9-]`)
	multiHyphenRe  = regexp.MustCompile(`-{2,}`)
)

// NormalizeFilename turns a suggested filename into a safe kebab-case name:
// lowercased, backticks stripped, whitespace runs collapsed to single
// hyphens, everything outside [a-z0-9-] removed and repeated hyphens
// collapsed. Normalization is idempotent.
func NormalizeFilename(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "`", "")
	name = whitespaceRe.ReplaceAllString(name, "-")
	name = invalidCharsRe.ReplaceAllString(name, "")
	name = multiHyphenRe.ReplaceAllString(name, "-")
	return strings.Trim(name, "-")
}
