package llm

import "context"

// ImageMetadata contains the structured metadata suggested for one image.
type ImageMetadata struct {
	Filename    string   `json:"filename"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Usage contains token usage and cost information.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64
}

// AnalysisResult contains the suggested metadata and usage information.
type AnalysisResult struct {
	Metadata *ImageMetadata
	Usage    Usage
}

// Analyzer can analyze an image and suggest descriptive metadata for it.
type Analyzer interface {
	AnalyzeImage(ctx context.Context, imageData []byte, mimeType string) (*AnalysisResult, error)
}
