package extraction

import (
	"context"
	"log/slog"
)

// Scholar is an extracted person
type Scholar struct {
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
}

// Institution is an extracted organization
type Institution struct {
	Name string `json:"name"`
}

// Paper is an extracted publication
type Paper struct {
	Title string `json:"title"`
}

// Relationship links two extracted entities by name
type Relationship struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// Entities is the extraction result returned by POST /query
type Entities struct {
	Scholars      []Scholar      `json:"scholars"`
	Institutions  []Institution  `json:"institutions"`
	Papers        []Paper        `json:"papers"`
	Relationships []Relationship `json:"relationships"`
}

// Extractor turns free text into graph entities.
//
// The model-backed implementation is not built yet; Extract returns a fixed
// sample so the endpoint and its clients can be exercised end to end.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates the placeholder extractor
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger.With("component", "extraction")}
}

// Extract returns the sample entities regardless of text
func (e *Extractor) Extract(_ context.Context, text string) Entities {
	e.logger.Info("extracting entities", "text_preview", preview(text, 30))

	return Entities{
		Scholars:     []Scholar{{Name: "Li Hua", Title: "Professor"}},
		Institutions: []Institution{{Name: "Peking University"}},
		Papers:       []Paper{{Title: "Applications of Graph Databases in Research Networks"}},
		Relationships: []Relationship{
			{Source: "Li Hua", Target: "Peking University", Type: "AFFILIATED_WITH"},
			{Source: "Li Hua", Target: "Applications of Graph Databases in Research Networks", Type: "AUTHOR_OF"},
		},
	}
}

// preview returns the first n runes of s
func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
