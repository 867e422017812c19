// Package gemini provides a Google Gemini generateContent client that spreads
// requests over a pool of API keys and fails over between them.
package gemini

import (
	"fmt"
	"net/http"
	"strings"
)

// Model constants for Gemini models
const (
	// ModelGemini25FlashPreview is the default model for page extraction and explanations
	ModelGemini25FlashPreview = "gemini-2.5-flash-preview-09-2025"
	// ModelGemini25Flash is the stable flash model
	ModelGemini25Flash = "gemini-2.5-flash"
	// ModelGemini25Pro is Gemini 2.5 Pro for complex reasoning
	ModelGemini25Pro = "gemini-2.5-pro"
)

// SupportedImageTypes lists the page image extensions picked up from a folder
var SupportedImageTypes = []string{".jpg"}

// Image is an inline image payload attached to a prompt
type Image struct {
	MIMEType string
	Data     []byte
}

// APIError represents an error status from the Gemini API
type APIError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Details != "" {
		return fmt.Sprintf("API error [%d]: %s: %s", e.StatusCode, msg, e.Details)
	}
	return fmt.Sprintf("API error [%d]: %s", e.StatusCode, msg)
}

// IsRateLimited reports whether the API rejected the call with 429
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// GenerateContentRequest is the request structure for the Gemini API
type GenerateContentRequest struct {
	Contents []*Content `json:"contents"`
}

// Content represents a content block in the API
type Content struct {
	Role  string  `json:"role,omitempty"`
	Parts []*Part `json:"parts"`
}

// Part represents a part of content (text or inline data)
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData represents binary data (images) inline
type InlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // Base64 encoded
}

// GenerateContentResponse is the response from the Gemini API
type GenerateContentResponse struct {
	Candidates    []*Candidate   `json:"candidates"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
}

// Candidate represents a generated response candidate
type Candidate struct {
	Content      *Content `json:"content"`
	FinishReason string   `json:"finishReason"`
}

// UsageMetadata contains token usage information
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// FinishReason returns why the first candidate stopped, or ""
func (r *GenerateContentResponse) FinishReason() string {
	if r == nil || len(r.Candidates) == 0 || r.Candidates[0] == nil {
		return ""
	}
	return r.Candidates[0].FinishReason
}

// Text returns the trimmed text of the first candidate's first part, or ""
func (r *GenerateContentResponse) Text() string {
	if r == nil || len(r.Candidates) == 0 {
		return ""
	}
	c := r.Candidates[0]
	if c == nil || c.Content == nil || len(c.Content.Parts) == 0 || c.Content.Parts[0] == nil {
		return ""
	}
	return strings.TrimSpace(c.Content.Parts[0].Text)
}
