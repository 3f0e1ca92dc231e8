// Package llm is the single gateway through which the pipeline reaches a
// language model. It normalizes chat messages, selects a provider and maps
// each provider's wire format onto a common Result.
package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleFunction  Role = "function"
)

// PartType tags the variant held by a Part.
type PartType string

const (
	PartText     PartType = "text"
	PartImageURL PartType = "image_url"
	PartFileURL  PartType = "file_url"
)

// ImageURL references an image input.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"` // auto, low, high
}

// FileURL references a file input such as a PDF or audio clip.
type FileURL struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type,omitempty"`
}

// Part is one piece of message content. Exactly one of Text, ImageURL or
// FileURL is meaningful, selected by Type.
type Part struct {
	Type     PartType  `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
	FileURL  *FileURL  `json:"file_url,omitempty"`
}

// Text returns a text part.
func Text(s string) Part {
	return Part{Type: PartText, Text: s}
}

// Image returns an image_url part.
func Image(url, detail string) Part {
	return Part{Type: PartImageURL, ImageURL: &ImageURL{URL: url, Detail: detail}}
}

// File returns a file_url part.
func File(url, mimeType string) Part {
	return Part{Type: PartFileURL, FileURL: &FileURL{URL: url, MimeType: mimeType}}
}

// Message is a single chat turn.
type Message struct {
	Role       Role
	Content    []Part
	Name       string
	ToolCallID string
}

// NewMessage builds a single-text-part message.
func NewMessage(role Role, text string) Message {
	return Message{Role: role, Content: []Part{Text(text)}}
}

// NormalizedMessage is a Message in the shape OpenAI-compatible APIs accept.
// Content is either a string or a []Part.
type NormalizedMessage struct {
	Role       Role   `json:"role"`
	Name       string `json:"name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	Content    any    `json:"content"`
}

// Normalize converts m for transmission.
//
// Tool and function messages carry a single string: text parts verbatim and
// any other part JSON-encoded, joined by newlines. For other roles a lone text
// part collapses to its string; anything else stays a part list.
func Normalize(m Message) (NormalizedMessage, error) {
	for _, p := range m.Content {
		if err := p.validate(); err != nil {
			return NormalizedMessage{}, err
		}
	}

	if m.Role == RoleTool || m.Role == RoleFunction {
		pieces := make([]string, 0, len(m.Content))
		for _, p := range m.Content {
			if p.Type == PartText {
				pieces = append(pieces, p.Text)
				continue
			}
			b, err := json.Marshal(p)
			if err != nil {
				return NormalizedMessage{}, fmt.Errorf("encode %s part: %w", p.Type, err)
			}
			pieces = append(pieces, string(b))
		}
		return NormalizedMessage{
			Role:       m.Role,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
			Content:    strings.Join(pieces, "\n"),
		}, nil
	}

	if len(m.Content) == 1 && m.Content[0].Type == PartText {
		return NormalizedMessage{Role: m.Role, Name: m.Name, Content: m.Content[0].Text}, nil
	}
	parts := make([]Part, len(m.Content))
	copy(parts, m.Content)
	return NormalizedMessage{Role: m.Role, Name: m.Name, Content: parts}, nil
}

// NormalizeAll normalizes every message, stopping at the first invalid one.
func NormalizeAll(messages []Message) ([]NormalizedMessage, error) {
	out := make([]NormalizedMessage, 0, len(messages))
	for i, m := range messages {
		nm, err := Normalize(m)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		out = append(out, nm)
	}
	return out, nil
}

// PlainText joins the text parts of m with newlines, dropping other parts.
func (m Message) PlainText() string {
	pieces := make([]string, 0, len(m.Content))
	for _, p := range m.Content {
		if p.Type == PartText {
			pieces = append(pieces, p.Text)
		} else {
			pieces = append(pieces, "")
		}
	}
	return strings.Join(pieces, "\n")
}

func (p Part) validate() error {
	switch p.Type {
	case PartText:
		return nil
	case PartImageURL:
		if p.ImageURL == nil {
			return fmt.Errorf("image_url part has no url")
		}
		return nil
	case PartFileURL:
		if p.FileURL == nil {
			return fmt.Errorf("file_url part has no url")
		}
		return nil
	default:
		return fmt.Errorf("unsupported message content part %q", p.Type)
	}
}
