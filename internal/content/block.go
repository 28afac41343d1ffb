// Package content implements the ACP content block data model (spec §3): a
// discriminated union of text, image, audio, resource-link, and embedded
// resource blocks, each optionally annotated.
//
// Grounded in the teacher's internal/acp ContentBlock, generalized to the
// full discriminated set the spec names (the teacher's version only
// covered text/image/audio/resource).
package content

import (
	"encoding/json"
	"fmt"
)

// Type discriminates a Block.
type Type string

const (
	TypeText         Type = "text"
	TypeImage        Type = "image"
	TypeAudio        Type = "audio"
	TypeResourceLink Type = "resource_link"
	TypeResource     Type = "resource"
)

// SourceKind discriminates an image/audio Source.
type SourceKind string

const (
	SourceBase64 SourceKind = "base64"
	SourceURL    SourceKind = "url"
)

// Source is the payload carrier for image/audio blocks.
type Source struct {
	Type      SourceKind `json:"type"`
	MediaType string     `json:"mediaType,omitempty"`
	Data      string     `json:"data,omitempty"`
	URL       string     `json:"url,omitempty"`
}

// Annotations may be attached to any block.
type Annotations struct {
	Audience []string `json:"audience,omitempty"`
	Priority *float64 `json:"priority,omitempty"`
}

// Block is a single content block. Only the fields relevant to Type are
// populated; others are zero.
type Block struct {
	Type        Type
	Text        string
	Source      *Source
	URI         string
	MimeType    string
	Title       string
	Content     string
	Annotations *Annotations
}

// audience/priority validity is not enforced here — unknown audience
// values are passed through, per the extensibility rule in spec §6.

type blockWire struct {
	Type        Type         `json:"type"`
	Text        string       `json:"text,omitempty"`
	Source      *Source      `json:"source,omitempty"`
	URI         string       `json:"uri,omitempty"`
	MimeType    string       `json:"mimeType,omitempty"`
	Title       string       `json:"title,omitempty"`
	Content     string       `json:"content,omitempty"`
	Annotations *Annotations `json:"annotations,omitempty"`
}

func (b Block) MarshalJSON() ([]byte, error) {
	w := blockWire{
		Type:        b.Type,
		Text:        b.Text,
		Source:      b.Source,
		URI:         b.URI,
		MimeType:    b.MimeType,
		Title:       b.Title,
		Content:     b.Content,
		Annotations: b.Annotations,
	}
	return json.Marshal(w)
}

func (b *Block) UnmarshalJSON(data []byte) error {
	var w blockWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Type {
	case TypeText, TypeImage, TypeAudio, TypeResourceLink, TypeResource:
	default:
		return fmt.Errorf("content: unknown block type %q", w.Type)
	}
	*b = Block{
		Type:        w.Type,
		Text:        w.Text,
		Source:      w.Source,
		URI:         w.URI,
		MimeType:    w.MimeType,
		Title:       w.Title,
		Content:     w.Content,
		Annotations: w.Annotations,
	}
	return nil
}

// Text builds a text block.
func Text(s string) Block { return Block{Type: TypeText, Text: s} }

// ResourceLink builds a resource_link block.
func ResourceLink(uri, mimeType, title string) Block {
	return Block{Type: TypeResourceLink, URI: uri, MimeType: mimeType, Title: title}
}

// EmbeddedResource builds a resource block carrying inline content.
func EmbeddedResource(uri, mimeType, title, body string) Block {
	return Block{Type: TypeResource, URI: uri, MimeType: mimeType, Title: title, Content: body}
}
