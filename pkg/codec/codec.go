// Package codec serializes use case contexts to JSON and back. Round-trip
// is lossless: the dimension label travels with its key, so a decoder that
// has never seen a custom dimension still reconstructs it faithfully.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/caseguard/caseguard/pkg/dimension"
	"github.com/caseguard/caseguard/pkg/risk"
	"github.com/caseguard/caseguard/pkg/usecase"
)

// SerializationError reports malformed structural input on decode.
type SerializationError struct {
	Field  string
	Reason string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("invalid use case document: %s: %s", e.Field, e.Reason)
}

// FlagDoc is the wire form of one risk flag. Timestamps are ISO-8601.
type FlagDoc struct {
	ID          string              `json:"id,omitempty"`
	Dimension   dimension.Dimension `json:"dimension"`
	Level       string              `json:"level"`
	Status      string              `json:"status"`
	Description string              `json:"description"`
	Reviewer    string              `json:"reviewer,omitempty"`
	Note        string              `json:"note,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// UseCaseDoc is the wire form of a use case context.
type UseCaseDoc struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Phase       string    `json:"workflow_phase,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Flags       []FlagDoc `json:"flags"`
}

const useCaseSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name", "created_at", "flags"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "workflow_phase": {"type": "string"},
    "tags": {"type": "array", "items": {"type": "string"}},
    "created_at": {"type": "string"},
    "flags": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["dimension", "level", "status", "description", "created_at", "updated_at"],
        "properties": {
          "id": {"type": "string"},
          "dimension": {
            "type": "object",
            "required": ["key", "label"],
            "properties": {
              "key": {"type": "string", "minLength": 1},
              "label": {"type": "string"}
            }
          },
          "level": {"type": "string"},
          "status": {"type": "string"},
          "description": {"type": "string"},
          "reviewer": {"type": "string"},
          "note": {"type": "string"},
          "created_at": {"type": "string"},
          "updated_at": {"type": "string"}
        }
      }
    }
  }
}`

var schema = jsonschema.MustCompileString("usecase.schema.json", useCaseSchema)

// Encode serializes a context to indented JSON.
func Encode(ctx *usecase.Context) ([]byte, error) {
	doc := UseCaseDoc{
		Name:        ctx.Name,
		Description: ctx.Description,
		Phase:       ctx.Phase,
		Tags:        ctx.Tags,
		CreatedAt:   ctx.CreatedAt,
		Flags:       make([]FlagDoc, 0, len(ctx.Flags())),
	}
	for _, f := range ctx.Flags() {
		doc.Flags = append(doc.Flags, FlagDoc{
			ID:          f.ID,
			Dimension:   f.Dimension,
			Level:       f.Level.String(),
			Status:      string(f.Status),
			Description: f.Description,
			Reviewer:    f.Reviewer,
			Note:        f.Note,
			CreatedAt:   f.CreatedAt,
			UpdatedAt:   f.UpdatedAt,
		})
	}
	return json.MarshalIndent(doc, "", "  ")
}

// DecodeOption configures reconstruction of a decoded context.
type DecodeOption = usecase.Option

// Decode validates and deserializes a context. The document's flags are
// reattached verbatim; no events are emitted for reconstructed state.
func Decode(data []byte, routing usecase.Router, opts ...DecodeOption) (*usecase.Context, error) {
	var generic any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, &SerializationError{Field: "(document)", Reason: err.Error()}
	}
	if err := schema.Validate(generic); err != nil {
		return nil, &SerializationError{Field: "(document)", Reason: err.Error()}
	}

	var doc UseCaseDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &SerializationError{Field: "(document)", Reason: err.Error()}
	}

	opts = append([]usecase.Option{
		usecase.WithDescription(doc.Description),
		usecase.WithPhase(doc.Phase),
		usecase.WithTags(doc.Tags...),
	}, opts...)
	ctx := usecase.New(doc.Name, routing, nil, opts...)
	ctx.CreatedAt = doc.CreatedAt

	for i, fd := range doc.Flags {
		level, err := risk.ParseLevel(fd.Level)
		if err != nil {
			return nil, &SerializationError{Field: fmt.Sprintf("flags[%d].level", i), Reason: err.Error()}
		}
		status, err := risk.ParseStatus(fd.Status)
		if err != nil {
			return nil, &SerializationError{Field: fmt.Sprintf("flags[%d].status", i), Reason: err.Error()}
		}
		f := risk.NewFlag(fd.Dimension, level, fd.Description, fd.Reviewer, fd.CreatedAt)
		if fd.ID != "" {
			f.ID = fd.ID
		}
		f.Status = status
		f.Note = fd.Note
		f.UpdatedAt = fd.UpdatedAt
		ctx.AttachFlag(f)
	}
	return ctx, nil
}
