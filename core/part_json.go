package core

import (
	"encoding/json"
	"fmt"
)

// partEnvelope is the wire form of a Part. The type tag selects which of the
// payload fields is populated, keeping the closed Part set round-trippable
// through JSON (session persistence, HTTP API).
type partEnvelope struct {
	Type             string            `json:"type"`
	Text             string            `json:"text,omitempty"`
	Data             map[string]any    `json:"data,omitempty"`
	File             *FilePartFile     `json:"file,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
	Metadata         map[string]any    `json:"metadata,omitempty"`
}

// MarshalJSON encodes parts as tagged envelopes.
func (c Content) MarshalJSON() ([]byte, error) {
	envelopes := make([]partEnvelope, 0, len(c.Parts))
	for _, p := range c.Parts {
		switch v := p.(type) {
		case TextPart:
			envelopes = append(envelopes, partEnvelope{Type: "text", Text: v.Text, Metadata: v.Metadata})
		case DataPart:
			envelopes = append(envelopes, partEnvelope{Type: "data", Data: v.Data, Metadata: v.Metadata})
		case FilePart:
			file := v.File
			envelopes = append(envelopes, partEnvelope{Type: "file", File: &file, Metadata: v.Metadata})
		case FunctionCallPart:
			fc := v.FunctionCall
			envelopes = append(envelopes, partEnvelope{Type: "function_call", FunctionCall: &fc, Metadata: v.Metadata})
		case FunctionResponsePart:
			fr := v.FunctionResponse
			envelopes = append(envelopes, partEnvelope{Type: "function_response", FunctionResponse: &fr, Metadata: v.Metadata})
		default:
			return nil, fmt.Errorf("unknown part type %T", p)
		}
	}

	return json.Marshal(struct {
		Role  string         `json:"role,omitempty"`
		Parts []partEnvelope `json:"parts"`
	}{Role: c.Role, Parts: envelopes})
}

// UnmarshalJSON decodes tagged envelopes back into concrete parts.
func (c *Content) UnmarshalJSON(data []byte) error {
	var wire struct {
		Role  string         `json:"role,omitempty"`
		Parts []partEnvelope `json:"parts"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	c.Role = wire.Role
	c.Parts = make([]Part, 0, len(wire.Parts))
	for _, env := range wire.Parts {
		switch env.Type {
		case "text":
			c.Parts = append(c.Parts, TextPart{Text: env.Text, Metadata: env.Metadata})
		case "data":
			c.Parts = append(c.Parts, DataPart{Data: env.Data, Metadata: env.Metadata})
		case "file":
			var file FilePartFile
			if env.File != nil {
				file = *env.File
			}
			c.Parts = append(c.Parts, FilePart{File: file, Metadata: env.Metadata})
		case "function_call":
			var fc FunctionCall
			if env.FunctionCall != nil {
				fc = *env.FunctionCall
			}
			c.Parts = append(c.Parts, FunctionCallPart{FunctionCall: fc, Metadata: env.Metadata})
		case "function_response":
			var fr FunctionResponse
			if env.FunctionResponse != nil {
				fr = *env.FunctionResponse
			}
			c.Parts = append(c.Parts, FunctionResponsePart{FunctionResponse: fr, Metadata: env.Metadata})
		default:
			return fmt.Errorf("unknown part type %q", env.Type)
		}
	}
	return nil
}
