package event

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const (
	commentSchemaURL   = "herald://schema/comment"
	messagingSchemaURL = "herald://schema/messaging"
)

const commentSchema = `{
  "type": "object",
  "required": ["text", "from", "media"],
  "properties": {
    "id": {"type": "string"},
    "text": {"type": "string"},
    "parent_id": {"type": "string"},
    "from": {
      "type": "object",
      "required": ["id"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "username": {"type": "string"}
      }
    },
    "media": {
      "type": "object",
      "required": ["id"],
      "properties": {
        "id": {"type": "string", "minLength": 1}
      }
    }
  }
}`

const messagingSchema = `{
  "type": "object",
  "required": ["sender", "recipient"],
  "properties": {
    "sender": {
      "type": "object",
      "required": ["id"],
      "properties": {"id": {"type": "string", "minLength": 1}}
    },
    "recipient": {
      "type": "object",
      "required": ["id"],
      "properties": {"id": {"type": "string", "minLength": 1}}
    },
    "timestamp": {"type": "number"},
    "message": {
      "type": "object",
      "properties": {
        "mid": {"type": "string"},
        "text": {"type": "string"},
        "is_echo": {"type": "boolean"}
      }
    }
  }
}`

// compileSchema compiles one embedded schema document.
func compileSchema(url, src string) (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal([]byte(src), &doc); err != nil {
		return nil, fmt.Errorf("unmarshal schema %s: %w", url, err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource %s: %w", url, err)
	}

	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", url, err)
	}
	return compiled, nil
}

// validate decodes raw and checks it against schema.
func validate(schema *jsonschema.Schema, raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return schema.Validate(v)
}
