package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// ErrMalformedOutput means a reply did not contain JSON matching the expected schema.
var ErrMalformedOutput = errors.New("llm output malformed")

// Schema is a compiled JSON schema for a Go type.
type Schema struct {
	text     string
	compiled *gojsonschema.Schema
}

var schemaCache sync.Map // reflect.Type -> *Schema

// SchemaFor reflects T into a JSON schema. Fields without omitempty are required.
func SchemaFor[T any]() (*Schema, error) {
	var zero T
	t := reflect.TypeOf(&zero).Elem()
	if cached, ok := schemaCache.Load(t); ok {
		return cached.(*Schema), nil
	}

	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		ExpandedStruct:            true,
		DoNotReference:            true,
	}
	b, err := json.Marshal(reflector.Reflect(zero))
	if err != nil {
		return nil, fmt.Errorf("failed to JSON-marshal JSON schema: %w", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("failed to JSON-unmarshal JSON schema: %w", err)
	}
	delete(raw, "$schema")
	delete(raw, "$id")

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to compile JSON schema: %w", err)
	}
	text, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to JSON-marshal JSON schema: %w", err)
	}

	s := &Schema{text: string(text), compiled: compiled}
	schemaCache.Store(t, s)
	return s, nil
}

// String returns the schema as compact JSON, for prompts.
func (s *Schema) String() string {
	return s.text
}

// Validate checks a JSON document against the schema.
func (s *Schema) Validate(jsonValue string) error {
	result, err := s.compiled.Validate(gojsonschema.NewStringLoader(jsonValue))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if result.Valid() {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("JSON validation failed:")
	for _, e := range result.Errors() {
		_, _ = fmt.Fprintf(&sb, " %s;", e)
	}
	return fmt.Errorf("%w: %s", ErrMalformedOutput, sb.String())
}

// Decode extracts the JSON block of text, validates it against T's schema
// and unmarshals it.
func Decode[T any](text string) (T, error) {
	var out T
	schema, err := SchemaFor[T]()
	if err != nil {
		return out, err
	}
	block := ExtractJSON(text)
	if block == "" {
		return out, fmt.Errorf("%w: no JSON found", ErrMalformedOutput)
	}
	if err := schema.Validate(block); err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(block), &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return out, nil
}

// DecodeStructured runs p with T's schema appended to the system prompt
// and decodes the reply.
func DecodeStructured[T any](ctx context.Context, client LLMClient, model string, p Prompt) (T, error) {
	var zero T
	schema, err := SchemaFor[T]()
	if err != nil {
		return zero, err
	}
	p.System = strings.TrimSpace(p.System + "\n\n반드시 다음 JSON 스키마를 따르는 JSON만 출력하세요. 설명은 쓰지 마세요.\n" + schema.String())
	if reflect.TypeOf(zero) != nil && reflect.TypeOf(zero).Kind() == reflect.Struct {
		p.JSONMode = true
	}
	text, err := Complete(ctx, client, model, p)
	if err != nil {
		return zero, err
	}
	return Decode[T](text)
}

var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// ExtractJSON returns the JSON object or array embedded in text: the
// content of a code fence if present, else the outermost {...} or [...].
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	objStart := strings.Index(text, "{")
	arrStart := strings.Index(text, "[")
	start, closer := objStart, "}"
	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		start, closer = arrStart, "]"
	}
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(text, closer)
	if end < start {
		return ""
	}
	return text[start : end+1]
}
