package recognition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/core/domain"
)

var nullableScalar = map[string]any{"type": []any{"string", "number", "null"}}

// ResponseSchema accepts both the Indonesian keys from Prompt and the
// English aliases some models answer with.
var ResponseSchema = map[string]any{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type":    "object",
	"properties": map[string]any{
		"document_type": map[string]any{"type": "string"},
		"kind":          map[string]any{"type": "string"},
		"nama":          map[string]any{"type": []any{"string", "null"}},
		"name":          map[string]any{"type": []any{"string", "null"}},
		"alamat":        map[string]any{"type": []any{"string", "null"}},
		"address":       map[string]any{"type": []any{"string", "null"}},
		"nik":           nullableScalar,
		"national_id":   nullableScalar,
		"npwp_15":       nullableScalar,
		"tax_id_15":     nullableScalar,
		"npwp_16":       nullableScalar,
		"tax_id_16":     nullableScalar,
	},
	"anyOf": []any{
		map[string]any{"required": []any{"document_type"}},
		map[string]any{"required": []any{"kind"}},
	},
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		b, err := json.Marshal(ResponseSchema)
		if err != nil {
			schemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("recognition.json", bytes.NewReader(b)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("recognition.json")
	})
	return compiledSchema, schemaErr
}

// Decode pulls the JSON object out of a model reply, checks it against
// ResponseSchema and returns it. Numbers are kept as json.Number so long
// identifiers keep every digit.
func Decode(provider, text string) (map[string]any, error) {
	raw := ExtractJSONObject(text)
	if raw == "" {
		return nil, domain.WrapError(domain.ErrMalformedResponse, provider+" decode", fmt.Errorf("empty response"))
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, domain.WrapError(domain.ErrMalformedResponse, provider+" decode", err)
	}

	s, err := schema()
	if err != nil {
		return nil, fmt.Errorf("recognition schema: %w", err)
	}
	if err := s.Validate(value); err != nil {
		return nil, domain.WrapError(domain.ErrMalformedResponse, provider+" decode", fmt.Errorf("json does not match schema: %w", err))
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return nil, domain.WrapError(domain.ErrMalformedResponse, provider+" decode", fmt.Errorf("response is not an object"))
	}
	return obj, nil
}

// ExtractJSONObject trims code fences and chatter around the outermost
// JSON object.
func ExtractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}
