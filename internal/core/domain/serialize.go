package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ToMap flattens the record into the map shape used for JSON and
// debugging output. Derived values are included for readers but ignored
// by RecordFromMap.
func (r *Record) ToMap() map[string]any {
	out := map[string]any{
		"document_type": string(r.Kind()),
		"nama":          r.Name,
		"alamat":        r.Address,
		"nik":           nullable(r.NationalID()),
		"npwp_15":       nullable(r.TaxID15()),
		"npwp_16":       nullable(r.TaxID16()),
		"npwp_type":     nullable(string(r.EntityType())),
		"id_tku":        r.CompositeTaxKey(),
		"primary_id":    r.PrimaryID(),
		"confidence":    r.Provenance.Confidence,
		"source":        r.Provenance.Source,
	}
	if !r.Provenance.ExtractedAt.IsZero() {
		out["extracted_at"] = r.Provenance.ExtractedAt.UTC().Format(time.RFC3339Nano)
	}
	if len(r.Warnings) > 0 {
		out["warnings"] = append([]string(nil), r.Warnings...)
	}
	return out
}

func RecordFromMap(m map[string]any) (*Record, error) {
	kind, err := ParseKind(stringValue(m["document_type"]))
	if err != nil {
		return nil, WrapError(ErrInvalidInput, "record from map", err)
	}

	var rec *Record
	switch kind {
	case KindNationalID:
		nik, err := idValue(m, "nik", 16)
		if err != nil {
			return nil, err
		}
		rec = NewNationalIDRecord(stringValue(m["nama"]), stringValue(m["alamat"]), nik)
	case KindTaxID:
		npwp15, err := idValue(m, "npwp_15", 15)
		if err != nil {
			return nil, err
		}
		npwp16, err := idValue(m, "npwp_16", 16)
		if err != nil {
			return nil, err
		}
		rec = NewTaxRecord(stringValue(m["nama"]), stringValue(m["alamat"]), npwp15, npwp16)
		entity, err := ParseTaxEntityType(stringValue(m["npwp_type"]))
		if err != nil {
			return nil, WrapError(ErrInvalidInput, "record from map", err)
		}
		rec.SetEntityType(entity)
	}

	switch v := m["confidence"].(type) {
	case float64:
		rec.Provenance.Confidence = v
	case float32:
		rec.Provenance.Confidence = float64(v)
	}
	rec.Provenance.Source = stringValue(m["source"])
	if raw := stringValue(m["extracted_at"]); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, WrapError(ErrInvalidInput, "record from map", fmt.Errorf("extracted_at: %w", err))
		}
		rec.Provenance.ExtractedAt = ts
	}
	switch v := m["warnings"].(type) {
	case []string:
		rec.Warnings = append([]string(nil), v...)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				rec.Warnings = append(rec.Warnings, s)
			}
		}
	}
	return rec, nil
}

func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToMap())
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	parsed, err := RecordFromMap(m)
	if err != nil {
		return err
	}
	*r = *parsed
	return nil
}

// idValue reads an identifier that is either absent or exactly n digits.
func idValue(m map[string]any, key string, n int) (string, error) {
	v := stringValue(m[key])
	if v == "" {
		return "", nil
	}
	if len(v) != n || strings.IndexFunc(v, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return "", WrapError(ErrInvalidInput, "record from map", fmt.Errorf("%s: want %d digits, got %q", key, n, v))
	}
	return v, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
