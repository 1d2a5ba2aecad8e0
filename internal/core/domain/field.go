package domain

import "fmt"

// Field names an editable record attribute. The string values double as
// the suffix of the edit_<field> button token.
type Field string

const (
	FieldName       Field = "nama"
	FieldAddress    Field = "alamat"
	FieldNationalID Field = "nik"
	FieldTaxID15    Field = "npwp_15"
	FieldTaxID16    Field = "npwp_16"
)

var fieldLabels = map[Field]string{
	FieldName:       "Nama",
	FieldAddress:    "Alamat",
	FieldNationalID: "NIK",
	FieldTaxID15:    "NPWP 15",
	FieldTaxID16:    "NPWP 16",
}

func (f Field) Label() string {
	if label, ok := fieldLabels[f]; ok {
		return label
	}
	return string(f)
}

func ParseField(raw string) (Field, bool) {
	f := Field(raw)
	_, ok := fieldLabels[f]
	return f, ok
}

// ApplicableFields lists the fields that exist for the record's kind,
// in display order.
func (r *Record) ApplicableFields() []Field {
	switch r.Document.(type) {
	case NationalIDDocument:
		return []Field{FieldName, FieldAddress, FieldNationalID}
	case TaxDocument:
		return []Field{FieldName, FieldAddress, FieldTaxID15, FieldTaxID16}
	default:
		return []Field{FieldName, FieldAddress}
	}
}

// EditableFields is ApplicableFields filtered to populated values.
func (r *Record) EditableFields() []Field {
	out := make([]Field, 0, 4)
	for _, f := range r.ApplicableFields() {
		if r.FieldValue(f) != "" {
			out = append(out, f)
		}
	}
	return out
}

func (r *Record) FieldValue(f Field) string {
	switch f {
	case FieldName:
		return r.Name
	case FieldAddress:
		return r.Address
	case FieldNationalID:
		return r.NationalID()
	case FieldTaxID15:
		return r.TaxID15()
	case FieldTaxID16:
		return r.TaxID16()
	default:
		return ""
	}
}

// SetField writes an already-validated value. Setting a field that does
// not belong to the record's kind is rejected.
func (r *Record) SetField(f Field, value string) error {
	switch f {
	case FieldName:
		r.Name = value
		return nil
	case FieldAddress:
		r.Address = value
		return nil
	}

	switch doc := r.Document.(type) {
	case NationalIDDocument:
		if f == FieldNationalID {
			doc.NationalID = value
			r.Document = doc
			return nil
		}
	case TaxDocument:
		switch f {
		case FieldTaxID15:
			doc.TaxID15 = value
			r.Document = doc
			return nil
		case FieldTaxID16:
			doc.TaxID16 = value
			r.Document = doc
			return nil
		}
	}
	return WrapError(ErrInvalidInput, "set field", fmt.Errorf("field %s does not apply to %s", f, r.Kind()))
}
