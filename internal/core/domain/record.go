package domain

import (
	"fmt"
	"strings"
	"time"
)

type Kind string

const (
	KindNationalID Kind = "KTP"
	KindTaxID      Kind = "NPWP"
)

func ParseKind(raw string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(KindNationalID), "NATIONALID", "NATIONAL_ID":
		return KindNationalID, nil
	case string(KindTaxID), "TAXID", "TAX_ID":
		return KindTaxID, nil
	default:
		return "", fmt.Errorf("unknown document kind %q", raw)
	}
}

type TaxEntityType string

const (
	TaxEntityUnset      TaxEntityType = ""
	TaxEntityIndividual TaxEntityType = "personal"
	TaxEntityCompany    TaxEntityType = "company"
)

func ParseTaxEntityType(raw string) (TaxEntityType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return TaxEntityUnset, nil
	case string(TaxEntityIndividual), "individual":
		return TaxEntityIndividual, nil
	case string(TaxEntityCompany):
		return TaxEntityCompany, nil
	default:
		return TaxEntityUnset, fmt.Errorf("unknown tax entity type %q", raw)
	}
}

// IdentityDocument is the kind-specific part of a Record. Only the
// variants declared in this package implement it.
type IdentityDocument interface {
	Kind() Kind
	isIdentityDocument()
}

// NationalIDDocument is a KTP card.
type NationalIDDocument struct {
	NationalID string
}

func (NationalIDDocument) Kind() Kind          { return KindNationalID }
func (NationalIDDocument) isIdentityDocument() {}

// TaxDocument is an NPWP card. EntityType stays unset until the user
// picks one during disambiguation.
type TaxDocument struct {
	TaxID15    string
	TaxID16    string
	EntityType TaxEntityType
}

func (TaxDocument) Kind() Kind          { return KindTaxID }
func (TaxDocument) isIdentityDocument() {}

type Provenance struct {
	Confidence  float64
	Source      string
	ExtractedAt time.Time
}

// Record is one extracted identity document owned by a session.
type Record struct {
	Name       string
	Address    string
	Document   IdentityDocument
	Provenance Provenance
	Warnings   []string
}

func NewNationalIDRecord(name, address, nationalID string) *Record {
	return &Record{
		Name:     strings.TrimSpace(name),
		Address:  strings.TrimSpace(address),
		Document: NationalIDDocument{NationalID: nationalID},
	}
}

func NewTaxRecord(name, address, taxID15, taxID16 string) *Record {
	return &Record{
		Name:     strings.TrimSpace(name),
		Address:  strings.TrimSpace(address),
		Document: TaxDocument{TaxID15: taxID15, TaxID16: taxID16},
	}
}

func (r *Record) Kind() Kind {
	if r == nil || r.Document == nil {
		return ""
	}
	return r.Document.Kind()
}

func (r *Record) NationalID() string {
	if doc, ok := r.Document.(NationalIDDocument); ok {
		return doc.NationalID
	}
	return ""
}

func (r *Record) TaxID15() string {
	if doc, ok := r.Document.(TaxDocument); ok {
		return doc.TaxID15
	}
	return ""
}

func (r *Record) TaxID16() string {
	if doc, ok := r.Document.(TaxDocument); ok {
		return doc.TaxID16
	}
	return ""
}

func (r *Record) EntityType() TaxEntityType {
	if doc, ok := r.Document.(TaxDocument); ok {
		return doc.EntityType
	}
	return TaxEntityUnset
}

// SetEntityType is a no-op for KTP records.
func (r *Record) SetEntityType(entity TaxEntityType) {
	if doc, ok := r.Document.(TaxDocument); ok {
		doc.EntityType = entity
		r.Document = doc
	}
}

// PrimaryID is the number used for display and duplicate checks.
func (r *Record) PrimaryID() string {
	switch doc := r.Document.(type) {
	case NationalIDDocument:
		return doc.NationalID
	case TaxDocument:
		return doc.TaxID16
	default:
		return ""
	}
}

// CompositeTaxKey is the ID TKU of a company taxpayer: the 15 digit
// NPWP widened to 16 digits and suffixed with a six zero branch code.
func (r *Record) CompositeTaxKey() string {
	doc, ok := r.Document.(TaxDocument)
	if !ok || doc.EntityType != TaxEntityCompany || doc.TaxID15 == "" {
		return ""
	}
	return "0" + doc.TaxID15 + "000000"
}

// DuplicateTokens returns the non-empty values checked against the store.
func (r *Record) DuplicateTokens() []string {
	tokens := make([]string, 0, 3)
	for _, v := range []string{r.TaxID15(), r.PrimaryID(), r.CompositeTaxKey()} {
		if v != "" {
			tokens = append(tokens, v)
		}
	}
	return tokens
}

func (r *Record) DisplayName() string {
	if doc, ok := r.Document.(TaxDocument); ok {
		switch doc.EntityType {
		case TaxEntityCompany:
			return "NPWP Perusahaan"
		case TaxEntityIndividual:
			return "NPWP Orang Pribadi"
		}
	}
	return string(r.Kind())
}

// SheetRow lays the record out as spreadsheet columns A through J.
func (r *Record) SheetRow(storeName string) []string {
	buyerIDType, buyerDocNumber := "", ""
	if r.EntityType() == TaxEntityCompany {
		buyerIDType, buyerDocNumber = "TIN", "-"
	}
	return []string{
		string(r.Kind()),
		storeName,
		"",
		buyerIDType,
		buyerDocNumber,
		r.TaxID15(),
		r.PrimaryID(),
		r.CompositeTaxKey(),
		r.Name,
		r.Address,
	}
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.Warnings != nil {
		out.Warnings = append([]string(nil), r.Warnings...)
	}
	return &out
}
