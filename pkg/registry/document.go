// Package registry defines the persisted equipment registry document, its
// ordered records, and the schema normalization applied on every load.
package registry

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
)

// Calibration holds the calibration plan collection and its import metadata.
type Calibration struct {
	Meta  map[string]any `json:"meta"`
	Items []*Record      `json:"items"`
}

// Document is the single persisted aggregate of the registry.
type Document struct {
	Meta                     map[string]any
	Assets                   []*Record
	MaintenanceStatusChoices []string
	Calibration              Calibration

	// Extra keeps top-level keys this package does not model (user lists and
	// the like) so they are written back untouched.
	Extra map[string]json.RawMessage

	// Revision is the SHA-256 of the bytes the document was decoded from or
	// last encoded to. It is never serialized.
	Revision string
}

// NewDocument returns an empty, schema-complete document.
func NewDocument() *Document {
	doc := &Document{}
	Normalize(doc)
	return doc
}

// Normalize fills every structural field so callers never nil-check them and
// makes sure the maintenance workflow labels exist.
func Normalize(doc *Document) {
	if doc.Meta == nil {
		doc.Meta = map[string]any{}
	}
	if doc.Assets == nil {
		doc.Assets = []*Record{}
	}
	doc.MaintenanceStatusChoices = normalizeStatusChoices(doc.MaintenanceStatusChoices)
	if doc.Calibration.Meta == nil {
		doc.Calibration.Meta = map[string]any{}
	}
	if doc.Calibration.Items == nil {
		doc.Calibration.Items = []*Record{}
	}
	if doc.Extra == nil {
		doc.Extra = map[string]json.RawMessage{}
	}
}

// DefaultMaintenanceStatus is the status given to new assets.
func (d *Document) DefaultMaintenanceStatus() string {
	if len(d.MaintenanceStatusChoices) > 0 {
		return d.MaintenanceStatusChoices[0]
	}
	return StatusNeverReported
}

// Decode parses persisted bytes into a normalized document. Empty input
// yields a fresh document.
func Decode(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		doc := NewDocument()
		return doc, nil
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}

	doc := &Document{Extra: map[string]json.RawMessage{}}
	for key, raw := range top {
		switch key {
		case "meta":
			doc.Meta = decodeObject(raw)
		case "assets":
			doc.Assets = decodeRecords(raw)
		case "maintenanceStatusChoices":
			doc.MaintenanceStatusChoices = decodeChoices(raw)
		case "calibration":
			var cal struct {
				Meta  json.RawMessage `json:"meta"`
				Items json.RawMessage `json:"items"`
			}
			if err := json.Unmarshal(raw, &cal); err == nil {
				doc.Calibration.Meta = decodeObject(cal.Meta)
				doc.Calibration.Items = decodeRecords(cal.Items)
			}
		default:
			var compact bytes.Buffer
			if err := json.Compact(&compact, raw); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
			}
			doc.Extra[key] = compact.Bytes()
		}
	}

	Normalize(doc)
	doc.Revision = Hash(data)
	return doc, nil
}

// Encode serializes the document with two-space indentation and records the
// resulting revision on doc.
func Encode(doc *Document) ([]byte, error) {
	Normalize(doc)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode registry document: %w", err)
	}
	doc.Revision = Hash(data)
	return data, nil
}

// MarshalJSON writes the modelled keys first, then any preserved extras in
// key order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	write := func(key string, v any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(key)
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		buf.Write(vb)
		return nil
	}

	if err := write("meta", d.Meta); err != nil {
		return nil, err
	}

	extraKeys := make([]string, 0, len(d.Extra))
	for k := range d.Extra {
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)
	for _, k := range extraKeys {
		if err := write(k, d.Extra[k]); err != nil {
			return nil, err
		}
	}

	if err := write("assets", d.Assets); err != nil {
		return nil, err
	}
	if err := write("maintenanceStatusChoices", d.MaintenanceStatusChoices); err != nil {
		return nil, err
	}
	if err := write("calibration", d.Calibration); err != nil {
		return nil, err
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FindAsset returns the index of the asset with the given id, or -1.
func (d *Document) FindAsset(id string) int {
	return indexByID(d.Assets, id)
}

// FindAssetByCode returns the index of the first asset with the given code, or -1.
func (d *Document) FindAssetByCode(code string) int {
	for i, a := range d.Assets {
		if a.Code() == code {
			return i
		}
	}
	return -1
}

// FindCalibration returns the index of the calibration item with the given id, or -1.
func (d *Document) FindCalibration(id string) int {
	return indexByID(d.Calibration.Items, id)
}

func indexByID(records []*Record, id string) int {
	for i, r := range records {
		if r.ID() == id {
			return i
		}
	}
	return -1
}

// decodeObject tolerates a non-object value by treating it as absent.
func decodeObject(raw json.RawMessage) map[string]any {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// decodeRecords keeps every element. Elements that are not JSON objects
// become opaque records.
func decodeRecords(raw json.RawMessage) []*Record {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil
	}
	out := make([]*Record, 0, len(elems))
	for _, e := range elems {
		rec := NewRecord()
		if err := rec.UnmarshalJSON(e); err != nil {
			var compact bytes.Buffer
			if err := json.Compact(&compact, e); err != nil {
				continue
			}
			rec = opaqueRecord(compact.Bytes())
		}
		out = append(out, rec)
	}
	return out
}

func decodeChoices(raw json.RawMessage) []string {
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, Stringify(it))
	}
	return out
}

// Hash returns the hex SHA-256 of data, used as a document revision.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h)
}
