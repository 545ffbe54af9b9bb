package catalog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// RecordKeyField is the field that carries the object id in a record payload.
const RecordKeyField = "object_id"

// maxRecordLine bounds a single JSONL record (feature payloads can hold spectra).
const maxRecordLine = 64 * 1024 * 1024

// KeyedReader looks up per-object feature payloads by catalog id.
type KeyedReader interface {
	Lookup(id string) (map[string]any, error)
}

// RecordIndex is a read-only KeyedReader over records sorted by id.
// Lookups are binary searches. It is safe for concurrent use once built.
type RecordIndex struct {
	survey  string
	ids     []string
	records []map[string]any
}

// NewRecordIndex indexes records by the string value of their keyField.
func NewRecordIndex(survey string, records []map[string]any, keyField string) (*RecordIndex, error) {
	type keyed struct {
		id  string
		rec map[string]any
	}
	items := make([]keyed, 0, len(records))
	for i, rec := range records {
		raw, ok := rec[keyField]
		if !ok {
			return nil, newInputError(survey, keyField, fmt.Sprintf("record %d has no key field", i), nil)
		}
		items = append(items, keyed{id: keyString(raw), rec: rec})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].id < items[j].id })

	idx := &RecordIndex{
		survey:  survey,
		ids:     make([]string, len(items)),
		records: make([]map[string]any, len(items)),
	}
	for i, it := range items {
		if i > 0 && it.id == items[i-1].id {
			return nil, newInputError(survey, keyField, fmt.Sprintf("duplicate record id %q", it.id), nil)
		}
		idx.ids[i] = it.id
		idx.records[i] = it.rec
	}
	return idx, nil
}

// ReadRecordsJSONL reads one JSON object per line and indexes it by RecordKeyField.
func ReadRecordsJSONL(r io.Reader, survey string) (*RecordIndex, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxRecordLine)

	var records []map[string]any
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec map[string]any
		dec := json.NewDecoder(bytes.NewReader(sc.Bytes()))
		dec.UseNumber()
		if err := dec.Decode(&rec); err != nil {
			return nil, newInputError(survey, "", fmt.Sprintf("records line %d: invalid JSON", line), err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return NewRecordIndex(survey, records, RecordKeyField)
}

// Len returns the number of indexed records.
func (x *RecordIndex) Len() int { return len(x.ids) }

// Lookup returns a copy of the record with the given id.
func (x *RecordIndex) Lookup(id string) (map[string]any, error) {
	i := sort.SearchStrings(x.ids, id)
	if i >= len(x.ids) || x.ids[i] != id {
		return nil, fmt.Errorf("survey %q id %q: %w", x.survey, id, ErrRecordNotFound)
	}
	out := make(map[string]any, len(x.records[i]))
	for k, v := range x.records[i] {
		out[k] = v
	}
	return out, nil
}

func keyString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return formatFloat(t)
	default:
		return fmt.Sprint(t)
	}
}
