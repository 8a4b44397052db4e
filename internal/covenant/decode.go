// Package covenant extracts namehash references from covenant records and
// renders their display text.
package covenant

import (
	"bytes"
	"encoding/json"
	"html"
	"slices"

	"github.com/bcrosbie/namecache/internal/domain"
)

// ExtractNamehash returns the first item of the record, which by convention is
// the referenced namehash. The value is not validated.
func ExtractNamehash(record domain.CovenantRecord) (string, bool) {
	if len(record.Items) == 0 {
		return "", false
	}
	return record.Items[0], true
}

// DecodeRecord never fails: input that is not a covenant-shaped object yields
// a record without an action, which renders as "Unknown". Action and items are
// decoded independently, so malformed items only cost the record its namehash.
func DecodeRecord(raw json.RawMessage) domain.CovenantRecord {
	record := domain.CovenantRecord{Raw: append(json.RawMessage(nil), raw...)}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return record
	}

	if rawAction, ok := fields["action"]; ok {
		var action *string
		if err := json.Unmarshal(rawAction, &action); err == nil {
			record.Action = action
		}
	}
	if rawItems, ok := fields["items"]; ok {
		var items []string
		if err := json.Unmarshal(rawItems, &items); err == nil {
			record.Items = items
		}
	}
	return record
}

// DecodeList decodes a JSON array of covenants. Elements are decoded
// individually so one malformed entry does not reject the batch.
func DecodeList(raw []byte) ([]domain.CovenantRecord, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, domain.InvalidArgument("covenant list must be a JSON array")
	}
	records := make([]domain.CovenantRecord, 0, len(elements))
	for _, element := range elements {
		records = append(records, DecodeRecord(element))
	}
	return records, nil
}

// IsList reports whether the payload's first significant byte opens an array.
func IsList(raw []byte) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

// Namehashes returns the distinct namehashes referenced by records, sorted.
func Namehashes(records []domain.CovenantRecord) []string {
	seen := make(map[string]struct{}, len(records))
	out := make([]string, 0, len(records))
	for _, record := range records {
		namehash, ok := ExtractNamehash(record)
		if !ok {
			continue
		}
		if _, dup := seen[namehash]; dup {
			continue
		}
		seen[namehash] = struct{}{}
		out = append(out, namehash)
	}
	slices.Sort(out)
	return out
}

// Display renders a record's display text using the resolved names in known.
func Display(record domain.CovenantRecord, known map[string]string) string {
	if !record.HasAction() {
		return "Unknown"
	}
	display := record.ActionText()
	if namehash, ok := ExtractNamehash(record); ok {
		if name, found := known[namehash]; found {
			display += NameLink(name)
		}
	}
	return display
}

// NameLink is the fragment appended after an action when its name is known.
func NameLink(name string) string {
	escaped := html.EscapeString(name)
	return ` <a href="/name/` + escaped + `">` + escaped + `</a>`
}
