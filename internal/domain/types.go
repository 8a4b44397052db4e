package domain

import (
	"encoding/json"
)

// UnresolvedName is returned on the wire in place of a name when the authority
// answered but holds no mapping for the requested namehash.
const UnresolvedName = "Error"

type NameRecord struct {
	Namehash string `json:"namehash"`
	Name     string `json:"name"`
}

type Source string

const (
	SourceCache    Source = "cache"
	SourceResolved Source = "resolved"
	SourceMiss     Source = "miss"
)

type ResolutionResult struct {
	Namehash string `json:"namehash"`
	Name     string `json:"name"`
	Source   Source `json:"-"`
}

func (r ResolutionResult) Found() bool {
	return r.Source == SourceCache || r.Source == SourceResolved
}

// CovenantRecord is one covenant as supplied by a caller. Raw keeps the
// caller's bytes so responses echo the record exactly as it arrived.
type CovenantRecord struct {
	Action *string
	Items  []string
	Raw    json.RawMessage
}

// HasAction is false only for a missing, null or empty action. Whitespace is
// a real action and is echoed as-is.
func (c CovenantRecord) HasAction() bool {
	return c.Action != nil && *c.Action != ""
}

func (c CovenantRecord) ActionText() string {
	if c.Action == nil {
		return ""
	}
	return *c.Action
}

func (c CovenantRecord) MarshalJSON() ([]byte, error) {
	if len(c.Raw) > 0 {
		return c.Raw, nil
	}
	shaped := struct {
		Action *string  `json:"action,omitempty"`
		Items  []string `json:"items"`
	}{Action: c.Action, Items: c.Items}
	if shaped.Items == nil {
		shaped.Items = []string{}
	}
	return json.Marshal(shaped)
}

type CovenantDisplay struct {
	Covenant CovenantRecord `json:"covenant"`
	Display  string         `json:"display"`
}

type CovenantResult struct {
	Success bool           `json:"success"`
	Data    CovenantRecord `json:"data"`
	Display string         `json:"display,omitempty"`
}

type StatusReport struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Version     string `json:"version"`
	NamesCached int64  `json:"names_cached"`
	StoreDriver string `json:"store_driver"`
}

type AddressResult struct {
	Success bool   `json:"success"`
	Address string `json:"address,omitempty"`
	Method  string `json:"method,omitempty"`
	Name    string `json:"name"`
	Error   string `json:"error,omitempty"`
}
