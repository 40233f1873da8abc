package types

import (
	"encoding/json"
	"fmt"
)

// ItemType names a queryable resource kind
type ItemType string

const (
	ItemTypeNode     ItemType = "node"
	ItemTypeGroup    ItemType = "group"
	ItemTypeInstance ItemType = "instance"
	ItemTypeJob      ItemType = "job"
	ItemTypeExport   ItemType = "export"
	ItemTypeOS       ItemType = "os"
	ItemTypeLock     ItemType = "lock"
)

// FieldType is the declared value type of a query field
type FieldType string

const (
	FieldTypeUnknown   FieldType = "unknown"
	FieldTypeText      FieldType = "text"
	FieldTypeBool      FieldType = "bool"
	FieldTypeNumber    FieldType = "number"
	FieldTypeUnit      FieldType = "unit" // Number in MiB
	FieldTypeTimestamp FieldType = "timestamp"
	FieldTypeOther     FieldType = "other"
)

// FieldDefinition describes one query field
type FieldDefinition struct {
	Name  string    `json:"name"`
	Title string    `json:"title"`
	Kind  FieldType `json:"kind"`
	Doc   string    `json:"doc"`
}

// ResultStatus qualifies a ResultEntry
type ResultStatus int

const (
	RSNormal  ResultStatus = 0 // Value is present
	RSUnknown ResultStatus = 1 // Field is not known
	RSNoData  ResultStatus = 2 // Live data could not be gathered
	RSUnavail ResultStatus = 3 // Value is not available, e.g. live data disabled
	RSOffline ResultStatus = 4 // Source of the value is offline
)

func (s ResultStatus) String() string {
	switch s {
	case RSNormal:
		return "normal"
	case RSUnknown:
		return "unknown"
	case RSNoData:
		return "nodata"
	case RSUnavail:
		return "unavail"
	case RSOffline:
		return "offline"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ResultEntry is one cell of a query result. Missing data is expressed
// through Status, never through a missing cell.
type ResultEntry struct {
	Status ResultStatus
	Value  interface{}
}

// NormalEntry wraps a value with RSNormal status
func NormalEntry(v interface{}) ResultEntry {
	return ResultEntry{Status: RSNormal, Value: v}
}

// StatusEntry builds a value-less entry
func StatusEntry(s ResultStatus) ResultEntry {
	return ResultEntry{Status: s}
}

// MarshalJSON encodes the entry as [status, value]
func (e ResultEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{int(e.Status), e.Value})
}

// UnmarshalJSON decodes [status, value]
func (e *ResultEntry) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid result entry: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("invalid result entry: expected 2 elements, got %d", len(raw))
	}
	var status int
	if err := json.Unmarshal(raw[0], &status); err != nil {
		return fmt.Errorf("invalid result status: %w", err)
	}
	if status < int(RSNormal) || status > int(RSOffline) {
		return fmt.Errorf("invalid result status %d", status)
	}
	var value interface{}
	if err := json.Unmarshal(raw[1], &value); err != nil {
		return fmt.Errorf("invalid result value: %w", err)
	}
	e.Status = ResultStatus(status)
	e.Value = value
	return nil
}

// QueryResult is the answer to a Query call. Every row in Data has exactly
// len(Fields) entries in field order.
type QueryResult struct {
	Fields []FieldDefinition `json:"fields"`
	Data   [][]ResultEntry   `json:"data"`
}

// QueryFieldsResult is the answer to a QueryFields call
type QueryFieldsResult struct {
	Fields []FieldDefinition `json:"fields"`
}
