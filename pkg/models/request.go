package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Request is an incoming municipal event. Type and Location are required;
// everything else is domain-specific and kept in Fields so each department
// can carry its own keys (requested_shift_days, required_workers, ...).
type Request struct {
	Type          string
	Location      string
	Reason        string
	EstimatedCost float64
	Priority      Priority
	Fields        map[string]any
}

// reserved keys lifted out of Fields during (un)marshalling.
const (
	keyType          = "type"
	keyLocation      = "location"
	keyReason        = "reason"
	keyEstimatedCost = "estimated_cost"
	keyPriority      = "priority"
)

// Validate reports the missing required fields, if any.
func (r *Request) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Type) == "" {
		missing = append(missing, keyType)
	}
	if strings.TrimSpace(r.Location) == "" {
		missing = append(missing, keyLocation)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: [%s]", strings.Join(missing, ", "))
	}
	if r.Priority != "" && !r.Priority.IsValid() {
		return fmt.Errorf("invalid priority %q", r.Priority)
	}
	return nil
}

// UnmarshalJSON accepts the flat request document and splits known keys from
// domain fields.
func (r *Request) UnmarshalJSON(data []byte) error {
	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Type, _ = raw[keyType].(string)
	r.Location, _ = raw[keyLocation].(string)
	r.Reason, _ = raw[keyReason].(string)
	if cost, ok := raw[keyEstimatedCost].(float64); ok {
		r.EstimatedCost = cost
	}
	if p, ok := raw[keyPriority].(string); ok {
		r.Priority = Priority(p)
	}
	delete(raw, keyType)
	delete(raw, keyLocation)
	delete(raw, keyReason)
	delete(raw, keyEstimatedCost)
	delete(raw, keyPriority)
	if len(raw) > 0 {
		r.Fields = raw
	} else {
		r.Fields = nil
	}
	return nil
}

// MarshalJSON flattens the request back into a single document.
func (r Request) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(r.Fields)+5)
	for k, v := range r.Fields {
		flat[k] = v
	}
	flat[keyType] = r.Type
	flat[keyLocation] = r.Location
	if r.Reason != "" {
		flat[keyReason] = r.Reason
	}
	if r.EstimatedCost != 0 {
		flat[keyEstimatedCost] = r.EstimatedCost
	}
	if r.Priority != "" {
		flat[keyPriority] = string(r.Priority)
	}
	return json.Marshal(flat)
}

// Float returns a numeric domain field, or def when absent or non-numeric.
func (r *Request) Float(key string, def float64) float64 {
	switch v := r.Fields[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return def
}

// Int returns an integer domain field, or def when absent or non-numeric.
func (r *Request) Int(key string, def int) int {
	return int(r.Float(key, float64(def)))
}

// String returns a string domain field, or def when absent.
func (r *Request) String(key, def string) string {
	if v, ok := r.Fields[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Strings returns a string-list domain field, or nil when absent.
func (r *Request) Strings(key string) []string {
	switch v := r.Fields[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// FieldKeys returns the domain field names in sorted order.
func (r *Request) FieldKeys() []string {
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Summary renders a short single-line description for logs and prompts.
func (r *Request) Summary() string {
	var b strings.Builder
	b.WriteString(r.Type)
	if r.Location != "" {
		b.WriteString(" at ")
		b.WriteString(r.Location)
	}
	if r.Reason != "" {
		b.WriteString(": ")
		b.WriteString(r.Reason)
	}
	return b.String()
}
