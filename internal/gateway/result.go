package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind tags the shape of a normalized gateway response.
type Kind int

const (
	// KindRecord is a single JSON object.
	KindRecord Kind = iota
	// KindList is a JSON array of objects.
	KindList
	// KindError is a JSON object flagged as an error by the gateway.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindRecord:
		return "record"
	case KindList:
		return "list"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Result is a gateway response mapped onto one of the shapes the gateway
// is known to return.
type Result struct {
	Kind   Kind
	Record map[string]any
	List   []map[string]any
	Err    *APIError
}

// Object returns the response as a single record.
func (r Result) Object() (map[string]any, error) {
	switch r.Kind {
	case KindRecord:
		return r.Record, nil
	case KindError:
		return nil, r.Err
	default:
		return nil, fmt.Errorf("%w: got %s, want record", ErrUnexpectedShape, r.Kind)
	}
}

// normalize decodes a success body. Numbers are kept as json.Number so large
// integers such as tickets survive.
func normalize(op string, status int, body []byte) (Result, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Result{Kind: KindRecord, Record: map[string]any{}}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Result{}, fmt.Errorf("decoding %s response: %w", op, err)
	}

	switch t := v.(type) {
	case nil:
		return Result{Kind: KindRecord, Record: map[string]any{}}, nil
	case []any:
		list, _ := asRecords(t)
		return Result{Kind: KindList, List: list}, nil
	case map[string]any:
		if truthy(t["error"]) {
			return Result{Kind: KindError, Record: t, Err: &APIError{
				Operation:  op,
				StatusCode: status,
				Message:    toString(t["message"]),
				Details:    t,
			}}, nil
		}
		return Result{Kind: KindRecord, Record: t}, nil
	default:
		return Result{}, fmt.Errorf("%w: %s returned %T", ErrUnexpectedShape, op, v)
	}
}

// asRecords keeps the object elements of a JSON array. ok is false when v is
// not an array at all.
func asRecords(v any) ([]map[string]any, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, true
}

// ---------------------------------------------------------------------------
// Loose value conversion
// ---------------------------------------------------------------------------

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		return int64(f), err == nil
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

// truthy follows the gateway's loose notion of a set flag.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && !strings.EqualFold(t, "false")
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	case float64:
		return t != 0
	default:
		return true
	}
}

// toUnix reads a bar or tick timestamp given either as unix seconds or as a
// gateway date string.
func toUnix(v any) (int64, bool) {
	if i, ok := toInt(v); ok {
		return i, true
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	for _, layout := range []string{dateLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Unix(), true
		}
	}
	return 0, false
}
