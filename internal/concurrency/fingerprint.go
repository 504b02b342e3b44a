// Package concurrency implements optimistic locking over HTTP preconditions.
//
// A resource's fingerprint is a deterministic hash of every persisted scalar
// and foreign-key field value, formatted as a weak ETag. Any persisted change
// produces a new fingerprint regardless of which write path caused it.
package concurrency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Wildcard is the If-Match token that matches any current representation.
const Wildcard = "*"

// PreconditionError is returned when an If-Match check fails. CurrentTag is
// always the resource's authoritative fingerprint at evaluation time so the
// caller can resynchronize.
type PreconditionError struct {
	StatusCode int
	Code       string
	Detail     string
	CurrentTag string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// Fingerprint computes the weak validator token for a resource, e.g.
// W/"9f86d08188...". Exported scalar fields (including FK id fields and
// time.Time) participate; association structs, slices, and maps do not, so
// the token reflects exactly the row's persisted state.
func Fingerprint(resource any) string {
	v := reflect.ValueOf(resource)
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	t := v.Type()

	pairs := make([]string, 0, t.NumField())
	collectFields(t, v, &pairs)
	sort.Strings(pairs)

	h := sha256.New()
	h.Write([]byte(t.Name()))
	h.Write([]byte(fmt.Sprintf(":%v:", pkValue(v))))
	for _, p := range pairs {
		h.Write([]byte(p))
		h.Write([]byte{';'})
	}
	return fmt.Sprintf(`W/"%s"`, hex.EncodeToString(h.Sum(nil)))
}

func collectFields(t reflect.Type, v reflect.Value, pairs *[]string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue
		}
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			collectFields(f.Type, v.Field(i), pairs)
			continue
		}
		if strings.HasPrefix(f.Tag.Get("gorm"), "-") {
			continue
		}
		sval, ok := scalarString(v.Field(i))
		if !ok {
			continue
		}
		*pairs = append(*pairs, f.Name+"="+sval)
	}
}

// scalarString renders a persisted field value as a stable string. Non-scalar
// kinds (associations, nested slices/maps) report ok=false and are skipped.
func scalarString(v reflect.Value) (string, bool) {
	if v.Kind() == reflect.Pointer {
		elem := v.Type().Elem()
		if elem.Kind() == reflect.Struct && elem != reflect.TypeOf(time.Time{}) {
			return "", false
		}
		if v.IsNil() {
			return "", true
		}
		return scalarString(v.Elem())
	}
	switch v.Kind() {
	case reflect.String:
		return v.String(), true
	case reflect.Bool:
		return fmt.Sprintf("%t", v.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fmt.Sprintf("%d", v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fmt.Sprintf("%d", v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%g", v.Float()), true
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return string(v.Bytes()), true
		}
		return "", false
	case reflect.Struct:
		if ts, isTime := v.Interface().(time.Time); isTime {
			return fmt.Sprintf("%d", ts.UTC().UnixNano()), true
		}
		return "", false
	default:
		return "", false
	}
}

func pkValue(v reflect.Value) any {
	f := v.FieldByName("ID")
	if !f.IsValid() {
		return ""
	}
	return f.Interface()
}

// ParseIfMatch splits a possibly comma-separated If-Match header into the set
// of supplied tags. Tokens are compared as supplied; the guard always emits
// weak tags and clients echo them back.
func ParseIfMatch(header string) []string {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if tag := strings.TrimSpace(p); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// CheckIfMatch validates the client's precondition against the resource's
// current fingerprint.
//
//   - No token, strict=false: allow (best-effort concurrency).
//   - No token, strict=true: 428 Precondition Required with the current tag.
//   - Wildcard token: allow unconditionally.
//   - Matching token: allow.
//   - Anything else: 412 Precondition Failed with the current tag.
func CheckIfMatch(header string, resource any, strict bool) error {
	current := Fingerprint(resource)
	tags := ParseIfMatch(header)

	if len(tags) == 0 {
		if strict {
			return &PreconditionError{
				StatusCode: 428,
				Code:       "if_match_required",
				Detail:     "Send If-Match header with the current ETag.",
				CurrentTag: current,
			}
		}
		return nil
	}
	for _, tag := range tags {
		if tag == Wildcard || tag == current {
			return nil
		}
	}
	return &PreconditionError{
		StatusCode: 412,
		Code:       "stale_resource",
		Detail:     "Precondition failed (If-Match does not match current resource state).",
		CurrentTag: current,
	}
}
