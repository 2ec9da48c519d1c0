// Package timestamp normalizes the different shapes a stored instant can
// arrive in (native time, strings, epoch numbers, lazy wrappers) into a
// single time.Time.
package timestamp

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"google.golang.org/protobuf/types/known/timestamppb"
)

var ErrUnresolvable = errors.New("timestamp: unresolvable value")

var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999", // ISO without zone, read as UTC
	time.DateTime,
	time.DateOnly,
}

type asTimer interface{ AsTime() time.Time }
type toTimer interface{ ToTime() time.Time }

// Resolve maps v to a UTC instant. Numbers are epoch milliseconds.
func Resolve(v any) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, fmt.Errorf("%w: nil", ErrUnresolvable)
	case time.Time:
		if t.IsZero() {
			return time.Time{}, fmt.Errorf("%w: zero time", ErrUnresolvable)
		}
		return t.UTC(), nil
	case *time.Time:
		if t == nil {
			return time.Time{}, fmt.Errorf("%w: nil *time.Time", ErrUnresolvable)
		}
		return Resolve(*t)
	case string:
		return parseString(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return fromMillis(float64(i))
		}
		f, err := t.Float64()
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: number %q", ErrUnresolvable, t.String())
		}
		return fromMillis(f)
	case int:
		return time.UnixMilli(int64(t)).UTC(), nil
	case int8:
		return time.UnixMilli(int64(t)).UTC(), nil
	case int16:
		return time.UnixMilli(int64(t)).UTC(), nil
	case int32:
		return time.UnixMilli(int64(t)).UTC(), nil
	case int64:
		return time.UnixMilli(t).UTC(), nil
	case uint:
		return fromUnsignedMillis(uint64(t))
	case uint8:
		return time.UnixMilli(int64(t)).UTC(), nil
	case uint16:
		return time.UnixMilli(int64(t)).UTC(), nil
	case uint32:
		return time.UnixMilli(int64(t)).UTC(), nil
	case uint64:
		return fromUnsignedMillis(t)
	case float32:
		return fromMillis(float64(t))
	case float64:
		return fromMillis(t)
	case *timestamppb.Timestamp:
		if t == nil || !t.IsValid() {
			return time.Time{}, fmt.Errorf("%w: invalid protobuf timestamp", ErrUnresolvable)
		}
		return t.AsTime().UTC(), nil
	case pgtype.Timestamptz:
		if !t.Valid || t.InfinityModifier != pgtype.Finite {
			return time.Time{}, fmt.Errorf("%w: null or infinite timestamptz", ErrUnresolvable)
		}
		return t.Time.UTC(), nil
	case pgtype.Timestamp:
		if !t.Valid || t.InfinityModifier != pgtype.Finite {
			return time.Time{}, fmt.Errorf("%w: null or infinite timestamp", ErrUnresolvable)
		}
		return t.Time.UTC(), nil
	case map[string]any:
		return fromSecondsMap(t)
	case asTimer:
		return Resolve(t.AsTime())
	case toTimer:
		return Resolve(t.ToTime())
	}
	return time.Time{}, fmt.Errorf("%w: unsupported type %T", ErrUnresolvable, v)
}

// ResolvePtr is Resolve for optional fields: anything unresolvable is nil.
func ResolvePtr(v any) *time.Time {
	t, err := Resolve(v)
	if err != nil {
		return nil
	}
	return &t
}

// Expired reports whether a reservation taken at reservedAt has run past
// ttl at now. The exact expiration instant still counts as held.
func Expired(reservedAt, now time.Time, ttl time.Duration) bool {
	return now.After(reservedAt.Add(ttl))
}

func parseString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty string", ErrUnresolvable)
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: string %q", ErrUnresolvable, s)
}

func fromMillis(ms float64) (time.Time, error) {
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return time.Time{}, fmt.Errorf("%w: non-finite epoch", ErrUnresolvable)
	}
	sec, frac := math.Modf(ms / 1000)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC(), nil
}

func fromUnsignedMillis(ms uint64) (time.Time, error) {
	if ms > math.MaxInt64 {
		return time.Time{}, fmt.Errorf("%w: epoch %d out of range", ErrUnresolvable, ms)
	}
	return time.UnixMilli(int64(ms)).UTC(), nil
}

// fromSecondsMap reads the JSON form document stores give their timestamp
// type: {"seconds": n, "nanoseconds": n}, optionally underscore-prefixed.
func fromSecondsMap(m map[string]any) (time.Time, error) {
	sec, ok := number(m, "seconds", "_seconds")
	if !ok {
		return time.Time{}, fmt.Errorf("%w: map without seconds", ErrUnresolvable)
	}
	nanos, _ := number(m, "nanoseconds", "_nanoseconds", "nanos")
	return time.Unix(int64(sec), int64(nanos)).UTC(), nil
}

func number(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch n := m[k].(type) {
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		case int32:
			return float64(n), true
		case float64:
			return n, true
		case json.Number:
			f, err := n.Float64()
			return f, err == nil
		}
	}
	return 0, false
}
