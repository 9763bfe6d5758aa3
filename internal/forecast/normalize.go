package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nmoran/wc-server/internal/store"
)

// TrackedTypes are the grid properties ingested each cycle.
var TrackedTypes = []store.SampleType{
	store.TypeProbabilityOfPrecipitation,
	store.TypeQuantitativePrecipitation,
	store.TypeMinTemperature,
	store.TypeTemperature,
}

// Entry is one range-encoded value from the grid document. ValidTime has the
// form "<RFC3339 start>/<ISO 8601 duration>".
type Entry struct {
	ValidTime string  `json:"validTime"`
	Value     float64 `json:"value"`
}

// Property is an ordered sequence of entries for one grid property.
type Property struct {
	Values []Entry `json:"values"`
}

// Document is a forecast grid payload keyed by property name. NWS wraps the
// properties in a GeoJSON envelope; older payload shapes keyed them at the
// top level, so both are accepted.
type Document struct {
	props map[string]json.RawMessage
}

func (d *Document) UnmarshalJSON(b []byte) error {
	var wrapped struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return err
	}
	if wrapped.Properties != nil {
		d.props = wrapped.Properties
		return nil
	}

	var flat map[string]json.RawMessage
	if err := json.Unmarshal(b, &flat); err != nil {
		return err
	}
	d.props = flat
	return nil
}

// Property extracts one named property from the document. A missing or
// malformed tracked property is an error; the cycle cannot proceed on a
// partial document.
func (d *Document) Property(name string) (Property, error) {
	raw, ok := d.props[name]
	if !ok {
		return Property{}, fmt.Errorf("grid document missing property %q", name)
	}
	var p Property
	if err := json.Unmarshal(raw, &p); err != nil {
		return Property{}, fmt.Errorf("grid property %q: %w", name, err)
	}
	return p, nil
}

// IngestDocument expands each tracked property's range-encoded entries into
// discrete hourly samples and upserts them. Replaying the same document is
// idempotent: samples are keyed by (time, type) and rewrites replace values.
func IngestDocument(ctx context.Context, st store.Store, doc *Document) error {
	for _, typ := range TrackedTypes {
		prop, err := doc.Property(string(typ))
		if err != nil {
			return err
		}

		for _, entry := range prop.Values {
			start, hours, err := expandValidTime(entry.ValidTime)
			if err != nil {
				return err
			}

			for i := 0; i < hours; i++ {
				sample := store.Sample{
					Time:  start.Add(time.Duration(i) * time.Hour),
					Type:  typ,
					Value: entry.Value,
				}
				if err := st.UpsertSample(ctx, sample); err != nil {
					return fmt.Errorf("upsert %s sample: %w", typ, err)
				}
			}
		}
	}
	return nil
}

// expandValidTime splits a validTime range into its start instant and hour
// count. An unparseable start is an error; an unparseable duration is not,
// and falls back to a single hour.
func expandValidTime(validTime string) (time.Time, int, error) {
	parts := strings.SplitN(validTime, "/", 2)

	start, err := time.Parse(time.RFC3339, parts[0])
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("invalid validTime start %q: %w", parts[0], err)
	}

	hours := 1
	if len(parts) == 2 {
		if n, ok := parseHourSpan(parts[1]); ok {
			hours = n
		}
	}
	return start, hours, nil
}

// parseHourSpan reads an ISO 8601 duration of the exact form PT<N>H. Any
// other shape (day spans, minutes, mixed units) reports ok=false so the
// caller takes the one-hour fallback.
func parseHourSpan(s string) (int, bool) {
	if !strings.HasPrefix(s, "PT") || !strings.HasSuffix(s, "H") {
		return 0, false
	}
	digits := s[2 : len(s)-1]
	if digits == "" {
		return 0, false
	}

	n := 0
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	if n == 0 {
		return 0, false
	}
	return n, true
}
