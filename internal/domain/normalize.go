package domain

import (
	"strings"
	"time"
)

// Tables holds the externally supplied, versioned lookup tables the
// normalizer runs against. They are loaded and validated by the config
// package before the pipeline starts; a malformed table is a startup
// error, never a per-record one.
type Tables struct {
	ZoneAliases  map[string]Zone
	ZoneVersion  string
	DangerScale  map[string]int
	ScaleVersion string
	DateLayouts  []string
	Location     *time.Location
}

// AliasKey canonicalizes a free-text alias for table lookup: lowercase,
// interior whitespace collapsed. Nothing fuzzier than that — two
// aliases that differ beyond case and spacing are different aliases.
func AliasKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Normalizer maps ParsedRecords onto the stable Observation schema.
type Normalizer struct {
	tables Tables
}

// NewNormalizer creates a Normalizer over validated tables.
func NewNormalizer(tables Tables) *Normalizer {
	if tables.Location == nil {
		tables.Location = time.UTC
	}
	return &Normalizer{tables: tables}
}

// Normalize produces an Observation or a NormalizationError. There is
// no best-guess path: an unrecognized date format, an unmapped region,
// or an unmapped danger rating each reject the record outright, because
// a silently wrong field corrupts every model trained downstream.
func (n *Normalizer) Normalize(rec ParsedRecord) (Observation, error) {
	date, layout, err := n.resolveDate(rec.DateText)
	if err != nil {
		return Observation{}, err
	}

	zone, err := n.resolveZone(rec.RegionText)
	if err != nil {
		return Observation{}, err
	}

	danger, err := n.resolveDanger(rec.DangerText)
	if err != nil {
		return Observation{}, err
	}

	obs := Observation{
		ID:          IdentityKey(rec.SourceURL, rec.Type),
		Type:        rec.Type,
		Date:        date,
		DateLayout:  layout,
		Zone:        zone,
		Danger:      danger,
		DangerText:  strings.TrimSpace(rec.DangerText),
		Title:       strings.TrimSpace(rec.Title),
		Observer:    strings.TrimSpace(rec.Observer),
		Body:        strings.TrimSpace(rec.Body),
		Extras:      rec.Extras,
		SourceURL:   rec.SourceURL,
		FetchedAt:   rec.FetchedAt,
		ProcessedAt: clock.Now(),
	}
	obs.ContentHash = ContentHash(obs)
	return obs, nil
}

// resolveDate tries each configured layout in order and accepts the
// first one that both parses and round-trips: formatting the parsed
// time back through the layout must reproduce the input exactly. The
// round-trip guard is what makes a day/month swap impossible to pass
// silently — a layout that merely tolerates the string is not enough.
func (n *Normalizer) resolveDate(text string) (time.Time, string, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return time.Time{}, "", &NormalizationError{Field: "date", Reason: NormUnparseableDate, Value: text}
	}
	for _, layout := range n.tables.DateLayouts {
		t, err := time.ParseInLocation(layout, s, n.tables.Location)
		if err != nil {
			continue
		}
		if t.Format(layout) != s {
			continue
		}
		return t, layout, nil
	}
	return time.Time{}, "", &NormalizationError{Field: "date", Reason: NormUnparseableDate, Value: s}
}

func (n *Normalizer) resolveZone(text string) (Zone, error) {
	zone, ok := n.tables.ZoneAliases[AliasKey(text)]
	if !ok {
		return "", &NormalizationError{Field: "zone", Reason: NormUnmappedZone, Value: strings.TrimSpace(text)}
	}
	return zone, nil
}

// resolveDanger maps categorical danger text onto the ordinal scale.
// An empty field means the record carries no rating and maps to
// DangerNone; any non-empty text must be in the table.
func (n *Normalizer) resolveDanger(text string) (int, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return DangerNone, nil
	}
	rating, ok := n.tables.DangerScale[AliasKey(s)]
	if !ok {
		return 0, &NormalizationError{Field: "danger", Reason: NormUnmappedDangerRating, Value: s}
	}
	return rating, nil
}

// TableVersions reports the versions of the loaded tables, for logging.
func (n *Normalizer) TableVersions() (zone, scale string) {
	return n.tables.ZoneVersion, n.tables.ScaleVersion
}
