package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// RecordType identifies the kind of record a source page holds.
type RecordType string

const (
	TypeObservation RecordType = "observation"
	TypeAvalanche   RecordType = "avalanche"
	TypeForecast    RecordType = "forecast"
)

// Zone is a canonical forecast zone code. The set is closed: free-text
// region strings resolve onto it through the alias table or not at all.
type Zone string

const (
	ZoneLogan     Zone = "logan"
	ZoneOgden     Zone = "ogden"
	ZoneUintas    Zone = "uintas"
	ZoneSaltLake  Zone = "salt-lake"
	ZoneProvo     Zone = "provo"
	ZoneSkyline   Zone = "skyline"
	ZoneMoab      Zone = "moab"
	ZoneAbajos    Zone = "abajos"
	ZoneSouthwest Zone = "southwest"
)

// KnownZones lists every canonical zone in stable order.
func KnownZones() []Zone {
	return []Zone{
		ZoneLogan, ZoneOgden, ZoneUintas, ZoneSaltLake, ZoneProvo,
		ZoneSkyline, ZoneMoab, ZoneAbajos, ZoneSouthwest,
	}
}

// IsValid reports whether z is one of the canonical zones.
func (z Zone) IsValid() bool {
	for _, k := range KnownZones() {
		if z == k {
			return true
		}
	}
	return false
}

// Danger rating bounds on the ordinal scale. 0 is reserved for records
// that carry an explicit "no rating" value or no rating field at all.
const (
	DangerNone = 0
	DangerMax  = 5
)

// RawPage is one fetched page plus provenance. It is immutable after
// the fetch stage; everything downstream treats it as read-only input.
type RawPage struct {
	URL        string
	FetchedAt  time.Time
	StatusCode int
	Body       []byte
}

// RecordRef is one row of a listing page: a link to a record plus the
// listing-level metadata shown alongside it.
type RecordRef struct {
	URL      string
	Type     RecordType
	DateText string
	Region   string
	Title    string
	Observer string
}

// ParsedRecord holds fields extracted verbatim from a page's markup.
// Nothing here is interpreted; date, region, and danger are the literal
// strings the page displayed, malformed or not.
type ParsedRecord struct {
	Type       RecordType
	SourceURL  string
	FetchedAt  time.Time
	Layout     string
	DateText   string
	RegionText string
	DangerText string
	Title      string
	Observer   string
	Body       string
	// Extras holds layout-specific fields (elevation, aspect, trigger,
	// and similar) keyed by their on-page label.
	Extras map[string]string
}

// Observation is the stable normalized schema. Date and Zone are never
// zero-valued here: records that cannot resolve both are rejected
// during normalization and never become Observations.
type Observation struct {
	ID          string            `json:"id"`
	Type        RecordType        `json:"type"`
	Date        time.Time         `json:"date"`
	DateLayout  string            `json:"date_layout"`
	Zone        Zone              `json:"zone"`
	Danger      int               `json:"danger"`
	DangerText  string            `json:"danger_text,omitempty"`
	Title       string            `json:"title,omitempty"`
	Observer    string            `json:"observer,omitempty"`
	Body        string            `json:"body,omitempty"`
	Extras      map[string]string `json:"extras,omitempty"`
	SourceURL   string            `json:"source_url"`
	FetchedAt   time.Time         `json:"fetched_at"`
	ContentHash string            `json:"content_hash"`
	ProcessedAt time.Time         `json:"processed_at"`

	// Version is assigned when the observation enters the audit trail.
	Version int `json:"version,omitempty"`
}

// IdentityKey derives the stable record identity from source URL and
// record type. Content never participates: a re-fetch of the same page
// must map to the same key so edits become audit-trail versions instead
// of duplicate rows.
func IdentityKey(sourceURL string, recordType RecordType) string {
	hash := sha256.Sum256([]byte(sourceURL + "|" + string(recordType)))
	short := hex.EncodeToString(hash[:8])
	if recordType == "" {
		return short
	}
	return string(recordType) + "-" + short
}

// ContentHash hashes the normalization-relevant fields of an
// observation. Provenance timestamps and version numbers are excluded
// so that an unchanged re-fetch hashes identically.
func ContentHash(obs Observation) string {
	parts := []string{
		string(obs.Type),
		obs.Date.Format(time.RFC3339),
		string(obs.Zone),
		fmt.Sprintf("%d", obs.Danger),
		obs.DangerText,
		obs.Title,
		obs.Observer,
		obs.Body,
	}
	keys := make([]string, 0, len(obs.Extras))
	for k := range obs.Extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+obs.Extras[k])
	}
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(hash[:8])
}
