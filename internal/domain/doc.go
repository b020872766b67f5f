// Package domain models avalanche observation records published by the
// Utah Avalanche Center (UAC).
//
// # Data Source
//
// Records come from the UAC website (https://utahavalanchecenter.org):
// the /observations listing indexes field observations and avalanche
// occurrence reports, and /archives/forecasts indexes published
// forecasts. The listing is a date-bounded HTML table paginated with a
// &page=N query parameter; each row links to a record page.
//
// # Site Conventions
//
// Record titles carry the record kind as a prefix:
//
//	"Avalanche: Cardiff Fork"    → avalanche occurrence report
//	"Observation: Logan Peak"    → general field observation
//
// Dates appear in a handful of formats that have varied across site
// redesigns, e.g. "02/14/2023", "2023-02-14", and the long form
// "Tuesday, February 14, 2023 - 6:30am". The accepted set is supplied
// by configuration as ordered Go reference layouts; a date string that
// matches none of them rejects the record. Times of day, when present,
// are local to the forecast area (US Mountain time).
//
// Regions are free text ("Salt Lake", "Logan Peak", "Provo Mountains")
// and resolve to a closed set of forecast zone codes through the
// versioned alias table. Unmapped region text rejects the record; there
// is deliberately no fuzzy matching.
//
// Danger ratings use the five-level North American scale:
//
//	Low=1  Moderate=2  Considerable=3  High=4  Extreme=5
//
// mapped through the versioned scale table. 0 is reserved for records
// with an explicit "No Rating" value or no rating field at all.
//
// # Identity and Versions
//
// Record identity is a deterministic SHA-256 key over source URL and
// record type — never content — so a re-fetch of an edited report maps
// to the same key and lands in the audit trail as a new version. The
// content hash covers only normalization-relevant fields; provenance
// timestamps are excluded so identical re-fetches hash identically and
// replay is a no-op. See [IdentityKey] and [ContentHash].
package domain
