// Command validate performs offline integrity checks over an emitted
// dataset directory: the current-view CSV, the audit NDJSON log, and the
// rejections NDJSON log. It verifies identity-key uniqueness, required
// field presence, version monotonicity per key, and that rejected pages
// never leak into the current view.
//
// Usage:
//
//	go run ./cmd/validate -dir data/out
package main

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/powderlab/avalanche-obs-ingest/internal/adapter/dataset"
	"github.com/powderlab/avalanche-obs-ingest/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "", "dataset directory containing current.csv, audit.ndjson, rejections.ndjson")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dir); code != 0 {
		os.Exit(code)
	}
}

func run(dir string) int {
	fmt.Println("=== Avalanche Dataset Integrity Validation ===")
	fmt.Println()

	current, err := loadCurrent(filepath.Join(dir, dataset.CurrentFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load current view: %v\n", err)
		return 1
	}

	audit, err := loadNDJSON[domain.Observation](filepath.Join(dir, dataset.AuditFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load audit log: %v\n", err)
		return 1
	}

	rejections, err := loadNDJSON[domain.Rejection](filepath.Join(dir, dataset.RejectionsFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load rejections: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateCurrentView(current),
		validateAuditLog(audit),
		validateCurrentMatchesAudit(current, audit),
		validateRejections(rejections, current),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-44s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d current, %d audit versions, %d rejections\n",
		len(current), len(audit), len(rejections))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

// currentRow is a parsed current-view CSV row keyed by header name.
type currentRow struct {
	lineNum int
	fields  map[string]string
}

func (r currentRow) get(name string) string { return r.fields[name] }

func loadCurrent(path string) ([]currentRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	all, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("empty file %s", path)
	}

	header := all[0]
	if len(header) != len(dataset.CurrentHeader) {
		return nil, fmt.Errorf("header has %d columns, expected %d", len(header), len(dataset.CurrentHeader))
	}
	for i, want := range dataset.CurrentHeader {
		if header[i] != want {
			return nil, fmt.Errorf("header column %d is %q, expected %q", i, header[i], want)
		}
	}

	var rows []currentRow
	for i, row := range all[1:] {
		fields := make(map[string]string, len(header))
		for j, h := range header {
			if j < len(row) {
				fields[h] = row[j]
			}
		}
		rows = append(rows, currentRow{lineNum: i + 2, fields: fields})
	}
	return rows, nil
}

func loadNDJSON[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var items []T
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var item T
		if err := json.Unmarshal([]byte(text), &item); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		items = append(items, item)
	}
	return items, sc.Err()
}

// ── Phase 1: Current View ──
// Every row has a unique identity key and valid required fields.

func validateCurrentView(rows []currentRow) *phase {
	p := &phase{name: "Phase 1: Current View (keys and fields)"}

	seen := map[string]int{}
	for _, row := range rows {
		key := row.get("identity_key")
		if key == "" {
			p.errorf("line %d: empty identity_key", row.lineNum)
			continue
		}
		if prev, dup := seen[key]; dup {
			p.errorf("line %d: duplicate identity_key %q (first seen line %d)", row.lineNum, key, prev)
		}
		seen[key] = row.lineNum

		recordType := row.get("type")
		if !strings.HasPrefix(key, recordType+"-") {
			p.errorf("line %d: key %q does not carry type prefix %q", row.lineNum, key, recordType)
		}

		checkCurrentFields(p, row)
	}
	return p
}

func checkCurrentFields(p *phase, row currentRow) {
	if date := row.get("date"); date == "" {
		p.errorf("line %d: empty date", row.lineNum)
	} else if _, err := time.Parse(time.RFC3339, date); err != nil {
		p.errorf("line %d: date %q is not RFC3339", row.lineNum, date)
	}

	zone := domain.Zone(row.get("zone"))
	if !zone.IsValid() {
		p.errorf("line %d: zone %q is not a known zone", row.lineNum, zone)
	}

	danger, err := strconv.Atoi(row.get("danger"))
	if err != nil {
		p.errorf("line %d: danger %q is not an integer", row.lineNum, row.get("danger"))
	} else if danger < domain.DangerNone || danger > domain.DangerMax {
		p.errorf("line %d: danger %d out of range [%d, %d]", row.lineNum, danger, domain.DangerNone, domain.DangerMax)
	}

	version, err := strconv.Atoi(row.get("version"))
	if err != nil || version < 1 {
		p.errorf("line %d: version %q is not a positive integer", row.lineNum, row.get("version"))
	}

	if row.get("source_url") == "" {
		p.errorf("line %d: empty source_url", row.lineNum)
	}
	if row.get("content_hash") == "" {
		p.errorf("line %d: empty content_hash", row.lineNum)
	}
}

// ── Phase 2: Audit Log ──
// Versions per key are contiguous starting at 1, and each new version
// carries a different content hash than its predecessor.

func validateAuditLog(audit []domain.Observation) *phase {
	p := &phase{name: "Phase 2: Audit Log (version monotonicity)"}

	byKey := map[string][]domain.Observation{}
	for _, obs := range audit {
		if obs.ID == "" {
			p.errorf("audit entry for %s: empty identity key", obs.SourceURL)
			continue
		}
		byKey[obs.ID] = append(byKey[obs.ID], obs)
	}

	for key, versions := range byKey {
		for i, obs := range versions {
			want := i + 1
			if obs.Version != want {
				p.errorf("key %s: entry %d has version %d, expected %d", key, i, obs.Version, want)
			}
			if obs.ContentHash == "" {
				p.errorf("key %s v%d: empty content_hash", key, obs.Version)
			}
			if i > 0 && obs.ContentHash == versions[i-1].ContentHash {
				p.errorf("key %s v%d: content_hash unchanged from v%d", key, obs.Version, versions[i-1].Version)
			}
			if obs.ProcessedAt.IsZero() {
				p.errorf("key %s v%d: zero processed_at", key, obs.Version)
			}
		}
	}
	return p
}

// ── Phase 3: Current vs Audit ──
// Each current row is exactly the latest audit version for its key.

func validateCurrentMatchesAudit(current []currentRow, audit []domain.Observation) *phase {
	p := &phase{name: "Phase 3: Current vs Audit (latest version)"}

	latest := map[string]domain.Observation{}
	for _, obs := range audit {
		if prev, ok := latest[obs.ID]; !ok || obs.Version > prev.Version {
			latest[obs.ID] = obs
		}
	}

	for _, row := range current {
		key := row.get("identity_key")
		obs, ok := latest[key]
		if !ok {
			p.errorf("line %d: key %s has no audit entries", row.lineNum, key)
			continue
		}
		if v, _ := strconv.Atoi(row.get("version")); v != obs.Version {
			p.errorf("line %d: key %s current version %d, latest audit version %d", row.lineNum, key, v, obs.Version)
		}
		if row.get("content_hash") != obs.ContentHash {
			p.errorf("line %d: key %s content_hash %q differs from audit %q", row.lineNum, key, row.get("content_hash"), obs.ContentHash)
		}
	}

	currentKeys := map[string]bool{}
	for _, row := range current {
		currentKeys[row.get("identity_key")] = true
	}
	for key := range latest {
		if !currentKeys[key] {
			p.errorf("key %s appears in audit but not in current view", key)
		}
	}
	return p
}

// ── Phase 4: Rejections ──
// Rejected pages carry a stage and reason, and never appear in the
// current view.

func validateRejections(rejections []domain.Rejection, current []currentRow) *phase {
	p := &phase{name: "Phase 4: Rejections (exclusion)"}

	currentURLs := map[string]int{}
	for _, row := range current {
		currentURLs[row.get("source_url")] = row.lineNum
	}

	validStages := map[domain.Stage]bool{
		domain.StageFetch:     true,
		domain.StageParse:     true,
		domain.StageNormalize: true,
	}

	for i, rej := range rejections {
		if rej.SourceURL == "" {
			p.errorf("rejection %d: empty source_url", i)
			continue
		}
		if !validStages[rej.Stage] {
			p.errorf("rejection %d (%s): unknown stage %q", i, rej.SourceURL, rej.Stage)
		}
		if rej.Reason == "" {
			p.errorf("rejection %d (%s): empty reason", i, rej.SourceURL)
		}
		if line, ok := currentURLs[rej.SourceURL]; ok {
			p.errorf("rejection %d: %s was rejected at %s but appears in current view (line %d)", i, rej.SourceURL, rej.Stage, line)
		}
	}
	return p
}
