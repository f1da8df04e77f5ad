package candidate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	fieldSep  = "\x1f"
	recordSep = "\x1e"
)

// Fingerprint hashes the canonical form of a pool: bound scope plus every
// candidate's id, label and sublabel, sorted by id so reordering alone is not
// new evidence.
func Fingerprint(pool Pool) string {
	d := xxhash.New()
	writePool(d, pool)
	return fmt.Sprintf("%016x", d.Sum64())
}

// SnapshotFingerprint hashes the live UI snapshot together with any pools the
// caller considers part of the same evidence.
func SnapshotFingerprint(snap Snapshot, pools ...Pool) string {
	d := xxhash.New()

	open := append([]string(nil), snap.OpenWidgetIDs...)
	sort.Strings(open)

	_, _ = d.WriteString(strings.Join([]string{
		snap.ActiveWidgetID,
		snap.ActivePanelID,
		snap.ActiveDashboardID,
		snap.ActiveWorkspaceID,
		strings.Join(open, ","),
	}, fieldSep))
	_, _ = d.WriteString(recordSep)

	for _, p := range pools {
		writePool(d, p)
	}
	return fmt.Sprintf("%016x", d.Sum64())
}

func writePool(d *xxhash.Digest, pool Pool) {
	cands := append([]Candidate(nil), pool.Candidates...)
	sort.Slice(cands, func(i, j int) bool { return cands[i].ID < cands[j].ID })

	_, _ = d.WriteString(pool.Source.String())
	_, _ = d.WriteString(recordSep)
	for _, c := range cands {
		_, _ = d.WriteString(c.ID)
		_, _ = d.WriteString(fieldSep)
		_, _ = d.WriteString(strings.ToLower(strings.TrimSpace(c.Label)))
		_, _ = d.WriteString(fieldSep)
		_, _ = d.WriteString(strings.ToLower(strings.TrimSpace(c.Sublabel)))
		_, _ = d.WriteString(recordSep)
	}
}
