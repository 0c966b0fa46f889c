// Package exchange drives the round trip with the external text-rewriting
// service: it validates returned payloads against the outgoing ones, spaces
// calls under a requests-per-minute gate, and retries with escalating repair
// instructions when the service damages the bundle structure.
package exchange

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/modloc/modloc/bundle"
	"github.com/modloc/modloc/cfgfile"
)

// maxReportedKeys caps the missing-key list carried in a Diagnostic.
const maxReportedKeys = 50

// Reason classifies a structural rejection.
type Reason int

const (
	// ReasonMarkerDamage: a bundle marker line is absent or altered.
	ReasonMarkerDamage Reason = iota
	// ReasonKeyMismatch: the returned payload dropped keys.
	ReasonKeyMismatch
)

// Diagnostic describes what the service got wrong, in enough detail to
// build a repair instruction.
type Diagnostic struct {
	Reason         Reason
	MissingKeys    []cfgfile.Key // ReasonKeyMismatch, capped at 50
	MissingMarkers []string      // ReasonMarkerDamage
}

// Notice renders the diagnostic as a correction notice appended to the
// instructions on the next attempt.
func (d *Diagnostic) Notice() string {
	var b strings.Builder
	b.WriteString("IMPORTANT: your previous answer had structural errors.\n")

	switch d.Reason {
	case ReasonMarkerDamage:
		b.WriteString("CRITICAL: you broke the bundle file markers.\n")
		b.WriteString("The following marker lines were missing or altered:\n")
		for _, m := range d.MissingMarkers {
			b.WriteString("  " + m + "\n")
		}
		b.WriteString("Reproduce every '; ===FILE: <name> ===' and '; ===END FILE: <name> ===' line\n")
		b.WriteString("EXACTLY, character for character. Do not translate, move, or remove them.\n")
		b.WriteString("Return the full text, without ``` fences.")

	case ReasonKeyMismatch:
		b.WriteString("You MUST return ALL lines and ALL keys, in the same order.\n")
		b.WriteString("Do NOT change the '; ===FILE: ... ===' and '; ===END FILE: ... ===' marker lines.\n")
		b.WriteString(fmt.Sprintf("Missing keys (first %d): ", maxReportedKeys))
		var keys []string
		for _, k := range d.MissingKeys {
			keys = append(keys, k.String())
		}
		b.WriteString(strings.Join(keys, ", "))
	}
	return b.String()
}

// String returns a short human-readable summary, used in error messages.
func (d *Diagnostic) String() string {
	switch d.Reason {
	case ReasonMarkerDamage:
		return fmt.Sprintf("bundle markers missing or altered: %s", strings.Join(d.MissingMarkers, ", "))
	case ReasonKeyMismatch:
		var keys []string
		for _, k := range d.MissingKeys {
			keys = append(keys, k.String())
		}
		return fmt.Sprintf("missing keys: %s", strings.Join(keys, ", "))
	}
	return "unknown"
}

// Result is the outcome of validating one returned payload.
type Result struct {
	// OK is true when the payload passed both checks.
	OK bool
	// Payload is the accepted (cleaned) payload when OK.
	Payload string
	// Diag describes the rejection when !OK.
	Diag *Diagnostic
}

// Validate gates a returned payload before anything is written to disk.
// Marker integrity is checked first: every expected name must have its exact
// begin and end marker lines present. Then key preservation: every active
// (section, key) pair of the original payload must appear in the returned
// one — the service may reorder but never drop.
func Validate(original, returned string, names []string) Result {
	if missing := bundle.MissingMarkers(returned, names); len(missing) > 0 {
		return Result{Diag: &Diagnostic{Reason: ReasonMarkerDamage, MissingMarkers: missing}}
	}

	want := cfgfile.ExtractKeys(original)
	have := make(map[cfgfile.Key]bool)
	for _, k := range cfgfile.ExtractKeys(returned) {
		have[k] = true
	}

	var missing []cfgfile.Key
	for _, k := range want {
		if !have[k] {
			missing = append(missing, k)
			if len(missing) >= maxReportedKeys {
				break
			}
		}
	}
	if len(missing) > 0 {
		return Result{Diag: &Diagnostic{Reason: ReasonKeyMismatch, MissingKeys: missing}}
	}

	return Result{OK: true, Payload: returned}
}

// codeFenceRe matches a response wrapped in a markdown code fence.
var codeFenceRe = regexp.MustCompile("(?s)^```[^\n]*\n(.*?)\n?```\\s*$")

// CleanResponse strips a surrounding markdown code fence, if the service
// wrapped its answer in one, and guarantees a trailing newline.
func CleanResponse(text string) string {
	t := strings.TrimSpace(text)
	if m := codeFenceRe.FindStringSubmatch(t); m != nil {
		t = m[1]
	}
	return strings.Trim(t, "\n") + "\n"
}
