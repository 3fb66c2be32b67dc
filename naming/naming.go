package naming

import (
	"fmt"
	"strings"

	"github.com/csakilan/FoundryBackend/errors"
)

// Policy captures one resource kind's physical-name constraints: the
// provider length limit, whether the provider stores names lowercase,
// and the token substituted when a user label sanitizes to nothing.
type Policy struct {
	MaxLen   int
	Lower    bool
	Fallback string
}

// Per-kind policies. Buckets and database identifiers are length-capped
// at 63 and case-folded by the provider; table names keep their case and
// allow far longer values.
var (
	Bucket     = Policy{MaxLen: 63, Lower: true, Fallback: "bucket"}
	DBInstance = Policy{MaxLen: 63, Lower: true, Fallback: "db"}
	Table      = Policy{MaxLen: 255, Lower: false, Fallback: "table"}
)

// shortIDLen is the slice of the node id embedded in every physical
// name. It keeps names stable across repeated compilations of the same
// canvas while separating same-labelled nodes within one deployment.
const shortIDLen = 6

// Sanitize maps every character outside the policy's allowed set
// (letters, digits, hyphen) to a hyphen, collapses runs of hyphens and
// trims them from both ends. An unusable label sanitizes to "".
func Sanitize(label string, p Policy) string {
	if p.Lower {
		label = strings.ToLower(label)
	}
	var b strings.Builder
	b.Grow(len(label))
	pendingHyphen := false
	for _, r := range label {
		if isAlnum(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pendingHyphen = false
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

// ShortNodeID returns the disambiguating infix for a node: the first
// six characters of the node id after dropping the separator characters
// the canvas editor uses in generated ids.
func ShortNodeID(nodeID string) string {
	var b strings.Builder
	count := 0
	for _, r := range nodeID {
		if r == '-' || r == ':' || r == '_' {
			continue
		}
		b.WriteRune(r)
		count++
		if count == shortIDLen {
			break
		}
	}
	return b.String()
}

// PhysicalName composes the provider-facing name for one resource:
// {deploymentID}-{shortNodeID}-{label}, all segments sanitized under the
// policy, the label replaced by the policy fallback when it sanitizes to
// nothing. When the composed name exceeds the policy limit only the
// trailing label portion is truncated; the deployment and node segments
// are never cut, so repeated compilations of one canvas keep stable,
// distinct prefixes.
func PhysicalName(deploymentID, nodeID, label string, p Policy) (string, error) {
	dep := Sanitize(deploymentID, p)
	if dep == "" {
		return "", errors.WrapInvalid(
			fmt.Errorf("%w: deployment id %q", errors.ErrEmptyName, deploymentID),
			"naming", "PhysicalName", "sanitize deployment id")
	}

	short := Sanitize(ShortNodeID(nodeID), p)

	lbl := Sanitize(label, p)
	if lbl == "" {
		lbl = p.Fallback
	}

	name := dep
	if short != "" {
		name += "-" + short
	}

	if lbl != "" {
		if room := p.MaxLen - len(name) - 1; room > 0 {
			if len(lbl) > room {
				lbl = strings.TrimRight(lbl[:room], "-")
			}
			if lbl != "" {
				name += "-" + lbl
			}
		}
	}

	if len(name) > p.MaxLen {
		return "", errors.WrapInvalid(
			fmt.Errorf("name %q exceeds %d character limit before any label", name, p.MaxLen),
			"naming", "PhysicalName", "compose name")
	}
	return name, nil
}

// LogicalID builds a document-internal resource handle from a kind
// prefix and the node id with every non-alphanumeric character removed,
// keeping the handle legal for the provisioning document grammar.
func LogicalID(prefix, nodeID string) string {
	var b strings.Builder
	b.Grow(len(prefix) + len(nodeID))
	b.WriteString(prefix)
	for _, r := range nodeID {
		if isAlnum(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
