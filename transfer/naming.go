package transfer

import (
	"fmt"
	"strings"
)

// WireName composes the locked on-wire name from the local filename and
// the job's NamingPolicy: optional dot-prefix, rule-based rename,
// sequence-or-unique suffix, then an optional VMS ";1"-style dot suffix
// (spec.md §4.6.1 step 5). Any of the policy's optional knobs may be nil
// or zero-valued, in which case that transformation is skipped.
func WireName(local string, p NamingPolicy) string {
	name := local
	if p.RenameRule != nil && !p.RenameRuleDisabled {
		name = p.RenameRule(name)
	}
	if p.SequenceNext != nil {
		name = fmt.Sprintf("%s.%d", name, p.SequenceNext())
	} else if p.UniqueNext != nil {
		name = fmt.Sprintf("%s.%s", name, p.UniqueNext())
	}
	if p.DotPrefix {
		name = "." + name
	}
	if p.VMSDotSuffix {
		name += ".1"
	}
	return name
}

// IsLocked reports whether the policy produces a name that differs from
// a plain pass-through — i.e. whether the file needs a post-transfer
// rename to its real final name (spec.md §4.6.1 step 12, Glossary).
func IsLocked(p NamingPolicy) bool {
	return p.DotPrefix || p.SequenceNext != nil || p.UniqueNext != nil || p.VMSDotSuffix ||
		(p.RenameRule != nil && !p.RenameRuleDisabled)
}

// RetrieveTempName builds the local temp name a retrieved file streams
// into before the final rename (spec.md §4.6.2 step 7): dot-prefixed
// unless the remote name already starts with a dot.
func RetrieveTempName(remoteName string) string {
	if strings.HasPrefix(remoteName, ".") {
		return remoteName
	}
	return "." + remoteName
}

// FinalRetrieveName strips any leading dot the remote name itself
// carried, matching "strip any leading dot from source name" (spec.md
// §4.6.2 step 7).
func FinalRetrieveName(remoteName string) string {
	return strings.TrimPrefix(remoteName, ".")
}
