package repair

import (
	"github.com/insightdelivered/statement-agent/internal/artifact"
	"github.com/insightdelivered/statement-agent/internal/compare"
)

// PatchContext carries what a rule may need beyond the artifact itself.
type PatchContext struct {
	// Columns is the canonical column order of the reference table.
	Columns []string
}

// Rule is one entry of the repair table: the mismatch category it answers,
// a precondition over the artifact's patchpoints, and the transformation.
// Apply reports whether it changed anything.
type Rule struct {
	Name     string
	Category compare.Category
	Applies  func(a *artifact.Artifact) bool
	Apply    func(a *artifact.Artifact, pc PatchContext) bool
}

// DefaultRules is the repair table used by the loop.
var DefaultRules = []Rule{
	{
		Name:     "reindex-before-return",
		Category: compare.Schema,
		Applies:  hasCleanupReturn,
		Apply:    reindexBeforeReturn,
	},
	{
		Name:     "drop-empty-rows",
		Category: compare.RowCount,
		Applies:  hasCleanupReturn,
		Apply:    dropEmptyRowsBeforeReturn,
	},
	{
		Name:     "strict-numeric-cast",
		Category: compare.Value,
		Applies:  hasNumericCast,
		Apply:    strictNumericCast,
	},
}

func hasCleanupReturn(a *artifact.Artifact) bool {
	sec := a.Section(artifact.Cleanup)
	return sec != nil && sec.Index(artifact.OpReturn) >= 0
}

func hasNumericCast(a *artifact.Artifact) bool {
	sec := a.Section(artifact.NumericCast)
	return sec != nil && sec.Index(artifact.OpCastNumeric) >= 0
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func reindexBeforeReturn(a *artifact.Artifact, pc PatchContext) bool {
	sec := a.Section(artifact.Cleanup)
	ret := sec.Index(artifact.OpReturn)
	if ret > 0 {
		prev := sec.Steps[ret-1]
		if prev.Op == artifact.OpReindex && sameColumns(prev.Columns, pc.Columns) {
			return false
		}
	}
	sec.Insert(ret, artifact.Step{Op: artifact.OpReindex, Columns: append([]string(nil), pc.Columns...)})
	return true
}

func dropEmptyRowsBeforeReturn(a *artifact.Artifact, _ PatchContext) bool {
	sec := a.Section(artifact.Cleanup)
	ret := sec.Index(artifact.OpReturn)
	for _, st := range sec.Steps[:ret] {
		if st.Op == artifact.OpDropEmptyRows {
			return false
		}
	}
	sec.Insert(ret, artifact.Step{Op: artifact.OpDropEmptyRows})
	return true
}

// strictNumericCast switches every numeric cast of the patchpoint to strict
// mode. Other steps, string trimming included, are left alone.
func strictNumericCast(a *artifact.Artifact, _ PatchContext) bool {
	sec := a.Section(artifact.NumericCast)
	changed := false
	for i := range sec.Steps {
		if sec.Steps[i].Op == artifact.OpCastNumeric && sec.Steps[i].Mode != artifact.CastStrict {
			sec.Steps[i].Mode = artifact.CastStrict
			changed = true
		}
	}
	return changed
}

// Patch applies every rule whose category is among cats and whose
// precondition holds, in table order, and returns the names of the rules
// that changed the artifact. An empty result means the artifact should be
// regenerated.
func Patch(rules []Rule, a *artifact.Artifact, cats []compare.Category, pc PatchContext) []string {
	var applied []string
	for _, r := range rules {
		if !containsCategory(cats, r.Category) || !r.Applies(a) {
			continue
		}
		if r.Apply(a, pc) {
			applied = append(applied, r.Name)
		}
	}
	return applied
}

func containsCategory(cats []compare.Category, c compare.Category) bool {
	for _, x := range cats {
		if x == c {
			return true
		}
	}
	return false
}
