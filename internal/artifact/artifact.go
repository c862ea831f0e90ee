// Package artifact defines the parser artifact: a declarative recipe, one per
// statement format, that turns a statement PDF into the target table. The
// repair loop patches it in place and the generators write it from scratch.
package artifact

import (
	"fmt"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

var (
	// ErrNotFound means no artifact has been stored for the target yet.
	ErrNotFound = errors.New("parser artifact not found")
	// ErrMalformed means the stored artifact could not be decoded.
	ErrMalformed = errors.New("parser artifact is malformed")
	// ErrParseMissing means the artifact has no parse pipeline at all.
	ErrParseMissing = errors.New("parser artifact has no parse capability")
)

// Named insertion points every generated pipeline must carry.
const (
	NumericCast = "numeric_cast"
	Cleanup     = "cleanup"
)

// Pipeline operations.
const (
	OpCoerceDates    = "coerce_dates"
	OpCastNumeric    = "cast_numeric"
	OpTrimStrings    = "trim_strings"
	OpReverseColumns = "reverse_columns"
	OpSelect         = "select"
	OpReindex        = "reindex"
	OpDropEmptyRows  = "drop_empty_rows"
	OpReturn         = "return"
)

// Numeric cast modes.
const (
	CastNormalize = "normalize"
	CastStrict    = "strict"
)

// Extraction modes.
const (
	ExtractAuto   = "auto"
	ExtractTables = "tables"
	ExtractLines  = "lines"
)

type Artifact struct {
	Target   string    `yaml:"target"`
	Revision int       `yaml:"revision"`
	Schema   Schema    `yaml:"schema"`
	Parse    *Pipeline `yaml:"parse,omitempty"`
}

// Schema describes the reference table the artifact must reproduce.
type Schema struct {
	Columns    []string `yaml:"columns"`
	Numeric    []string `yaml:"numeric,omitempty"`
	DateColumn string   `yaml:"date_column,omitempty"`
	DateSample string   `yaml:"date_sample,omitempty"`
}

type Pipeline struct {
	Extract  string    `yaml:"extract,omitempty"`
	Sections []Section `yaml:"sections"`
}

// Section is a run of steps, optionally labelled as a patchpoint.
type Section struct {
	Patchpoint string `yaml:"patchpoint,omitempty"`
	Steps      []Step `yaml:"steps"`
}

type Step struct {
	Op      string   `yaml:"op"`
	Mode    string   `yaml:"mode,omitempty"`
	Columns []string `yaml:"columns,omitempty"`
}

func (s Step) String() string {
	switch {
	case s.Mode != "":
		return fmt.Sprintf("%s(%s)", s.Op, s.Mode)
	case len(s.Columns) > 0:
		return fmt.Sprintf("%s%v", s.Op, s.Columns)
	default:
		return s.Op
	}
}

// Section returns the section labelled name, or nil.
func (a *Artifact) Section(name string) *Section {
	if a == nil || a.Parse == nil {
		return nil
	}
	for i := range a.Parse.Sections {
		if a.Parse.Sections[i].Patchpoint == name {
			return &a.Parse.Sections[i]
		}
	}
	return nil
}

// Index returns the position of the first step with op, or -1.
func (s *Section) Index(op string) int {
	for i, st := range s.Steps {
		if st.Op == op {
			return i
		}
	}
	return -1
}

// Insert places st at position i.
func (s *Section) Insert(i int, st Step) {
	s.Steps = append(s.Steps, Step{})
	copy(s.Steps[i+1:], s.Steps[i:])
	s.Steps[i] = st
}

// Check lists the contract problems of the artifact: a missing parse
// pipeline, or a missing patchpoint. An empty result means the artifact can
// be patched by every repair rule.
func (a *Artifact) Check() []string {
	if a.Parse == nil {
		return []string{"no parse pipeline"}
	}
	var problems []string
	if len(a.Schema.Columns) == 0 {
		problems = append(problems, "schema has no columns")
	}
	if a.Section(NumericCast) == nil {
		problems = append(problems, "missing patchpoint "+NumericCast)
	}
	cleanup := a.Section(Cleanup)
	switch {
	case cleanup == nil:
		problems = append(problems, "missing patchpoint "+Cleanup)
	case cleanup.Index(OpReturn) < 0:
		problems = append(problems, "patchpoint "+Cleanup+" has no "+OpReturn+" step")
	}
	return problems
}

// Clone returns a deep copy.
func (a *Artifact) Clone() *Artifact {
	out := *a
	out.Schema.Columns = append([]string(nil), a.Schema.Columns...)
	out.Schema.Numeric = append([]string(nil), a.Schema.Numeric...)
	if a.Parse != nil {
		p := Pipeline{Extract: a.Parse.Extract, Sections: make([]Section, len(a.Parse.Sections))}
		for i, sec := range a.Parse.Sections {
			p.Sections[i] = Section{Patchpoint: sec.Patchpoint, Steps: make([]Step, len(sec.Steps))}
			for j, st := range sec.Steps {
				st.Columns = append([]string(nil), st.Columns...)
				p.Sections[i].Steps[j] = st
			}
		}
		out.Parse = &p
	}
	return &out
}

// Marshal renders the artifact as YAML.
func (a *Artifact) Marshal() ([]byte, error) {
	return yaml.Marshal(a)
}

// Unmarshal decodes a YAML artifact. Unknown fields are rejected.
func Unmarshal(data []byte) (*Artifact, error) {
	var a Artifact
	if err := yaml.UnmarshalStrict(data, &a); err != nil {
		return nil, errors.Wrap(ErrMalformed, err.Error())
	}
	return &a, nil
}

// New returns the canonical pipeline for a schema: date coercion, the
// numeric cast patchpoint and the cleanup patchpoint ending in return.
func New(target string, schema Schema) *Artifact {
	return &Artifact{
		Target: target,
		Schema: schema,
		Parse: &Pipeline{
			Extract: ExtractAuto,
			Sections: []Section{
				{Steps: []Step{{Op: OpCoerceDates}}},
				{Patchpoint: NumericCast, Steps: []Step{{Op: OpCastNumeric, Mode: CastNormalize}, {Op: OpTrimStrings}}},
				{Patchpoint: Cleanup, Steps: []Step{{Op: OpReturn}}},
			},
		},
	}
}
