// Package recovery coerces the raw text returned by a language model into
// a JSON value.
//
// Models asked for "JSON only" still wrap their payload in prose, markdown
// fences or trailing commentary. A Recoverer runs an ordered list of stages
// against the raw text and returns the first value a stage produces:
//
//   - strict:  the whole text parses as one JSON document.
//   - extract: the span from the first '{' or '[' to the last closing
//     bracket of the same kind parses as JSON.
//   - repair:  the extracted span (or the whole text) parses after
//     syntactic repair. Only enabled in ModeRepair.
//
// The extract stage is a position heuristic, not a tokenizer. The earliest
// opening bracket wins and the closing bracket is the last one of the same
// kind anywhere in the text, so interleaved bracket types can defeat it.
// That behavior is relied on by callers and must not be replaced by a
// balanced scanner; a different strategy belongs in a new Mode.
package recovery

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Failure reasons reported by the built-in stages.
const (
	ReasonNoContent   = "no content"
	ReasonNotStrict   = "not strict JSON"
	ReasonNotFound    = "no JSON-like content found"
	ReasonInvalidSpan = "invalid or empty span"
	ReasonUnparseable = "unparseable after extraction"
)

// Result is the outcome of a recovery pass. It is either a Success or a
// Failure; callers switch on the concrete type.
type Result interface {
	isResult()
}

// Success holds a recovered JSON value.
type Success struct {
	// Value is the decoded JSON tree: map[string]any, []any, string,
	// float64, bool or nil.
	Value any
	// Stage is the name of the stage that produced Value.
	Stage string
}

// Failure reports that no stage could recover a JSON value.
type Failure struct {
	// Reason is a short human-readable explanation.
	Reason string
	// Raw is the unmodified input, kept for caller-side diagnostics.
	Raw string
}

func (Success) isResult() {}
func (Failure) isResult() {}

// Mode selects which stages a Recoverer runs.
type Mode string

const (
	// ModeStrict only accepts text that is a JSON document as a whole.
	ModeStrict Mode = "strict"
	// ModeExtract falls back to bracket-span extraction. This is the default.
	ModeExtract Mode = "extract"
	// ModeRepair additionally repairs malformed JSON before giving up.
	ModeRepair Mode = "repair"
)

// Modes lists the supported modes in increasing order of leniency.
var Modes = []Mode{ModeStrict, ModeExtract, ModeRepair}

// ParseMode converts a configuration string into a Mode.
// The empty string selects ModeExtract.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeExtract:
		return ModeExtract, nil
	case ModeStrict:
		return ModeStrict, nil
	case ModeRepair:
		return ModeRepair, nil
	default:
		return "", fmt.Errorf("unknown recovery mode %q (supported: strict, extract, repair)", s)
	}
}

// Stage is one recovery strategy.
type Stage interface {
	// Name identifies the stage in results, logs and metrics.
	Name() string

	// Recover attempts to produce a JSON value from raw. On failure it
	// returns ok=false and, optionally, a reason. An empty reason leaves
	// the reason of an earlier stage in place.
	Recover(raw string) (value any, reason string, ok bool)
}

// Recoverer runs its stages in order and returns the first success.
type Recoverer struct {
	mode   Mode
	stages []Stage
}

// New returns a Recoverer for the given mode. Unknown modes fall back to
// ModeExtract; use ParseMode to validate user input first.
func New(mode Mode) *Recoverer {
	stages := []Stage{strictStage{}}
	switch mode {
	case ModeStrict:
	case ModeRepair:
		stages = append(stages, extractStage{}, repairStage{})
	default:
		mode = ModeExtract
		stages = append(stages, extractStage{})
	}
	return &Recoverer{mode: mode, stages: stages}
}

// Mode returns the mode the Recoverer was built with.
func (r *Recoverer) Mode() Mode {
	return r.mode
}

// Stages returns the stage names in the order they run.
func (r *Recoverer) Stages() []string {
	names := make([]string, len(r.stages))
	for i, s := range r.stages {
		names[i] = s.Name()
	}
	return names
}

// Recover runs every stage against raw until one succeeds.
func (r *Recoverer) Recover(raw string) Result {
	if raw == "" {
		return Failure{Reason: ReasonNoContent, Raw: raw}
	}

	reason := ""
	for _, s := range r.stages {
		v, why, ok := s.Recover(raw)
		if ok {
			return Success{Value: v, Stage: s.Name()}
		}
		if why != "" {
			reason = why
		}
	}
	return Failure{Reason: reason, Raw: raw}
}

var defaultRecoverer = New(ModeExtract)

// Recover runs the default strict-then-extract recovery on raw.
func Recover(raw string) Result {
	return defaultRecoverer.Recover(raw)
}

// ExtractSpan returns the candidate JSON span of raw: from the earliest
// '{' or '[' through the last closing bracket matching the opening one.
// It reports false when no opening bracket exists or the closing bracket
// does not come strictly after the opening one.
func ExtractSpan(raw string) (string, bool) {
	span, reason := locateSpan(raw)
	return span, reason == ""
}

// locateSpan implements ExtractSpan and reports why no span was found.
func locateSpan(raw string) (string, string) {
	if raw == "" {
		return "", ReasonNoContent
	}

	firstObj := strings.IndexByte(raw, '{')
	firstArr := strings.IndexByte(raw, '[')

	var start, end int
	switch {
	case firstObj == -1 && firstArr == -1:
		return "", ReasonNotFound
	case firstArr == -1 || (firstObj != -1 && firstObj < firstArr):
		start = firstObj
		end = strings.LastIndexByte(raw, '}')
	default:
		start = firstArr
		end = strings.LastIndexByte(raw, ']')
	}

	if end == -1 || end <= start {
		return "", ReasonInvalidSpan
	}
	return raw[start : end+1], ""
}

// decodeStrict parses s as exactly one JSON document.
func decodeStrict(s string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}
