package recovery

import "github.com/kaptinlin/jsonrepair"

type strictStage struct{}

func (strictStage) Name() string { return "strict" }

func (strictStage) Recover(raw string) (any, string, bool) {
	if v, ok := decodeStrict(raw); ok {
		return v, "", true
	}
	return nil, ReasonNotStrict, false
}

type extractStage struct{}

func (extractStage) Name() string { return "extract" }

func (extractStage) Recover(raw string) (any, string, bool) {
	span, reason := locateSpan(raw)
	if reason != "" {
		return nil, reason, false
	}
	if v, ok := decodeStrict(span); ok {
		return v, "", true
	}
	return nil, ReasonUnparseable, false
}

// repairStage runs jsonrepair over the extracted span, or over the whole
// text when no span exists. It never overrides the reason reported by the
// extract stage.
type repairStage struct{}

func (repairStage) Name() string { return "repair" }

func (repairStage) Recover(raw string) (any, string, bool) {
	candidate, reason := locateSpan(raw)
	if reason != "" {
		candidate = raw
	}

	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return nil, "", false
	}
	if v, ok := decodeStrict(repaired); ok {
		return v, "", true
	}
	return nil, "", false
}
