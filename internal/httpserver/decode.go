package httpserver

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/timvw/plan-relay/internal/model"
)

// decodePlanRequest parses and validates a plan request body. Unknown
// fields are ignored. Type problems are reported before range problems.
func decodePlanRequest(body []byte) (model.PlanRequest, []string) {
	var req model.PlanRequest

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return req, []string{"body: must be a JSON object"}
	}

	var problems []string

	topicOK := false
	switch raw, ok := fields["topic"]; {
	case !ok:
		problems = append(problems, "topic: field required")
	case isNull(raw) || json.Unmarshal(raw, &req.Topic) != nil:
		problems = append(problems, "topic: must be a string")
	default:
		topicOK = true
	}

	daysOK := false
	switch raw, ok := fields["days"]; {
	case !ok:
		problems = append(problems, "days: field required")
	default:
		var f float64
		if isNull(raw) || json.Unmarshal(raw, &f) != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			problems = append(problems, "days: must be an integer")
		} else {
			req.Days = int(f)
			daysOK = true
		}
	}

	if raw, ok := fields["model"]; ok && !isNull(raw) {
		if json.Unmarshal(raw, &req.Model) != nil {
			problems = append(problems, "model: must be a string")
		}
	}

	// Range checks only apply to fields that decoded.
	for _, p := range req.Validate() {
		if (strings.HasPrefix(p, "topic:") && !topicOK) || (strings.HasPrefix(p, "days:") && !daysOK) {
			continue
		}
		problems = append(problems, p)
	}

	return req, problems
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
