package types

import (
	"encoding/json"
	"time"
)

// Detail is the kind-specific payload attached to an action item. Each kind
// has one pure builder below; the engine dispatches on the kind tag and never
// inspects payload contents itself.
type Detail map[string]any

// MarshalDetail serializes a detail payload for storage. Nil payloads are
// stored as an empty JSON object so scans round-trip cleanly.
func MarshalDetail(d Detail) ([]byte, error) {
	if d == nil {
		d = Detail{}
	}
	return json.Marshal(d)
}

// UnmarshalDetail parses a stored detail payload.
func UnmarshalDetail(raw []byte) (Detail, error) {
	if len(raw) == 0 {
		return Detail{}, nil
	}
	var d Detail
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return d, nil
}

// EnteredDetail describes entering a stage.
func EnteredDetail(stageName string, at time.Time) Detail {
	return Detail{
		"stage_name": stageName,
		"timestamp":  at.Format(time.RFC3339),
	}
}

// ExitedDetail describes leaving a stage.
func ExitedDetail(stageName string, at time.Time) Detail {
	return Detail{
		"stage_name": stageName,
		"timestamp":  at.Format(time.RFC3339),
	}
}

// ReversionDetail marks a backward revert anchored on the destination stage.
// The compiler pivots the displayable timeline on this marker.
func ReversionDetail(destStageName, fromStageName string, at time.Time) Detail {
	return Detail{
		"stage_name": destStageName,
		"from_stage": fromStageName,
		"timestamp":  at.Format(time.RFC3339),
	}
}

// RestartedDetail is the bookkeeping entry for a stage returned to
// not-started by a revert that passed over it.
func RestartedDetail(stageName string, at time.Time) Detail {
	return Detail{
		"stage_name": stageName,
		"timestamp":  at.Format(time.RFC3339),
	}
}

// FlowSwitchDetail describes moving a record onto a different flow.
func FlowSwitchDetail(oldFlowName, newFlowName string, at time.Time) Detail {
	return Detail{
		"old_flow":  oldFlowName,
		"new_flow":  newFlowName,
		"timestamp": at.Format(time.RFC3339),
	}
}

// NoteDetail carries a user note.
func NoteDetail(note string) Detail {
	return Detail{"note": note}
}

// UpdateDetail describes an email update sent from a stage.
func UpdateDetail(sentTo, subject, body string) Detail {
	return Detail{
		"sent_to": sentTo,
		"subject": subject,
		"body":    body,
	}
}

// PostDetail describes a companion listing posted for the record.
func PostDetail(title string) Detail {
	return Detail{"title": title}
}

// EditDetail describes a metadata edit; changed maps field names to their
// new values.
func EditDetail(changed map[string]string) Detail {
	fields := make(Detail, len(changed))
	for k, v := range changed {
		fields[k] = v
	}
	return Detail{"changed": fields}
}

// ExtensionDetail marks an extension clone of an archived record.
func ExtensionDetail(parentID string, at time.Time) Detail {
	return Detail{
		"parent_id": parentID,
		"timestamp": at.Format(time.RFC3339),
	}
}

// Note returns the note text for note-kind details, or "".
func (d Detail) Note() string {
	s, _ := d["note"].(string)
	return s
}

// StageName returns the stage_name field for transition details, or "".
func (d Detail) StageName() string {
	s, _ := d["stage_name"].(string)
	return s
}
