package export

import (
	"strings"

	sqlapi "google.golang.org/api/sqladmin/v1beta4"

	"github.com/arencloud/sqlexport/internal/models"
)

type State string

const (
	StatePending   State = "pending"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// operationDone is the Cloud SQL operation status once work has stopped.
const operationDone = "DONE"

// Outcome is the typed result of an export operation.
type Outcome struct {
	State     State            `json:"state"`
	Operation string           `json:"operation"`
	Status    string           `json:"status,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Artifact  *models.Artifact `json:"artifact,omitempty"`
}

// OutcomeFrom maps a Cloud SQL operation to an Outcome. A nil operation is pending.
func OutcomeFrom(op *sqlapi.Operation) Outcome {
	if op == nil {
		return Outcome{State: StatePending}
	}
	out := Outcome{Operation: op.Name, Status: op.Status, State: StatePending}
	if op.Status != operationDone {
		return out
	}
	if reason := operationErrors(op); reason != "" {
		out.State = StateFailed
		out.Reason = reason
		return out
	}
	out.State = StateSucceeded
	return out
}

func operationErrors(op *sqlapi.Operation) string {
	if op.Error == nil || len(op.Error.Errors) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(op.Error.Errors))
	for _, e := range op.Error.Errors {
		if e == nil {
			continue
		}
		switch {
		case e.Code != "" && e.Message != "":
			msgs = append(msgs, e.Code+": "+e.Message)
		case e.Message != "":
			msgs = append(msgs, e.Message)
		default:
			msgs = append(msgs, e.Code)
		}
	}
	return strings.Join(msgs, "; ")
}
