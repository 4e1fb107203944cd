package api

import (
	"github.com/gin-gonic/gin"
	sqlapi "google.golang.org/api/sqladmin/v1beta4"

	"github.com/arencloud/sqlexport/internal/cloudsql"
	"github.com/arencloud/sqlexport/internal/config"
	"github.com/arencloud/sqlexport/internal/export"
)

type exportResponse struct {
	Message   string          `json:"message"`
	URI       string          `json:"uri,omitempty"`
	Operation *operationView  `json:"operation,omitempty"`
	Outcome   *export.Outcome `json:"outcome,omitempty"`
	Error     *errorView      `json:"error,omitempty"`
}

type operationView struct {
	Name          string `json:"name"`
	Status        string `json:"status"`
	OperationType string `json:"operationType,omitempty"`
	TargetID      string `json:"targetId,omitempty"`
	TargetProject string `json:"targetProject,omitempty"`
	InsertTime    string `json:"insertTime,omitempty"`
	SelfLink      string `json:"selfLink,omitempty"`
}

func newOperationView(op *sqlapi.Operation) *operationView {
	if op == nil {
		return nil
	}
	return &operationView{
		Name:          op.Name,
		Status:        op.Status,
		OperationType: op.OperationType,
		TargetID:      op.TargetId,
		TargetProject: op.TargetProject,
		InsertTime:    op.InsertTime,
		SelfLink:      op.SelfLink,
	}
}

type errorView struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	// Code is the HTTP status the remote API answered with, if any.
	Code int `json:"code,omitempty"`
}

func newErrorView(kind string, err error) *errorView {
	if err == nil {
		return nil
	}
	return &errorView{Kind: kind, Message: err.Error(), Code: cloudsql.StatusCode(err)}
}

// reply writes resp as JSON, or in legacy mode as the bare message text the
// old function produced.
func (h *exportHandler) reply(c *gin.Context, status int, resp *exportResponse) {
	if h.cfg.ResponseFormat == config.ResponseLegacy {
		c.Data(status, "text/html; charset=utf-8", []byte(resp.Message))
		return
	}
	c.JSON(status, resp)
}
