package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"golang.org/x/oauth2"
	sqlapi "google.golang.org/api/sqladmin/v1beta4"

	"github.com/arencloud/sqlexport/internal/cloudsql"
	"github.com/arencloud/sqlexport/internal/config"
	"github.com/arencloud/sqlexport/internal/export"
	"github.com/arencloud/sqlexport/internal/logging"
	"github.com/arencloud/sqlexport/internal/models"
)

const commandCompleted = "Command completed"

// Error kinds produced here on top of cloudsql.Kind.
const (
	kindBadRequest  = "bad_request"
	kindCredentials = "credentials"
)

type exportHandler struct {
	cfg       *config.Config
	logger    logging.Logger
	exporter  Exporter
	clock     clock.Clock
	ledger    Ledger
	artifacts ArtifactStater
	dest      export.DestinationOptions
	waiter    *export.Waiter
}

func newExportHandler(cfg *config.Config, logger logging.Logger, deps Deps) *exportHandler {
	clk := deps.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	h := &exportHandler{
		cfg:       cfg,
		logger:    logger,
		exporter:  deps.Exporter,
		clock:     clk,
		ledger:    deps.Ledger,
		artifacts: deps.Artifacts,
		dest:      export.OptionsFrom(cfg),
	}
	if cfg.Wait {
		h.waiter = &export.Waiter{Clock: clk, Delay: cfg.PollInterval, Timeout: cfg.WaitTimeout, Logger: logger}
	}
	return h
}

// trigger is the export trigger: parse the body, obtain a credential, submit
// the export and answer from the acknowledgment.
func (h *exportHandler) trigger(c *gin.Context) {
	req, err := decodeExportRequest(c)
	if err != nil {
		h.logger.Error("failed to parse request body", "error", err, "requestId", requestid.Get(c))
		h.reply(c, http.StatusBadRequest, &exportResponse{Message: "invalid request body", Error: newErrorView(kindBadRequest, err)})
		return
	}
	h.logRequest(c, req)

	if h.cfg.StrictValidation {
		if missing := req.Missing(h.dest.NeedsSubdirectory()); len(missing) > 0 {
			err := errors.NotValidf("missing %s", strings.Join(missing, ", "))
			h.reply(c, http.StatusBadRequest, &exportResponse{Message: "invalid request body", Error: newErrorView(kindBadRequest, err)})
			return
		}
	}

	ctx := c.Request.Context()
	cred, err := h.exporter.Credential(ctx)
	if err != nil {
		h.logger.Error("failed to obtain credential", "error", err, "requestId", requestid.Get(c))
		h.failed(c, req, "", kindCredentials, err)
		return
	}

	uri := export.DestinationURI(req.BucketName, req.Subdirectory, h.clock.Now(), h.dest)
	op, err := h.exporter.Export(ctx, cred, req.ProjectName, req.InstanceName, export.NewExportContext(uri))
	if err != nil {
		h.logger.Error("export request rejected", "error", h.redactErr(err), "uri", h.redact(uri), "requestId", requestid.Get(c))
		h.failed(c, req, uri, cloudsql.Kind(err), err)
		return
	}
	h.logger.Info("export submitted",
		"operation", op.Name,
		"status", op.Status,
		"uri", h.redact(uri),
		"requestId", requestid.Get(c),
	)

	resp := &exportResponse{Message: commandCompleted, URI: uri, Operation: newOperationView(op)}
	status := http.StatusOK
	if h.waiter != nil {
		status = h.wait(c, req, cred, op, uri, resp)
	}
	h.record(c, req, uri, op.Name, status, resp.Error)
	h.reply(c, status, resp)
}

// wait polls the operation to completion and fills resp.Outcome.
func (h *exportHandler) wait(c *gin.Context, req models.ExportRequest, cred *oauth2.Token, op *sqlapi.Operation, uri string, resp *exportResponse) int {
	ctx := c.Request.Context()
	out, err := h.waiter.Wait(ctx, func(ctx context.Context) (*sqlapi.Operation, error) {
		return h.exporter.Operation(ctx, cred, req.ProjectName, op.Name)
	})
	if out.Operation == "" {
		out.Operation = op.Name
	}
	resp.Outcome = &out
	if err != nil {
		h.logger.Error("failed to poll export", "operation", op.Name, "error", err, "requestId", requestid.Get(c))
	}
	switch out.State {
	case export.StateFailed:
		h.logger.Error("export failed", "operation", op.Name, "reason", out.Reason, "requestId", requestid.Get(c))
		resp.Error = &errorView{Kind: cloudsql.KindRemote, Message: out.Reason}
		return h.failureStatus()
	case export.StateSucceeded:
		if h.artifacts != nil {
			a, err := h.artifacts.Stat(ctx, uri)
			if err != nil {
				h.logger.Error("failed to stat export artifact", "uri", h.redact(uri), "error", err)
			} else {
				out.Artifact = a
			}
		}
		h.logger.Info("export finished", "operation", op.Name, "requestId", requestid.Get(c))
		return http.StatusOK
	default:
		if h.cfg.ResponseFormat == config.ResponseLegacy {
			return http.StatusOK
		}
		return http.StatusAccepted
	}
}

func (h *exportHandler) failed(c *gin.Context, req models.ExportRequest, uri, kind string, err error) {
	status := h.failureStatus()
	ev := newErrorView(kind, err)
	h.record(c, req, uri, "", status, ev)
	h.reply(c, status, &exportResponse{Message: commandCompleted, URI: uri, Error: ev})
}

// failureStatus is 500, or 200 when configured to hide failures from the caller.
func (h *exportHandler) failureStatus() int {
	if h.cfg.AlwaysOKOnFailure {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

func (h *exportHandler) logRequest(c *gin.Context, req models.ExportRequest) {
	kv := []any{
		"project_name", h.redact(req.ProjectName),
		"mysql_instance_name", h.redact(req.InstanceName),
		"bucket_name", h.redact(req.BucketName),
	}
	if h.dest.NeedsSubdirectory() {
		kv = append(kv, "subdirectory", h.redact(req.Subdirectory))
	}
	h.logger.Info("export requested", append(kv, "requestId", requestid.Get(c))...)
}

func (h *exportHandler) redact(v string) string {
	if h.cfg.LogRedact {
		return logging.Redact(v)
	}
	return v
}

// redactErr keeps identifiers embedded in remote error messages out of logs.
func (h *exportHandler) redactErr(err error) any {
	if !h.cfg.LogRedact {
		return err
	}
	return cloudsql.Kind(err) + " (" + strconv.Itoa(cloudsql.StatusCode(err)) + ")"
}

// record writes the submission to the ledger. Ledger failures only get logged.
func (h *exportHandler) record(c *gin.Context, req models.ExportRequest, uri, operation string, status int, ev *errorView) {
	if h.ledger == nil {
		return
	}
	s := &models.ExportSubmission{
		RequestID: requestid.Get(c),
		Project:   req.ProjectName,
		Instance:  req.InstanceName,
		Bucket:    req.BucketName,
		URI:       uri,
		Operation: operation,
		Status:    status,
		CreatedAt: h.clock.Now(),
	}
	if ev != nil {
		s.ErrorKind, s.Error = ev.Kind, ev.Message
	}
	if err := h.ledger.Record(c.Request.Context(), s); err != nil {
		h.logger.Error("failed to record export submission", "error", err)
	}
}

// operation reports the current outcome of an earlier export.
func (h *exportHandler) operation(c *gin.Context) {
	ctx := c.Request.Context()
	cred, err := h.exporter.Credential(ctx)
	if err != nil {
		h.logger.Error("failed to obtain credential", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": newErrorView(kindCredentials, err)})
		return
	}
	op, err := h.exporter.Operation(ctx, cred, c.Param("project"), c.Param("name"))
	if err != nil {
		status := http.StatusBadGateway
		if cloudsql.IsNotFound(err) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": newErrorView(cloudsql.Kind(err), err)})
		return
	}
	c.JSON(http.StatusOK, export.OutcomeFrom(op))
}

// recent lists ledger entries, newest first.
func (h *exportHandler) recent(c *gin.Context) {
	if h.ledger == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ledger disabled"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := h.ledger.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// maxBodyBytes caps the trigger body; the four fields fit in far less.
const maxBodyBytes = 1 << 20

// decodeExportRequest binds a body declared as JSON directly and otherwise
// parses the raw body text as JSON. An empty body is an empty request.
func decodeExportRequest(c *gin.Context) (models.ExportRequest, error) {
	var req models.ExportRequest
	if c.Request.Body == nil {
		return req, nil
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if isJSON(c.GetHeader("Content-Type")) {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			return req, errors.Annotate(err, "decoding JSON body")
		}
		return req, nil
	}
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return req, errors.Annotate(err, "reading body")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, errors.Annotate(err, "parsing body as JSON")
	}
	return req, nil
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/json"
}
