package api

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "appcc-workers/internal/common/errors"
	"appcc-workers/internal/common/metrics"
	"appcc-workers/internal/forms"
	submitcontrolrecord "appcc-workers/internal/workers/appcc/submit-control-record"

	"github.com/labstack/echo/v4"
)

type renderRequest struct {
	FormStructure json.RawMessage `json:"formStructure"`
	Record        *forms.Record   `json:"record,omitempty"`
	User          *forms.User     `json:"user,omitempty"`
	Values        forms.Values    `json:"values,omitempty"`
	Signed        bool            `json:"signed"`
	ShowErrors    bool            `json:"showErrors"`
	IsReadOnly    bool            `json:"isReadOnly"`
	IsLoading     bool            `json:"isLoading"`
}

type validateRequest struct {
	FormStructure     json.RawMessage `json:"formStructure"`
	Values            forms.Values    `json:"values"`
	SignatureComplete bool            `json:"signatureComplete"`
	IsReadOnly        bool            `json:"isReadOnly"`
}

type submissionRequest struct {
	FormStructure     json.RawMessage `json:"formStructure"`
	User              *forms.User     `json:"user,omitempty"`
	Values            forms.Values    `json:"values"`
	SignatureComplete bool            `json:"signatureComplete"`
}

type errorResponse struct {
	Error   string       `json:"error"`
	Code    string       `json:"code,omitempty"`
	Details []string     `json:"details,omitempty"`
	Errors  forms.Errors `json:"errors,omitempty"`
}

func (s *Server) renderForm(c echo.Context) error {
	var req renderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid json: " + err.Error()})
	}

	session, err := s.newSession(req.FormStructure, req.Record, req.User,
		forms.WithReadOnly(req.IsReadOnly),
		forms.WithLoading(req.IsLoading),
	)
	if err != nil {
		return schemaFailure(c, err)
	}

	for id, v := range req.Values {
		session.SetValue(id, v)
	}
	if req.Signed {
		session.Sign()
	}
	if req.ShowErrors {
		session.Validate()
	}
	return c.JSON(http.StatusOK, session.Render())
}

func (s *Server) validateForm(c echo.Context) error {
	var req validateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid json: " + err.Error()})
	}

	structure, err := forms.ParseStructureJSON(req.FormStructure)
	if err != nil {
		return schemaFailure(c, err)
	}

	result := forms.Validate(structure, req.Values, req.SignatureComplete, req.IsReadOnly)
	metrics.RecordValidation(result.Valid, forms.ErrorFieldTypes(structure, result.Errors))
	return c.JSON(http.StatusOK, result)
}

func (s *Server) buildSubmission(c echo.Context) error {
	var req submissionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid json: " + err.Error()})
	}

	session, err := s.newSession(req.FormStructure, nil, req.User)
	if err != nil {
		return schemaFailure(c, err)
	}
	for id, v := range req.Values {
		session.SetValue(id, v)
	}
	if req.SignatureComplete {
		session.Sign()
	}

	payload, err := session.Submit(nil)
	var vErr *forms.ValidationFailedError
	switch {
	case errors.As(err, &vErr):
		metrics.RecordValidation(false, forms.ErrorFieldTypes(session.Structure(), vErr.Errors))
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{
			Error:  forms.MsgFormIncomplete,
			Code:   string(apperrors.ErrCodeFormValidationFailed),
			Errors: vErr.Errors,
		})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	metrics.RecordValidation(true, nil)
	return c.JSON(http.StatusOK, payload)
}

func (s *Server) submitControl(c echo.Context) error {
	if s.opts.Submitter == nil {
		return c.JSON(http.StatusNotImplemented, errorResponse{Error: "control submission is not configured"})
	}

	var input submitcontrolrecord.Input
	if err := c.Bind(&input); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid json: " + err.Error()})
	}

	ctx := c.Request().Context()
	out, err := s.opts.Submitter.Execute(ctx, &input)
	if err != nil {
		return standardFailure(c, err)
	}

	if s.opts.Publisher != nil {
		vars := map[string]interface{}{
			"recordId":     out.RecordID,
			"templateId":   out.TemplateID,
			"templateName": out.TemplateName,
			"completedAt":  out.CompletedAt,
			"payload":      out.Payload,
		}
		if err := s.opts.Publisher.PublishControlCompleted(ctx, out.RecordID, vars); err != nil {
			// the record is stored; the process can still be correlated later
			s.logger.Warn("failed to publish control completion", map[string]interface{}{
				"recordId": out.RecordID,
				"error":    err,
			})
		}
	}
	return c.JSON(http.StatusCreated, out)
}

func (s *Server) newSession(raw json.RawMessage, record *forms.Record, user *forms.User, opts ...forms.Option) (*forms.Session, error) {
	base := []forms.Option{
		forms.WithUser(user),
		forms.WithClock(s.opts.Clock),
		forms.WithLocation(s.opts.Location),
		forms.WithDefaultUserName(s.opts.DefaultUserName),
		forms.WithLogger(s.logger),
	}
	tmpl := forms.Template{FormStructure: forms.StructureSource(raw)}
	return forms.NewSession(tmpl, record, append(base, opts...)...)
}

func schemaFailure(c echo.Context, err error) error {
	resp := errorResponse{
		Error: forms.MsgSchemaLoadFailed,
		Code:  string(apperrors.ErrCodeFormSchemaInvalid),
	}
	var schemaErr *forms.SchemaError
	if errors.As(err, &schemaErr) {
		resp.Details = schemaErr.Problems
		if schemaErr.Cause != nil {
			resp.Details = append(resp.Details, schemaErr.Cause.Error())
		}
	}
	return c.JSON(http.StatusUnprocessableEntity, resp)
}

func standardFailure(c echo.Context, err error) error {
	stdErr := apperrors.Normalize(err)
	resp := errorResponse{
		Error: stdErr.Message,
		Code:  string(stdErr.Code),
	}
	if fieldErrors, ok := stdErr.Metadata["errors"].(map[string]string); ok {
		resp.Errors = fieldErrors
	}
	return c.JSON(httpStatus(stdErr), resp)
}

func httpStatus(stdErr *apperrors.StandardError) int {
	switch stdErr.Code {
	case apperrors.ErrCodeParseError:
		return http.StatusBadRequest
	case apperrors.ErrCodeTemplateNotFound, apperrors.ErrCodeRecordNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeRecordAlreadyComplete:
		return http.StatusConflict
	case apperrors.ErrCodeFormSchemaInvalid, apperrors.ErrCodeFormValidationFailed, apperrors.ErrCodeRecordDataInvalid:
		return http.StatusUnprocessableEntity
	}
	if stdErr.Retryable {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
