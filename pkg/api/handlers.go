package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/newtron-network/devapi/pkg/audit"
	"github.com/newtron-network/devapi/pkg/executor"
	"github.com/newtron-network/devapi/pkg/interaction"
	"github.com/newtron-network/devapi/pkg/util"
	"github.com/newtron-network/devapi/pkg/version"
)

const (
	msgRequired       = "This field is required."
	msgDryRunUpdated  = "Dry run mode updated successfully."
	prefixConfigure   = "Configuration failed: "
	prefixInterfaces  = "Failed to retrieve interfaces: "
	defaultAuditLimit = 100
)

// loopbackRequest mirrors LoopbackIntent with pointers so absent fields
// can be told apart from zero values.
type loopbackRequest struct {
	LoopbackNumber *int    `json:"loopback_number"`
	IPAddress      *string `json:"ip_address"`
	SubnetMask     *string `json:"subnet_mask"`
}

func (req loopbackRequest) intent() (interaction.LoopbackIntent, error) {
	errs := util.FieldErrors{}
	errs.Add(req.LoopbackNumber != nil, interaction.FieldLoopbackNumber, msgRequired)
	errs.Add(req.IPAddress != nil, interaction.FieldIPAddress, msgRequired)
	errs.Add(req.SubnetMask != nil, interaction.FieldSubnetMask, msgRequired)
	if errs.HasErrors() {
		return interaction.LoopbackIntent{}, errs.Build()
	}

	intent := interaction.LoopbackIntent{
		Number:     *req.LoopbackNumber,
		IPAddress:  strings.TrimSpace(*req.IPAddress),
		SubnetMask: strings.TrimSpace(*req.SubnetMask),
	}
	return intent, intent.Validate()
}

type dryRunRequest struct {
	DryRunMode *bool `json:"dry_run_mode"`
}

func (s *Server) configureLoopback(w http.ResponseWriter, r *http.Request) {
	var req loopbackRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	intent, err := req.intent()
	if err != nil {
		writeError(w, err)
		return
	}

	out, err := s.svc.ConfigureLoopback(r.Context(), intent)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCommandOutcome(w, out)
}

func (s *Server) deleteLoopback(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.DeleteLoopback(r.Context(), mux.Vars(r)["loopback_number"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeCommandOutcome(w, out)
}

func (s *Server) listInterfaces(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.ListInterfaces(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	switch out.Status {
	case executor.StatusApplied:
		writeJSON(w, http.StatusOK, out.Document)
	case executor.StatusDryRun:
		writeJSON(w, http.StatusOK, map[string]string{"filter": out.Preview.Filter})
	default:
		writeFailure(w, prefixInterfaces, out)
	}
}

func (s *Server) setDryRun(w http.ResponseWriter, r *http.Request) {
	var req dryRunRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.DryRunMode == nil {
		writeError(w, util.FieldErrors{}.AddErrorf("dry_run_mode", msgRequired).Build())
		return
	}

	s.svc.SetDryRun(r.Context(), *req.DryRunMode)
	writeJSON(w, http.StatusOK, map[string]string{"status": msgDryRunUpdated})
}

func (s *Server) getDryRun(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"dry_run_mode": s.svc.DryRun()})
}

func (s *Server) queryAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		Device:      q.Get("device"),
		Operation:   q.Get("operation"),
		FailureOnly: q.Get("failures") == "true",
		Limit:       defaultAuditLimit,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, util.NewFieldValidationError("limit", "A valid positive integer is required."))
			return
		}
		filter.Limit = n
	}

	events, err := s.svc.Audit(filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"version":      version.Version,
		"dry_run_mode": s.svc.DryRun(),
	})
}

// writeCommandOutcome renders the outcome of a configuration change:
// 202 applied, 200 preview, 500 failed.
func writeCommandOutcome(w http.ResponseWriter, out *executor.Outcome) {
	switch out.Status {
	case executor.StatusApplied:
		writeJSON(w, http.StatusAccepted, map[string]string{"message": out.Message})
	case executor.StatusDryRun:
		writeJSON(w, http.StatusOK, map[string][]string{"commands": out.Preview.Commands})
	default:
		writeFailure(w, prefixConfigure, out)
	}
}

func writeFailure(w http.ResponseWriter, prefix string, out *executor.Outcome) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": prefix + out.Detail,
		"kind":  string(out.Kind),
	})
}

// writeError maps caller and configuration errors to responses.
func writeError(w http.ResponseWriter, err error) {
	var fve *util.FieldValidationError
	var ve *util.ValidationError
	switch {
	case errors.As(err, &fve):
		writeJSON(w, http.StatusBadRequest, fve.Fields)
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody(strings.Join(ve.Errors, " ")))
	case errors.Is(err, util.ErrValidationFailed):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		util.Errorf("%v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return util.NewValidationError("Request body is empty.")
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return util.FieldErrors{}.AddErrorf(typeErr.Field, "Incorrect type. Expected %s.", typeErr.Type).Build()
		}
		return util.NewValidationError("JSON parse error: " + err.Error())
	}
	return nil
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		util.Warnf("Writing response: %v", err)
	}
}
