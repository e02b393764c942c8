package wizard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"upgradewatch/internal/interfaces"
	"upgradewatch/internal/upgrade"
	pkgerrors "upgradewatch/pkg/errors"
	"upgradewatch/pkg/http/response"
)

// Error variables for err113 compliance.
var (
	errWizardEndpointNotFound = errors.New("wizard endpoint not found")
	errInvalidItemRef         = errors.New("invalid upgrade item reference")
)

//nolint:gochecknoglobals // compiled once
var (
	actionPattern  = regexp.MustCompile(`^/items/([0-9]+)/([0-9]+)/([a-z]+)$`)
	confirmPattern = regexp.MustCompile(`^/items/([0-9]+)/([0-9]+)/confirm-manual$`)
)

// Prefix is the path prefix the handler is mounted under.
const Prefix = "/u"

// Controller is the part of upgrade.Manager the handler drives.
type Controller interface {
	ClusterName() string
	Loaded() bool
	State() upgrade.State
	Snapshot() *upgrade.Snapshot
	ConfirmManualStep(done bool)
	Apply(ctx context.Context, action upgrade.Action, ref upgrade.ItemRef) error
}

// Handler serves the upgrade wizard endpoints.
type Handler struct {
	logger     interfaces.Logger
	controller Controller
	hub        *Hub
}

// Dependencies contains all dependencies needed by the wizard handler.
type Dependencies struct {
	Logger     interfaces.Logger
	Controller Controller
	Hub        *Hub
}

// ConfirmRequest is the body of a confirm-manual call. Done defaults to true.
type ConfirmRequest struct {
	Done *bool `json:"done"`
}

// HealthResponse reports whether the wizard has upgrade data.
type HealthResponse struct {
	Status   string `json:"status"`
	Cluster  string `json:"cluster"`
	Loaded   bool   `json:"loaded"`
	Watchers int    `json:"watchers"`
}

// NewHandler creates a new wizard handler.
func NewHandler(deps Dependencies) *Handler {
	hub := deps.Hub
	if hub == nil {
		hub = NewHub(deps.Logger)
	}

	return &Handler{
		logger:     deps.Logger.Named("wizard-handler"),
		controller: deps.Controller,
		hub:        hub,
	}
}

// ServeHTTP routes /u/* requests.
func (h *Handler) ServeHTTP(writer http.ResponseWriter, req *http.Request) {
	path := strings.TrimPrefix(req.URL.Path, Prefix)

	switch {
	case path == "/wizard" && req.Method == http.MethodGet:
		h.GetWizard(writer, req)

		return
	case path == "/upgrade" && req.Method == http.MethodGet:
		h.GetUpgrade(writer, req)

		return
	case path == "/watch" && req.Method == http.MethodGet:
		h.Watch(writer, req)

		return
	case path == "/health" && req.Method == http.MethodGet:
		h.Health(writer, req)

		return
	}

	if m := confirmPattern.FindStringSubmatch(path); m != nil && req.Method == http.MethodPost {
		ref, err := parseItemRef(m[1], m[2])
		if err != nil {
			response.WriteError(writer, http.StatusBadRequest, err.Error())

			return
		}

		h.ConfirmManual(writer, req, ref)

		return
	}

	if m := actionPattern.FindStringSubmatch(path); m != nil && req.Method == http.MethodPost {
		ref, err := parseItemRef(m[1], m[2])
		if err != nil {
			response.WriteError(writer, http.StatusBadRequest, err.Error())

			return
		}

		h.ApplyAction(writer, req, m[3], ref)

		return
	}

	response.WriteError(writer, http.StatusNotFound, errWizardEndpointNotFound.Error())
}

// GetWizard returns the current wizard state.
func (h *Handler) GetWizard(writer http.ResponseWriter, _ *http.Request) {
	response.WriteSuccess(writer, h.controller.State())
}

// GetUpgrade returns the cached upgrade snapshot.
func (h *Handler) GetUpgrade(writer http.ResponseWriter, _ *http.Request) {
	snapshot := h.controller.Snapshot()
	if snapshot == nil {
		response.WriteError(writer, http.StatusServiceUnavailable, pkgerrors.ErrNotLoaded.Error())

		return
	}

	response.WriteSuccess(writer, snapshot)
}

// ApplyAction runs one of continue, retry, complete or cancel on an item.
func (h *Handler) ApplyAction(writer http.ResponseWriter, req *http.Request, name string, ref upgrade.ItemRef) {
	logger := h.logger.WithFields(map[string]interface{}{
		"group": ref.GroupID,
		"stage": ref.StageID,
	})

	action, err := upgrade.ParseAction(name)
	if err != nil {
		response.WriteError(writer, http.StatusBadRequest, err.Error())

		return
	}

	logger.Infof("Applying %s", action)

	err = h.controller.Apply(req.Context(), action, ref)
	if err != nil {
		logger.Warnf("Failed to apply %s: %v", action, err)
		response.WriteError(writer, statusFor(err), err.Error())

		return
	}

	response.WriteSuccess(writer, h.controller.State())
}

// ConfirmManual records the operator's manual-step checkbox.
func (h *Handler) ConfirmManual(writer http.ResponseWriter, req *http.Request, ref upgrade.ItemRef) {
	var body ConfirmRequest

	if req.ContentLength != 0 {
		err := response.ParseJSON(req.Body, &body)
		if err != nil {
			response.WriteError(writer, http.StatusBadRequest, err.Error())

			return
		}
	}

	done := true
	if body.Done != nil {
		done = *body.Done
	}

	state := h.controller.State()
	if state.ManualItem == nil || state.ManualItem.Ref() != ref {
		response.WriteError(writer, http.StatusNotFound,
			fmt.Sprintf("%v: group %d stage %d is not awaiting a manual step", upgrade.ErrItemNotFound, ref.GroupID, ref.StageID))

		return
	}

	h.controller.ConfirmManualStep(done)
	response.WriteSuccess(writer, h.controller.State())
}

// Watch upgrades to a WebSocket that receives every new wizard state.
func (h *Handler) Watch(writer http.ResponseWriter, req *http.Request) {
	err := h.hub.ServeWS(writer, req, h.controller.State())
	if err != nil {
		h.logger.Debugf("Watch ended: %v", err)
	}
}

// Health reports loaded state and watcher count.
func (h *Handler) Health(writer http.ResponseWriter, _ *http.Request) {
	status := "ok"
	if !h.controller.Loaded() {
		status = "loading"
	}

	response.WriteSuccess(writer, HealthResponse{
		Status:   status,
		Cluster:  h.controller.ClusterName(),
		Loaded:   h.controller.Loaded(),
		Watchers: h.hub.Watchers(),
	})
}

func parseItemRef(group, stage string) (upgrade.ItemRef, error) {
	groupID, err := strconv.ParseInt(group, 10, 64)
	if err != nil {
		return upgrade.ItemRef{}, fmt.Errorf("%w: group %q", errInvalidItemRef, group)
	}

	stageID, err := strconv.ParseInt(stage, 10, 64)
	if err != nil {
		return upgrade.ItemRef{}, fmt.Errorf("%w: stage %q", errInvalidItemRef, stage)
	}

	return upgrade.ItemRef{GroupID: groupID, StageID: stageID}, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, upgrade.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, upgrade.ErrContinueNotAllowed), errors.Is(err, upgrade.ErrManualStepNotConfirmed):
		return http.StatusConflict
	case errors.Is(err, upgrade.ErrUnknownAction):
		return http.StatusBadRequest
	case errors.Is(err, pkgerrors.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
