package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/open-bas/open-bas/internal/connectors/configstore"
	"github.com/open-bas/open-bas/internal/connectors/registry"
	"github.com/open-bas/open-bas/internal/sync"
)

// IntegrationView is one integration in the status snapshot. Secret configuration
// values are masked.
type IntegrationView struct {
	ID              string         `json:"id"`
	Factory         string         `json:"factory"`
	DisplayName     string         `json:"display_name"`
	Role            string         `json:"role"`
	Builtin         bool           `json:"builtin"`
	Status          string         `json:"status"`
	RequestedStatus string         `json:"requested_status"`
	Source          string         `json:"source,omitempty"`
	ScheduledTasks  int            `json:"scheduled_tasks"`
	Configuration   map[string]any `json:"configuration"`
	UpdatedAt       *time.Time     `json:"updated_at,omitempty"`
}

type IntegrationsResponse struct {
	Integrations []IntegrationView `json:"integrations"`
	Started      int               `json:"started"`
}

// HandleIntegrations returns the integrations known to the manager. The manager is
// built, and its first pass run, on the first request. A first pass that failed
// still yields a snapshot; the failing integrations show as stopped.
func (h *Handlers) HandleIntegrations(c *echo.Context) error {
	if h.Managers == nil {
		return renderStatus(c, http.StatusServiceUnavailable, "MANAGER_NOT_CONFIGURED")
	}
	m, err := h.Managers.Get(c.Request().Context())
	if m == nil {
		if err == nil {
			err = sync.ErrManagerNotConfigured
		}
		return h.renderManagerError(c, err)
	}
	if err != nil {
		c.Logger().Warn("integration snapshot after failed pass", "err", err)
	}
	return c.JSON(http.StatusOK, snapshot(m))
}

// HandleReconcile runs one reconciliation pass and answers with the resulting snapshot.
func (h *Handlers) HandleReconcile(c *echo.Context) error {
	if h.Managers == nil {
		return renderStatus(c, http.StatusServiceUnavailable, "MANAGER_NOT_CONFIGURED")
	}
	ctx := c.Request().Context()
	if err := h.Managers.Reconcile(ctx); err != nil {
		return h.renderManagerError(c, err)
	}
	m, err := h.Managers.Get(ctx)
	if err != nil {
		return h.renderManagerError(c, err)
	}
	return c.JSON(http.StatusOK, snapshot(m))
}

func (h *Handlers) renderManagerError(c *echo.Context, err error) error {
	switch {
	case errors.Is(err, sync.ErrManagerNotConfigured):
		return renderStatus(c, http.StatusServiceUnavailable, "MANAGER_NOT_CONFIGURED")
	case errors.Is(err, sync.ErrReconcileAlreadyRunning):
		return renderStatus(c, http.StatusConflict, "RECONCILE_RUNNING")
	default:
		return h.RenderError(c, err)
	}
}

func snapshot(m *sync.Manager) IntegrationsResponse {
	defs := make(map[string]registry.ConnectorDefinition)
	for _, f := range m.Factories() {
		defs[f.Key()] = f.Definition()
	}

	integrations := m.Integrations()
	out := IntegrationsResponse{Integrations: make([]IntegrationView, 0, len(integrations))}
	for _, i := range integrations {
		inst := i.Instance()
		view := IntegrationView{
			ID:              i.ID(),
			Factory:         i.FactoryKey(),
			Status:          string(i.Status()),
			RequestedStatus: string(inst.RequestedStatus),
			Source:          inst.Source,
			ScheduledTasks:  i.ScheduledTasks(),
		}
		if !inst.UpdatedAt.IsZero() {
			updated := inst.UpdatedAt.UTC()
			view.UpdatedAt = &updated
		}

		var secrets []string
		if def, ok := defs[i.FactoryKey()]; ok {
			view.DisplayName = def.DisplayName()
			view.Role = string(def.Role())
			if b, ok := def.(registry.Builtin); ok {
				view.Builtin = b.Builtin()
			}
			for _, field := range registry.ConfigSchema(def.ConfigPrototype()) {
				if field.Secret {
					secrets = append(secrets, field.Key)
				}
			}
		}
		view.Configuration = configstore.RedactSecrets(inst.Configuration, secrets)

		if i.Status() == registry.StatusStarted {
			out.Started++
		}
		out.Integrations = append(out.Integrations, view)
	}
	return out
}
