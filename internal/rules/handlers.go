package rules

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

type entryLister interface {
	ListEntries(ctx context.Context) ([]*Entry, error)
}

// Handlers provides HTTP handlers for rule and setting operations.
type Handlers struct {
	store Store
}

// NewHandlers creates new rule handlers. store may be nil when no rule store
// is configured; every route then answers 503.
func NewHandlers(store Store) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes registers the rule routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Delete)
}

// RegisterSettingsRoutes registers the settings routes.
func (h *Handlers) RegisterSettingsRoutes(g *echo.Group) {
	g.GET("/:key", h.GetSetting)
	g.PUT("/:key", h.PutSetting)
}

func (h *Handlers) editor() (Editor, error) {
	if ed, ok := h.store.(Editor); ok && ed != nil {
		return ed, nil
	}
	return nil, echo.NewHTTPError(http.StatusServiceUnavailable, ErrStoreUnavailable.Error())
}

// List returns all rule entries.
// GET /api/v1/rules
func (h *Handlers) List(c echo.Context) error {
	lister, ok := h.store.(entryLister)
	if !ok || h.store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, ErrStoreUnavailable.Error())
	}

	entries, err := lister.ListEntries(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	if entries == nil {
		entries = []*Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}

// Get returns a single rule entry.
// GET /api/v1/rules/:id
func (h *Handlers) Get(c echo.Context) error {
	ed, err := h.editor()
	if err != nil {
		return err
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	entry, err := ed.GetEntry(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, entry)
}

// Create adds a rule entry.
// POST /api/v1/rules
func (h *Handlers) Create(c echo.Context) error {
	ed, err := h.editor()
	if err != nil {
		return err
	}

	var input CreateEntryInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	entry, err := ed.CreateEntry(c.Request().Context(), input)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, entry)
}

// Delete removes a rule entry.
// DELETE /api/v1/rules/:id
func (h *Handlers) Delete(c echo.Context) error {
	ed, err := h.editor()
	if err != nil {
		return err
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := ed.DeleteEntry(c.Request().Context(), id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetSetting returns one setting. JSON-encoded values are decoded.
// GET /api/v1/settings/:key
func (h *Handlers) GetSetting(c echo.Context) error {
	if h.store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, ErrStoreUnavailable.Error())
	}

	key := c.Param("key")
	raw, ok, err := h.store.GetSetting(c.Request().Context(), key)
	if err != nil {
		return mapError(err)
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, ErrSettingNotFound.Error())
	}

	var value any = raw
	var decoded any
	if json.Unmarshal([]byte(raw), &decoded) == nil {
		switch decoded.(type) {
		case []any, map[string]any:
			value = decoded
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"key": key, "value": value})
}

// PutSetting stores one setting. Lists and objects are stored JSON-encoded.
// PUT /api/v1/settings/:key
func (h *Handlers) PutSetting(c echo.Context) error {
	ed, err := h.editor()
	if err != nil {
		return err
	}

	var body struct {
		Value json.RawMessage `json:"value"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(body.Value) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "value is required")
	}

	value := string(body.Value)
	var s string
	if json.Unmarshal(body.Value, &s) == nil {
		value = s
	} else {
		value = strings.TrimSpace(value)
	}

	key := c.Param("key")
	if err := ed.SetSetting(c.Request().Context(), key, value); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"key": key, "status": "ok"})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrStoreUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ErrRuleNotFound), errors.Is(err, ErrSettingNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidRule):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrDuplicateRule):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
