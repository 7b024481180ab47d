// internal/api/handlers.go
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Corphon/SceneScriptForm/internal/errors"
	"github.com/Corphon/SceneScriptForm/internal/models"
	"github.com/Corphon/SceneScriptForm/internal/render"
	"github.com/Corphon/SceneScriptForm/internal/services"
	"github.com/Corphon/SceneScriptForm/internal/utils"
)

// Handler 处理表单页面和API请求
type Handler struct {
	Sessions         *services.SessionStore
	Submissions      *services.SubmissionService
	Metrics          *utils.MetricsCollector
	WebSocketManager *WebSocketManager
	WebSocketHandler *WebSocketHandler
	Limiter          *RateLimiter
	Response         *ResponseHelper
	logger           *utils.Logger
}

// NewHandler wires the handler set around a session store and controller.
func NewHandler(sessions *services.SessionStore, submissions *services.SubmissionService, metrics *utils.MetricsCollector) *Handler {
	manager := NewWebSocketManager(metrics)
	return &Handler{
		Sessions:         sessions,
		Submissions:      submissions,
		Metrics:          metrics,
		WebSocketManager: manager,
		WebSocketHandler: NewWebSocketHandler(sessions, manager),
		Limiter:          NewRateLimiter(10 * time.Minute),
		Response:         NewResponseHelper(),
		logger:           utils.GetLogger(),
	}
}

// SetFieldRequest is the body of PUT /api/sessions/:id/fields/:name.
type SetFieldRequest struct {
	Value *string `json:"value" binding:"required"`
}

// validateForm re-checks what the page's required selectors enforce.
func validateForm(form models.FormInput) error {
	if missing := form.Missing(); len(missing) > 0 {
		return apperrors.NewValidationError("Please fill in: "+strings.Join(missing, ", "), nil)
	}
	if !models.IsGenre(form.Genre) {
		return apperrors.NewValidationError(fmt.Sprintf("Unknown genre: %s", form.Genre), nil)
	}
	if !models.IsVisualStyle(form.VisualStyle) {
		return apperrors.NewValidationError(fmt.Sprintf("Unknown visual style: %s", form.VisualStyle), nil)
	}
	return nil
}

func sessionPath(id string) string {
	return "/sessions/" + id
}

// ------------------------------------------------
// 页面路由

// IndexPage starts a fresh form session.
func (h *Handler) IndexPage(c *gin.Context) {
	session := h.Sessions.Create()
	c.Redirect(http.StatusSeeOther, sessionPath(session.ID))
}

// SessionPage renders the form and whatever the session last produced. An
// expired or unknown session id starts over with a new session.
func (h *Handler) SessionPage(c *gin.Context) {
	session, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	h.renderPage(c, http.StatusOK, render.BuildView(session.Snapshot()))
}

// SubmitForm handles the page's form post: it stores the fields, validates
// them and starts generation in the background, then sends the browser back
// to the page, which shows the busy state.
func (h *Handler) SubmitForm(c *gin.Context) {
	session, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		c.String(http.StatusNotFound, apperrors.UserMessage(err))
		return
	}

	form := models.FormInput{
		Genre:       c.PostForm(models.FieldGenre),
		Theme:       c.PostForm(models.FieldTheme),
		VisualStyle: c.PostForm(models.FieldVisualStyle),
	}

	// a pending session keeps the fields its request was sent with
	if err := session.SetFormIfIdle(form); err != nil {
		if errors.Is(err, services.ErrSubmissionInFlight) {
			h.Metrics.SubmissionRejected()
		}
		h.renderNotice(c, statusOf(err), session, err)
		return
	}

	// validated again at start, so a concurrent post cannot slip unchecked fields in
	if err := h.Submissions.SubmitAsyncChecked(session, validateForm); err != nil {
		if apperrors.IsValidationError(err) {
			h.logger.Debug("form post rejected", map[string]interface{}{
				"session_id": session.ID,
				"reason":     err.Error(),
			})
		}
		h.renderNotice(c, statusOf(err), session, err)
		return
	}
	c.Redirect(http.StatusSeeOther, sessionPath(session.ID))
}

func (h *Handler) renderNotice(c *gin.Context, status int, session *services.FormSession, err error) {
	view := render.BuildView(session.Snapshot()).WithNotice(apperrors.UserMessage(err))
	h.renderPage(c, status, view)
}

func (h *Handler) renderPage(c *gin.Context, status int, view render.View) {
	c.HTML(status, render.IndexTemplate, render.NewPageData(view))
}

func statusOf(err error) int {
	status, _ := statusForError(err)
	return status
}

// ------------------------------------------------
// JSON API

// GetSession returns the session snapshot.
func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, session.Snapshot())
}

// CreateSession starts a session for API clients.
func (h *Handler) CreateSession(c *gin.Context) {
	session := h.Sessions.Create()
	c.Header("Location", "/api"+sessionPath(session.ID))
	h.Response.Created(c, session.Snapshot())
}

// SetField updates a single form field.
func (h *Handler) SetField(c *gin.Context) {
	session, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}

	var req SetFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "request body must be {\"value\": string}", err.Error())
		return
	}

	if err := session.SetField(c.Param("name"), *req.Value); err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, session.Snapshot())
}

// SubmitJSON runs a whole attempt and returns the resolved snapshot. A
// failed generation is still a 200: the outcome lives in the snapshot.
func (h *Handler) SubmitJSON(c *gin.Context) {
	session, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}

	snap, err := h.Submissions.SubmitChecked(c.Request.Context(), session, validateForm)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, snap)
}

// DeleteSession closes the session, cancelling any request in flight.
func (h *Handler) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.Sessions.Get(id); err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Sessions.Remove(id)
	h.Response.Success(c, gin.H{"session_id": id}, "session closed")
}

// Catalog returns the selectable options.
func (h *Handler) Catalog(c *gin.Context) {
	h.Response.Success(c, models.DefaultCatalog())
}

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// GetWebSocketStatus 获取 WebSocket 连接状态（调试用）
func (h *Handler) GetWebSocketStatus(c *gin.Context) {
	h.Response.Success(c, h.WebSocketManager.GetStatus())
}

// SessionWebSocket 处理会话 WebSocket 连接
func (h *Handler) SessionWebSocket(c *gin.Context) {
	h.WebSocketHandler.SessionWebSocket(c)
}

// Close releases the handler's connections and background work.
func (h *Handler) Close() {
	h.WebSocketManager.CloseAll()
	h.Limiter.Stop()
}
