package management

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/openhie/txrouter/internal/constants"
	"github.com/openhie/txrouter/internal/logger"
	"github.com/openhie/txrouter/pkg/errors"
)

type BaseHandler struct {
	Service Service
	Logger  logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

type Handler struct {
	BaseHandler
}

func NewHandler(service Service, log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: BaseHandler{
			Service: service,
			Logger:  log,
		},
	}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	v1 := router.Group("/api/v1")
	{
		channels := v1.Group("/channels")
		{
			channels.GET("", h.ListChannels)
			channels.POST("", h.CreateChannel)
			channels.GET("/:id", h.GetChannel)
			channels.PUT("/:id", h.UpdateChannel)
			channels.DELETE("/:id", h.DeleteChannel)
			channels.GET("/:id/versions", h.GetChannelVersions)
			channels.GET("/:id/audit", h.GetChannelAuditLogs)
		}

		audit := v1.Group("/audit")
		{
			audit.GET("/logs", h.GetAuditLogs)
		}
	}
}

// ListChannels godoc
// @Summary      List all channels
// @Description  Get a list of all configured routing channels
// @Tags         channels
// @Accept       json
// @Produce      json
// @Success      200  {array}    Channel
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /channels [get]
func (h *Handler) ListChannels(c *gin.Context) {
	channels, err := h.Service.ListChannels(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, channels)
}

// CreateChannel godoc
// @Summary      Create a new channel
// @Description  Create a new routing channel with the provided routes
// @Tags         channels
// @Accept       json
// @Produce      json
// @Param        channel  body       CreateChannelRequest  true  "Channel data"
// @Success      201      {object}   Channel
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      409      {object}  errors.ErrorResponse
// @Failure      500      {object}  errors.ErrorResponse
// @Router       /channels [post]
func (h *Handler) CreateChannel(c *gin.Context) {
	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	channel, err := h.Service.CreateChannel(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, channel)
}

// GetChannel godoc
// @Summary      Get a channel by ID
// @Description  Get a specific channel by its ID
// @Tags         channels
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Channel ID"
// @Success      200  {object}   Channel
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /channels/{id} [get]
func (h *Handler) GetChannel(c *gin.Context) {
	id := c.Param("id")
	channel, err := h.Service.GetChannel(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, channel)
}

// UpdateChannel godoc
// @Summary      Update a channel
// @Description  Update an existing channel by ID
// @Tags         channels
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Channel ID"
// @Param        channel  body       UpdateChannelRequest  true  "Updated channel data"
// @Success      200      {object}   Channel
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      404      {object}  errors.ErrorResponse
// @Failure      500      {object}  errors.ErrorResponse
// @Router       /channels/{id} [put]
func (h *Handler) UpdateChannel(c *gin.Context) {
	id := c.Param("id")
	var req UpdateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	channel, err := h.Service.UpdateChannel(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, channel)
}

// DeleteChannel godoc
// @Summary      Delete a channel
// @Description  Delete a channel by ID
// @Tags         channels
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Channel ID"
// @Success      204  "No Content"
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /channels/{id} [delete]
func (h *Handler) DeleteChannel(c *gin.Context) {
	id := c.Param("id")
	err := h.Service.DeleteChannel(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetChannelVersions godoc
// @Summary      Get channel version history
// @Description  Get version history for a specific channel
// @Tags         channels
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Channel ID"
// @Success      200  {array}   ChannelVersion
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /channels/{id}/versions [get]
func (h *Handler) GetChannelVersions(c *gin.Context) {
	id := c.Param("id")
	versions, err := h.Service.GetChannelVersions(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

// GetChannelAuditLogs godoc
// @Summary      Get audit logs for a channel
// @Description  Get audit logs for a specific channel
// @Tags         channels
// @Accept       json
// @Produce      json
// @Param        id     path      string  true   "Channel ID"
// @Param        limit  query     int     false  "Maximum number of logs to return (1-1000)" default(100)
// @Success      200    {array}   AuditLog
// @Failure      404    {object}  errors.ErrorResponse
// @Failure      500    {object}  errors.ErrorResponse
// @Router       /channels/{id}/audit [get]
func (h *Handler) GetChannelAuditLogs(c *gin.Context) {
	id := c.Param("id")
	limit := parseLimit(c.Query("limit"))

	logs, err := h.Service.GetAuditLogs(c.Request.Context(), &id, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// GetAuditLogs godoc
// @Summary      Get audit logs
// @Description  Get audit logs with optional filtering by channel ID
// @Tags         audit
// @Accept       json
// @Produce      json
// @Param        channel_id  query     string  false  "Filter by channel ID"
// @Param        limit       query     int     false  "Maximum number of logs to return (1-1000)" default(100)
// @Success      200         {array}   AuditLog
// @Failure      500         {object}  errors.ErrorResponse
// @Router       /audit/logs [get]
func (h *Handler) GetAuditLogs(c *gin.Context) {
	channelID := c.Query("channel_id")
	limit := parseLimit(c.Query("limit"))

	var channelIDPtr *string
	if channelID != "" {
		channelIDPtr = &channelID
	}

	logs, err := h.Service.GetAuditLogs(c.Request.Context(), channelIDPtr, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func parseLimit(limitStr string) int {
	if limitStr == "" {
		return constants.DefaultLimit
	}
	parsed, err := strconv.Atoi(limitStr)
	if err != nil || parsed <= 0 || parsed > constants.MaxLimit {
		return constants.DefaultLimit
	}
	return parsed
}
