package handlers

import (
	"net/http"

	"sonoff_server/internal/service"

	"github.com/gin-gonic/gin"
)

// @Summary      List timers
// @Tags         timers
// @Produce      json
// @Param        id   path      string  true  "Device id"
// @Success      200  {array}   models.Timer
// @Failure      404  {object}  map[string]string
// @Router       /devices/{id}/timers [get]
// @Security     BearerAuth
func (h *Handler) listTimers(c *gin.Context) {
	id := c.Param("id")
	timers, err := h.services.Timers.List(c.Request.Context(), id)
	if err != nil {
		h.respondServiceError(c, err, "timers_list_failed", "deviceid", id)
		return
	}
	c.JSON(http.StatusOK, timers)
}

// @Summary      Create timer
// @Description  The timer is stored, then the whole timer list is pushed to the device.
// @Tags         timers
// @Accept       json
// @Produce      json
// @Param        id    path      string              true  "Device id"
// @Param        body  body      service.TimerInput  true  "Timer"
// @Success      200   {object}  models.Timer
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      502   {object}  map[string]interface{}
// @Failure      503   {object}  map[string]interface{}
// @Failure      504   {object}  map[string]interface{}
// @Router       /devices/{id}/timers [post]
// @Security     BearerAuth
func (h *Handler) createTimer(c *gin.Context) {
	var in service.TimerInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	t, err := h.services.Timers.Create(c.Request.Context(), c.Param("id"), in)
	h.respondStored(c, "timer", t, err, "timer_create_failed")
}

// @Summary      Get timer
// @Tags         timers
// @Produce      json
// @Param        id       path      string  true  "Device id"
// @Param        timerId  path      string  true  "Timer id"
// @Success      200      {object}  models.Timer
// @Failure      404      {object}  map[string]string
// @Router       /devices/{id}/timers/{timerId} [get]
// @Security     BearerAuth
func (h *Handler) getTimer(c *gin.Context) {
	id, timerID := c.Param("id"), c.Param("timerId")
	t, err := h.services.Timers.Get(c.Request.Context(), id, timerID)
	if err != nil {
		h.respondServiceError(c, err, "timer_get_failed", "deviceid", id, "timer_id", timerID)
		return
	}
	c.JSON(http.StatusOK, t)
}

// @Summary      Update timer
// @Tags         timers
// @Accept       json
// @Produce      json
// @Param        id       path      string              true  "Device id"
// @Param        timerId  path      string              true  "Timer id"
// @Param        body     body      service.TimerInput  true  "Fields to change"
// @Success      200      {object}  models.Timer
// @Failure      400      {object}  map[string]string
// @Failure      404      {object}  map[string]string
// @Failure      502      {object}  map[string]interface{}
// @Failure      503      {object}  map[string]interface{}
// @Failure      504      {object}  map[string]interface{}
// @Router       /devices/{id}/timers/{timerId} [patch]
// @Security     BearerAuth
func (h *Handler) updateTimer(c *gin.Context) {
	var in service.TimerInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	t, err := h.services.Timers.Update(c.Request.Context(), c.Param("id"), c.Param("timerId"), in)
	h.respondStored(c, "timer", t, err, "timer_update_failed")
}

// @Summary      Delete timer
// @Tags         timers
// @Produce      json
// @Param        id       path      string  true  "Device id"
// @Param        timerId  path      string  true  "Timer id"
// @Success      200      {object}  map[string]interface{}
// @Failure      404      {object}  map[string]string
// @Failure      503      {object}  map[string]interface{}
// @Router       /devices/{id}/timers/{timerId} [delete]
// @Security     BearerAuth
func (h *Handler) deleteTimer(c *gin.Context) {
	err := h.services.Timers.Delete(c.Request.Context(), c.Param("id"), c.Param("timerId"))
	h.respondStored(c, "timer", gin.H{"id": c.Param("timerId")}, err, "timer_delete_failed")
}
