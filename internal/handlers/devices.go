package handlers

import (
	"net/http"

	"sonoff_server/internal/service"

	"github.com/gin-gonic/gin"
)

// @Summary      List devices
// @Tags         devices
// @Produce      json
// @Success      200  {array}   service.DeviceView
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /devices [get]
// @Security     BearerAuth
func (h *Handler) listDevices(c *gin.Context) {
	devices, err := h.services.Devices.List(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, err, "devices_list_failed")
		return
	}
	c.JSON(http.StatusOK, devices)
}

// @Summary      Create device
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        body  body      service.DeviceInput  true  "Device"
// @Success      201   {object}  service.DeviceView
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /devices [post]
// @Security     BearerAuth
func (h *Handler) createDevice(c *gin.Context) {
	var in service.DeviceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	d, err := h.services.Devices.Create(c.Request.Context(), in)
	if err != nil {
		h.respondServiceError(c, err, "device_create_failed", "deviceid", in.ID)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// @Summary      Get device
// @Tags         devices
// @Produce      json
// @Param        id   path      string  true  "Device id"
// @Success      200  {object}  service.DeviceView
// @Failure      404  {object}  map[string]string
// @Router       /devices/{id} [get]
// @Security     BearerAuth
func (h *Handler) getDevice(c *gin.Context) {
	id := c.Param("id")
	d, err := h.services.Devices.Get(c.Request.Context(), id)
	if err != nil {
		h.respondServiceError(c, err, "device_get_failed", "deviceid", id)
		return
	}
	c.JSON(http.StatusOK, d)
}

// @Summary      Update device
// @Description  Changes to state are stored, then pushed to the device. If the push fails the
// @Description  response carries stored=true and 503 (offline), 502 (rejected) or 504 (timeout).
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id    path      string                true  "Device id"
// @Param        body  body      service.DeviceUpdate  true  "Fields to change"
// @Success      200   {object}  service.DeviceView
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      502   {object}  map[string]interface{}
// @Failure      503   {object}  map[string]interface{}
// @Failure      504   {object}  map[string]interface{}
// @Router       /devices/{id} [patch]
// @Security     BearerAuth
func (h *Handler) updateDevice(c *gin.Context) {
	id := c.Param("id")
	var in service.DeviceUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	d, err := h.services.Devices.Update(c.Request.Context(), id, in)
	h.respondStored(c, "device", d, err, "device_update_failed")
}

// @Summary      Delete device
// @Tags         devices
// @Produce      json
// @Param        id   path      string  true  "Device id"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /devices/{id} [delete]
// @Security     BearerAuth
func (h *Handler) deleteDevice(c *gin.Context) {
	id := c.Param("id")
	if err := h.services.Devices.Delete(c.Request.Context(), id); err != nil {
		h.respondServiceError(c, err, "device_delete_failed", "deviceid", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Device successfully deleted"})
}
