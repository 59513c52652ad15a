package transport

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paulebil/UniHostel/internal/service"
)

type BookingHandler struct {
	bookingService service.BookingService
}

func NewBookingHandler(bookingService service.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

// CancelBookingRequest представляет запрос на отмену бронирования
type CancelBookingRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	booking, err := h.bookingService.CreateBooking(c.Request.Context(), principal(c), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Success: true,
		Message: "Booking created",
		Data:    booking,
	})
}

func (h *BookingHandler) GetBooking(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookingService.GetBooking(c.Request.Context(), principal(c), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: booking})
}

// CancelBooking cancels a booking. The request body with a reason is optional.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req CancelBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	booking, err := h.bookingService.CancelBooking(c.Request.Context(), principal(c), id, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Booking cancelled",
		Data:    booking,
	})
}

func (h *BookingHandler) GetMyBookings(c *gin.Context) {
	bookings, err := h.bookingService.ListBookingsByGuest(c.Request.Context(), principal(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    bookings,
		Meta:    gin.H{"count": len(bookings)},
	})
}

func (h *BookingHandler) GetOwnerBookings(c *gin.Context) {
	bookings, err := h.bookingService.ListBookingsByOwner(c.Request.Context(), principal(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    bookings,
		Meta:    gin.H{"count": len(bookings)},
	})
}

func (h *BookingHandler) GetHostelBookings(c *gin.Context) {
	hostelID, ok := parseID(c, "hostel_id")
	if !ok {
		return
	}

	bookings, err := h.bookingService.ListBookingsByHostel(c.Request.Context(), principal(c), hostelID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    bookings,
		Meta:    gin.H{"count": len(bookings), "hostel_id": hostelID},
	})
}
