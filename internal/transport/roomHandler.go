package transport

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paulebil/UniHostel/internal/service"
)

type RoomHandler struct {
	ledgerService service.LedgerService
}

func NewRoomHandler(ledgerService service.LedgerService) *RoomHandler {
	return &RoomHandler{ledgerService: ledgerService}
}

// GetRoomCapacity serves the ledger's view of a room
func (h *RoomHandler) GetRoomCapacity(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	capacity, err := h.ledgerService.Availability(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: capacity})
}
