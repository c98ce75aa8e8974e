package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bodegalabs/bodega-server/inventory"
	"github.com/bodegalabs/bodega-server/rfid"
)

// writeError maps service errors onto HTTP statuses: missing entities are
// 404, business rule and payload violations are 400, everything else is a
// 500 with the detail kept out of the response body.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, inventory.ErrItemNotFound),
		errors.Is(err, inventory.ErrContainerNotFound),
		errors.Is(err, rfid.ErrTagNotFound),
		errors.Is(err, rfid.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, inventory.ErrProductNotFoundOrInactive),
		errors.Is(err, inventory.ErrInvalidPayload),
		errors.Is(err, inventory.ErrInvalidFilters),
		errors.Is(err, inventory.ErrInvalidDateFormat),
		errors.Is(err, inventory.ErrDuplicateSerial),
		errors.Is(err, inventory.ErrDuplicateAssetTag),
		errors.Is(err, inventory.ErrAlreadyCheckedIn),
		errors.Is(err, inventory.ErrAlreadyCheckedOut),
		errors.Is(err, inventory.ErrLostItemCheckOut),
		errors.Is(err, inventory.ErrContainerHasItems),
		errors.Is(err, rfid.ErrDuplicateEPC),
		errors.Is(err, rfid.ErrTagAlreadyLinked),
		errors.Is(err, rfid.ErrItemAlreadyLinked),
		errors.Is(err, rfid.ErrInvalidPayload),
		errors.Is(err, rfid.ErrInvalidFilters),
		errors.Is(err, rfid.ErrInvalidTimestamp):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
