package rfid

import "errors"

var (
	ErrTagNotFound       = errors.New("rfid tag not found")
	ErrDuplicateEPC      = errors.New("epc already registered")
	ErrItemNotFound      = errors.New("inventory item not found")
	ErrTagAlreadyLinked  = errors.New("tag is already linked to an item")
	ErrItemAlreadyLinked = errors.New("item already has a tag")
	ErrInvalidPayload    = errors.New("invalid rfid payload")
	ErrInvalidFilters    = errors.New("invalid rfid filters")
	ErrInvalidTimestamp  = errors.New("invalid read timestamp")
	ErrPersistence       = errors.New("rfid persistence failure")
)
