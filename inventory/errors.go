package inventory

import "errors"

// Business rule violations, matched with errors.Is at the REST layer.
var (
	ErrItemNotFound              = errors.New("inventory item not found")
	ErrProductNotFoundOrInactive = errors.New("product not found or inactive")
	ErrContainerNotFound         = errors.New("container item not found")
	ErrInvalidPayload            = errors.New("invalid inventory payload")
	ErrInvalidFilters            = errors.New("invalid inventory filters")
	ErrInvalidDateFormat         = errors.New("invalid date format")
	ErrDuplicateSerial           = errors.New("serial number already in use")
	ErrDuplicateAssetTag         = errors.New("asset tag already in use")
	ErrAlreadyCheckedIn          = errors.New("item is already checked in")
	ErrAlreadyCheckedOut         = errors.New("item is already checked out")
	ErrLostItemCheckOut          = errors.New("a lost item cannot be checked out")
	ErrContainerHasItems         = errors.New("container still holds items")
	ErrPersistence               = errors.New("inventory persistence failure")
)
