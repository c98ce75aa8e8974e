package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bodegalabs/bodega-server/cache"
	"github.com/bodegalabs/bodega-server/model"
)

// SummaryCacheKey holds the serialized SummaryView. Every mutation that can
// change the summary deletes it, including RFID-driven status flips.
const SummaryCacheKey = "inventory:summary"

const (
	defaultMovementLimit = 50
	maxMovementLimit     = 200
	recentMovementCount  = 10
)

// Service implements the item lifecycle, the movement ledger and the
// check-in/check-out state machine.
type Service struct {
	db         *gorm.DB
	cache      cache.Cache
	logger     *zap.Logger
	summaryTTL time.Duration
}

func NewService(db *gorm.DB, c cache.Cache, logger *zap.Logger, summaryTTL time.Duration) *Service {
	if summaryTTL <= 0 {
		summaryTTL = 30 * time.Second
	}
	return &Service{db: db, cache: c, logger: logger, summaryTTL: summaryTTL}
}

// CheckInOutResult is returned by CheckIn and CheckOut: the item after the
// transition plus the ledger row the transition appended.
type CheckInOutResult struct {
	Item     *ItemView    `json:"item"`
	Movement MovementView `json:"movement"`
}

// List returns items matching the filters, newest first, with product,
// container, tag and counts joined in.
func (s *Service) List(ctx context.Context, f ListFilters) ([]ItemView, error) {
	if f.Status != "" && !model.ValidStatus(f.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidFilters, f.Status)
	}
	if f.Type != "" && !model.ValidItemType(f.Type) {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidFilters, f.Type)
	}

	q := s.db.WithContext(ctx).Model(&model.InventoryItem{}).
		Preload("Product.Category").
		Preload("Container")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.ProductID != "" {
		q = q.Where("product_id = ?", f.ProductID)
	}
	if f.ContainerID != "" {
		q = q.Where("container_id = ?", f.ContainerID)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where(
			"serial_number LIKE ? OR asset_tag LIKE ? OR location LIKE ? OR product_id IN (?)",
			like, like, like,
			s.db.Model(&model.Product{}).Select("id").Where("name LIKE ? OR sku LIKE ?", like, like),
		)
	}

	var items []model.InventoryItem
	if err := q.Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return s.itemViews(ctx, items)
}

// Create validates the payload, verifies the product is active, inserts the
// item and appends the initial ENROLLMENT movement, all in one transaction.
func (s *Service) Create(ctx context.Context, in ItemInput, actorID string) (*ItemView, error) {
	if actorID == "" {
		return nil, fmt.Errorf("%w: performedBy is required", ErrInvalidPayload)
	}
	if in.ProductID == "" {
		return nil, fmt.Errorf("%w: productId is required", ErrInvalidPayload)
	}
	if !model.ValidItemType(in.Type) {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidPayload, in.Type)
	}
	if !model.ValidStatus(in.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidPayload, in.Status)
	}
	if in.PurchasePrice != nil && *in.PurchasePrice < 0 {
		return nil, fmt.Errorf("%w: purchasePrice must not be negative", ErrInvalidPayload)
	}
	purchaseDate, err := parseDate(in.PurchaseDate)
	if err != nil {
		return nil, err
	}
	warrantyExpiry, err := parseDate(in.WarrantyExpiry)
	if err != nil {
		return nil, err
	}

	item := model.InventoryItem{
		ID:             uuid.NewString(),
		ProductID:      in.ProductID,
		SerialNumber:   in.SerialNumber,
		AssetTag:       in.AssetTag,
		Type:           in.Type,
		Status:         in.Status,
		Condition:      in.Condition,
		Location:       in.Location,
		ContainerID:    in.ContainerID,
		PurchaseDate:   purchaseDate,
		PurchasePrice:  in.PurchasePrice,
		WarrantyExpiry: warrantyExpiry,
		Notes:          in.Notes,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product model.Product
		if err := tx.First(&product, "id = ?", in.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFoundOrInactive
			}
			return err
		}
		if !product.Active() {
			return ErrProductNotFoundOrInactive
		}
		if in.ContainerID != nil {
			if err := requireItem(tx, *in.ContainerID); err != nil {
				return err
			}
		}
		if err := tx.Create(&item).Error; err != nil {
			return classifyWriteError(err)
		}
		reason := "initial registration"
		movement := model.InventoryMovement{
			ID:              uuid.NewString(),
			InventoryItemID: item.ID,
			Type:            model.MovementEnrollment,
			ToStatus:        item.Status,
			ToLocation:      item.Location,
			Reason:          &reason,
			PerformedBy:     actorID,
		}
		return tx.Create(&movement).Error
	})
	if err != nil {
		return nil, err
	}

	s.invalidateSummary(ctx)
	s.logger.Info("inventory item created",
		zap.String("item_id", item.ID),
		zap.String("product_id", item.ProductID),
		zap.String("status", item.Status))
	return s.Get(ctx, item.ID)
}

// Get returns one item with its full detail view: contents of a container
// and the most recent movements.
func (s *Service) Get(ctx context.Context, id string) (*ItemView, error) {
	var item model.InventoryItem
	err := s.db.WithContext(ctx).
		Preload("Product.Category").
		Preload("Container").
		First(&item, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	views, err := s.itemViews(ctx, []model.InventoryItem{item})
	if err != nil {
		return nil, err
	}
	view := &views[0]

	var contents []model.InventoryItem
	if err := s.db.WithContext(ctx).Where("container_id = ?", id).Order("created_at DESC").Find(&contents).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	for i := range contents {
		view.Contents = append(view.Contents, *containerRef(&contents[i]))
	}

	var movements []model.InventoryMovement
	err = s.db.WithContext(ctx).
		Where("inventory_item_id = ?", id).
		Order("created_at DESC, seq DESC").
		Limit(20).
		Find(&movements).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	view.Movements, err = s.movementViews(ctx, movements, false)
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Update applies a partial payload. Nil pointers and empty strings leave the
// field unchanged. When the update changes status or location it appends an
// ADJUSTMENT movement recording the transition.
func (s *Service) Update(ctx context.Context, id string, in ItemInput, actorID string) (*ItemView, error) {
	if actorID == "" {
		return nil, fmt.Errorf("%w: performedBy is required", ErrInvalidPayload)
	}
	if in.Type != "" && !model.ValidItemType(in.Type) {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidPayload, in.Type)
	}
	if in.Status != "" && !model.ValidStatus(in.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidPayload, in.Status)
	}
	if in.PurchasePrice != nil && *in.PurchasePrice < 0 {
		return nil, fmt.Errorf("%w: purchasePrice must not be negative", ErrInvalidPayload)
	}
	if in.ContainerID != nil && *in.ContainerID == id {
		return nil, fmt.Errorf("%w: item cannot contain itself", ErrInvalidPayload)
	}
	purchaseDate, err := parseDate(in.PurchaseDate)
	if err != nil {
		return nil, err
	}
	warrantyExpiry, err := parseDate(in.WarrantyExpiry)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item model.InventoryItem
		if err := tx.First(&item, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrItemNotFound
			}
			return err
		}
		prevStatus := item.Status
		prevLocation := item.Location

		if in.ProductID != "" && in.ProductID != item.ProductID {
			var product model.Product
			if err := tx.First(&product, "id = ?", in.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrProductNotFoundOrInactive
				}
				return err
			}
			if !product.Active() {
				return ErrProductNotFoundOrInactive
			}
			item.ProductID = in.ProductID
		}
		if in.ContainerID != nil {
			if err := requireItem(tx, *in.ContainerID); err != nil {
				return err
			}
			item.ContainerID = in.ContainerID
		}
		if in.SerialNumber != nil {
			item.SerialNumber = in.SerialNumber
		}
		if in.AssetTag != nil {
			item.AssetTag = in.AssetTag
		}
		if in.Type != "" {
			item.Type = in.Type
		}
		if in.Status != "" {
			item.Status = in.Status
		}
		if in.Condition != nil {
			item.Condition = in.Condition
		}
		if in.Location != nil {
			item.Location = in.Location
		}
		if purchaseDate != nil {
			item.PurchaseDate = purchaseDate
		}
		if in.PurchasePrice != nil {
			item.PurchasePrice = in.PurchasePrice
		}
		if warrantyExpiry != nil {
			item.WarrantyExpiry = warrantyExpiry
		}
		if in.Notes != nil {
			item.Notes = in.Notes
		}

		if err := tx.Save(&item).Error; err != nil {
			return classifyWriteError(err)
		}

		if item.Status != prevStatus || !strPtrEqual(item.Location, prevLocation) {
			reason := "manual update"
			movement := model.InventoryMovement{
				ID:              uuid.NewString(),
				InventoryItemID: item.ID,
				Type:            model.MovementAdjustment,
				FromStatus:      &prevStatus,
				ToStatus:        item.Status,
				FromLocation:    prevLocation,
				ToLocation:      item.Location,
				Reason:          &reason,
				PerformedBy:     actorID,
			}
			if err := tx.Create(&movement).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateSummary(ctx)
	return s.Get(ctx, id)
}

// Delete removes an item. A container that still holds items is refused.
// Any RFID tag bound to the item is detached and reverts to UNASSIGNED; the
// item's ledger rows go with the item.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item model.InventoryItem
		if err := tx.First(&item, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrItemNotFound
			}
			return err
		}
		var contents int64
		if err := tx.Model(&model.InventoryItem{}).Where("container_id = ?", id).Count(&contents).Error; err != nil {
			return err
		}
		if contents > 0 {
			return ErrContainerHasItems
		}
		err := tx.Model(&model.RfidTag{}).
			Where("inventory_item_id = ?", id).
			Updates(map[string]any{"inventory_item_id": nil, "status": model.TagUnassigned}).Error
		if err != nil {
			return err
		}
		if err := tx.Where("inventory_item_id = ?", id).Delete(&model.InventoryMovement{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.InventoryItem{}, "id = ?", id).Error
	})
	if err != nil {
		return err
	}

	s.invalidateSummary(ctx)
	s.logger.Info("inventory item deleted", zap.String("item_id", id))
	return nil
}

// CheckIn transitions an item to IN and appends a CHECK_IN movement. When no
// location is given the item keeps its current one.
func (s *Service) CheckIn(ctx context.Context, id string, in CheckInOutInput, actorID string) (*CheckInOutResult, error) {
	if actorID == "" {
		return nil, fmt.Errorf("%w: performedBy is required", ErrInvalidPayload)
	}
	var movement model.InventoryMovement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item model.InventoryItem
		if err := tx.First(&item, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrItemNotFound
			}
			return err
		}
		if item.Status == model.StatusIn {
			return ErrAlreadyCheckedIn
		}
		prevStatus := item.Status
		prevLocation := item.Location

		item.Status = model.StatusIn
		if in.Location != nil {
			item.Location = in.Location
		}
		if err := tx.Save(&item).Error; err != nil {
			return err
		}
		movement = model.InventoryMovement{
			ID:              uuid.NewString(),
			InventoryItemID: item.ID,
			Type:            model.MovementCheckIn,
			FromStatus:      &prevStatus,
			ToStatus:        model.StatusIn,
			FromLocation:    prevLocation,
			ToLocation:      item.Location,
			Reason:          in.Reason,
			Reference:       in.Reference,
			PerformedBy:     actorID,
		}
		return tx.Create(&movement).Error
	})
	if err != nil {
		return nil, err
	}
	return s.checkResult(ctx, id, movement)
}

// CheckOut transitions an item to OUT and appends a CHECK_OUT movement. The
// item's location is always replaced by the payload location, clearing it
// when none is given: an item that left the building has no known shelf.
func (s *Service) CheckOut(ctx context.Context, id string, in CheckInOutInput, actorID string) (*CheckInOutResult, error) {
	if actorID == "" {
		return nil, fmt.Errorf("%w: performedBy is required", ErrInvalidPayload)
	}
	var movement model.InventoryMovement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item model.InventoryItem
		if err := tx.First(&item, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrItemNotFound
			}
			return err
		}
		if item.Status == model.StatusOut {
			return ErrAlreadyCheckedOut
		}
		if item.Status == model.StatusLost {
			return ErrLostItemCheckOut
		}
		prevStatus := item.Status
		prevLocation := item.Location

		item.Status = model.StatusOut
		item.Location = in.Location
		if err := tx.Save(&item).Error; err != nil {
			return err
		}
		movement = model.InventoryMovement{
			ID:              uuid.NewString(),
			InventoryItemID: item.ID,
			Type:            model.MovementCheckOut,
			FromStatus:      &prevStatus,
			ToStatus:        model.StatusOut,
			FromLocation:    prevLocation,
			ToLocation:      item.Location,
			Reason:          in.Reason,
			Reference:       in.Reference,
			PerformedBy:     actorID,
		}
		return tx.Create(&movement).Error
	})
	if err != nil {
		return nil, err
	}
	return s.checkResult(ctx, id, movement)
}

func (s *Service) checkResult(ctx context.Context, id string, movement model.InventoryMovement) (*CheckInOutResult, error) {
	s.invalidateSummary(ctx)
	view, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	mviews, err := s.movementViews(ctx, []model.InventoryMovement{movement}, false)
	if err != nil {
		return nil, err
	}
	return &CheckInOutResult{Item: view, Movement: mviews[0]}, nil
}

// ListMovements pages through the ledger, newest first. Ties on the
// timestamp are broken by insertion order.
func (s *Service) ListMovements(ctx context.Context, f MovementFilters) (*MovementsPage, error) {
	if f.Limit == 0 {
		f.Limit = defaultMovementLimit
	}
	if f.Limit < 1 || f.Limit > maxMovementLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidFilters, maxMovementLimit)
	}
	if f.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", ErrInvalidFilters)
	}
	if f.Type != "" && !model.ValidMovementType(f.Type) {
		return nil, fmt.Errorf("%w: unknown movement type %q", ErrInvalidFilters, f.Type)
	}

	q := s.db.WithContext(ctx).Model(&model.InventoryMovement{})
	if f.InventoryItemID != "" {
		q = q.Where("inventory_item_id = ?", f.InventoryItemID)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	var movements []model.InventoryMovement
	err := q.Preload("InventoryItem.Product.Category").
		Order("created_at DESC, seq DESC").
		Limit(f.Limit).
		Offset(f.Offset).
		Find(&movements).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	views, err := s.movementViews(ctx, movements, true)
	if err != nil {
		return nil, err
	}
	return &MovementsPage{Movements: views, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// Summary aggregates counts by status, type and category plus the most
// recent ledger rows. The result is cached; mutations invalidate it.
func (s *Service) Summary(ctx context.Context) (*SummaryView, error) {
	if cached, err := s.cache.Get(ctx, SummaryCacheKey); err == nil {
		var view SummaryView
		if err := json.Unmarshal([]byte(cached), &view); err == nil {
			return &view, nil
		}
		s.logger.Warn("discarding unreadable summary cache entry")
	}

	view := SummaryView{
		ByStatus:   map[string]int64{},
		ByType:     map[string]int64{},
		ByCategory: []CategoryCount{},
	}
	db := s.db.WithContext(ctx)
	if err := db.Model(&model.InventoryItem{}).Count(&view.Total).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	type bucket struct {
		Key   string
		Count int64
	}
	var byStatus []bucket
	err := db.Model(&model.InventoryItem{}).
		Select("status AS key, COUNT(*) AS count").
		Group("status").
		Scan(&byStatus).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	for _, b := range byStatus {
		view.ByStatus[b.Key] = b.Count
	}
	var byType []bucket
	err = db.Model(&model.InventoryItem{}).
		Select("type AS key, COUNT(*) AS count").
		Group("type").
		Scan(&byType).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	for _, b := range byType {
		view.ByType[b.Key] = b.Count
	}

	err = db.Model(&model.InventoryItem{}).
		Select("categories.id AS category_id, categories.name AS name, COUNT(*) AS count").
		Joins("JOIN products ON products.id = inventory_items.product_id").
		Joins("JOIN categories ON categories.id = products.category_id").
		Group("categories.id, categories.name").
		Order("count DESC").
		Scan(&view.ByCategory).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	var recent []model.InventoryMovement
	err = db.Preload("InventoryItem.Product.Category").
		Order("created_at DESC, seq DESC").
		Limit(recentMovementCount).
		Find(&recent).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	view.RecentMovements, err = s.movementViews(ctx, recent, true)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(&view); err == nil {
		if err := s.cache.Set(ctx, SummaryCacheKey, string(payload), s.summaryTTL); err != nil {
			s.logger.Warn("summary cache write failed", zap.Error(err))
		}
	}
	return &view, nil
}

// InvalidateSummary drops the cached summary. Exposed for the RFID pipeline,
// whose status flips change the aggregates without going through this service.
func (s *Service) InvalidateSummary(ctx context.Context) {
	s.invalidateSummary(ctx)
}

func (s *Service) invalidateSummary(ctx context.Context) {
	if err := s.cache.Del(ctx, SummaryCacheKey); err != nil {
		s.logger.Warn("summary cache invalidation failed", zap.Error(err))
	}
}

// itemViews builds list views for a batch of items, loading tags and counts
// in grouped queries rather than one round trip per row.
func (s *Service) itemViews(ctx context.Context, items []model.InventoryItem) ([]ItemView, error) {
	views := make([]ItemView, 0, len(items))
	if len(items) == 0 {
		return views, nil
	}
	ids := make([]string, 0, len(items))
	for i := range items {
		ids = append(ids, items[i].ID)
	}

	var tags []model.RfidTag
	if err := s.db.WithContext(ctx).Where("inventory_item_id IN ?", ids).Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	tagByItem := make(map[string]*model.RfidTag, len(tags))
	for i := range tags {
		if tags[i].InventoryItemID != nil {
			tagByItem[*tags[i].InventoryItemID] = &tags[i]
		}
	}

	type grouped struct {
		Key   string
		Count int64
	}
	var movementCounts []grouped
	err := s.db.WithContext(ctx).Model(&model.InventoryMovement{}).
		Select("inventory_item_id AS key, COUNT(*) AS count").
		Where("inventory_item_id IN ?", ids).
		Group("inventory_item_id").
		Scan(&movementCounts).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	movementsByItem := make(map[string]int64, len(movementCounts))
	for _, g := range movementCounts {
		movementsByItem[g.Key] = g.Count
	}
	var contentCounts []grouped
	err = s.db.WithContext(ctx).Model(&model.InventoryItem{}).
		Select("container_id AS key, COUNT(*) AS count").
		Where("container_id IN ?", ids).
		Group("container_id").
		Scan(&contentCounts).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	contentsByItem := make(map[string]int64, len(contentCounts))
	for _, g := range contentCounts {
		contentsByItem[g.Key] = g.Count
	}

	for i := range items {
		item := &items[i]
		views = append(views, ItemView{
			ID:             item.ID,
			ProductID:      item.ProductID,
			SerialNumber:   item.SerialNumber,
			AssetTag:       item.AssetTag,
			Type:           item.Type,
			Status:         item.Status,
			Condition:      item.Condition,
			Location:       item.Location,
			ContainerID:    item.ContainerID,
			PurchaseDate:   item.PurchaseDate,
			PurchasePrice:  item.PurchasePrice,
			WarrantyExpiry: item.WarrantyExpiry,
			Notes:          item.Notes,
			CreatedAt:      item.CreatedAt,
			UpdatedAt:      item.UpdatedAt,
			Product:        productRef(item.Product),
			Container:      containerRef(item.Container),
			RfidTag:        tagRef(tagByItem[item.ID]),
			Count: ItemCounts{
				Movements: movementsByItem[item.ID],
				Contents:  contentsByItem[item.ID],
			},
		})
	}
	return views, nil
}

// movementViews joins user names into ledger rows, and item refs when the
// listing spans multiple items.
func (s *Service) movementViews(ctx context.Context, movements []model.InventoryMovement, withItem bool) ([]MovementView, error) {
	views := make([]MovementView, 0, len(movements))
	if len(movements) == 0 {
		return views, nil
	}
	userIDs := make([]string, 0, len(movements))
	seen := map[string]bool{}
	for i := range movements {
		if id := movements[i].PerformedBy; id != "" && !seen[id] {
			seen[id] = true
			userIDs = append(userIDs, id)
		}
	}
	usersByID := map[string]*UserRef{}
	if len(userIDs) > 0 {
		var users []model.User
		if err := s.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&users).Error; err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		for i := range users {
			usersByID[users[i].ID] = &UserRef{ID: users[i].ID, Name: users[i].Name}
		}
	}

	for i := range movements {
		m := &movements[i]
		view := MovementView{
			ID:              m.ID,
			InventoryItemID: m.InventoryItemID,
			Type:            m.Type,
			FromStatus:      m.FromStatus,
			ToStatus:        m.ToStatus,
			FromLocation:    m.FromLocation,
			ToLocation:      m.ToLocation,
			Reason:          m.Reason,
			Reference:       m.Reference,
			PerformedBy:     m.PerformedBy,
			CreatedAt:       m.CreatedAt,
			User:            usersByID[m.PerformedBy],
		}
		if withItem && m.InventoryItem != nil {
			view.InventoryItem = &MovementItemRef{
				ID:           m.InventoryItem.ID,
				SerialNumber: m.InventoryItem.SerialNumber,
				AssetTag:     m.InventoryItem.AssetTag,
				Product:      productRef(m.InventoryItem.Product),
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func requireItem(tx *gorm.DB, id string) error {
	var n int64
	if err := tx.Model(&model.InventoryItem{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrContainerNotFound
	}
	return nil
}

// classifyWriteError maps unique constraint violations onto the two
// duplicate errors by index column. Driver messages differ, but all three
// supported databases include the column name.
func classifyWriteError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "serial") {
		return ErrDuplicateSerial
	}
	if strings.Contains(msg, "asset") {
		return ErrDuplicateAssetTag
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidDateFormat, *s)
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
