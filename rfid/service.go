package rfid

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
	"github.com/bodegalabs/bodega-server/inventory"
	"github.com/bodegalabs/bodega-server/model"
)

// DetectionChannel carries one JSON DetectionEvent per processed read.
const DetectionChannel = "rfid:detections"

const (
	defaultDetectionLimit = 50
	maxDetectionLimit     = 200
	tagDetailDetections   = 50
)

// DetectionEvent is the pub/sub payload behind the live detection stream.
type DetectionEvent struct {
	Detection        DetectionView `json:"detection"`
	TagStatus        string        `json:"tagStatus"`
	IsNew            bool          `json:"isNew"`
	InventoryItemID  *string       `json:"inventoryItemId"`
	InventoryUpdated bool          `json:"inventoryUpdated"`
}

// Service owns the tag registry and the read-ingestion pipeline.
type Service struct {
	db     *gorm.DB
	cache  cache.Cache
	pubsub cache.PubSub
	logger *zap.Logger
}

func NewService(db *gorm.DB, c cache.Cache, ps cache.PubSub, logger *zap.Logger) *Service {
	return &Service{db: db, cache: c, pubsub: ps, logger: logger}
}

// ListTags returns tags matching the filters, most recently seen first.
func (s *Service) ListTags(ctx context.Context, f TagFilters) ([]TagView, error) {
	if f.Status != "" && !model.ValidTagStatus(f.Status) {
		return nil, fmt.Errorf("%w: unknown tag status %q", ErrInvalidFilters, f.Status)
	}
	q := s.db.WithContext(ctx).Model(&model.RfidTag{}).Preload("InventoryItem.Product")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		items := s.db.Model(&model.InventoryItem{}).Select("id").
			Where("serial_number LIKE ? OR asset_tag LIKE ?", like, like)
		q = q.Where("epc LIKE ? OR tid LIKE ? OR inventory_item_id IN (?)", like, like, items)
	}
	var tags []model.RfidTag
	if err := q.Order("last_seen_at DESC").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	views := make([]TagView, 0, len(tags))
	for i := range tags {
		views = append(views, tagView(&tags[i]))
	}
	if err := s.fillDetectionCounts(ctx, tags, views); err != nil {
		return nil, err
	}
	return views, nil
}

// fillDetectionCounts attaches the per-tag detection counter with one grouped
// query instead of a count per row.
func (s *Service) fillDetectionCounts(ctx context.Context, tags []model.RfidTag, views []TagView) error {
	if len(tags) == 0 {
		return nil
	}
	ids := make([]string, 0, len(tags))
	for i := range tags {
		ids = append(ids, tags[i].ID)
	}
	type bucket struct {
		RfidTagID string
		Count     int64
	}
	var rows []bucket
	err := s.db.WithContext(ctx).Model(&model.RfidDetection{}).
		Select("rfid_tag_id, COUNT(*) AS count").
		Where("rfid_tag_id IN ?", ids).
		Group("rfid_tag_id").
		Scan(&rows).Error
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	byTag := make(map[string]int64, len(rows))
	for _, row := range rows {
		byTag[row.RfidTagID] = row.Count
	}
	for i := range views {
		views[i].Count.Detections = byTag[views[i].ID]
	}
	return nil
}

// ListUnknown returns tags that readers have seen but nobody has enrolled.
func (s *Service) ListUnknown(ctx context.Context) ([]TagView, error) {
	return s.ListTags(ctx, TagFilters{Status: model.TagUnknown})
}

// CreateTag registers a tag by hand. An inventoryItemId in the payload binds
// the tag right away and forces it to ENROLLED; otherwise the caller may pick
// a status, defaulting to UNASSIGNED.
func (s *Service) CreateTag(ctx context.Context, in TagInput) (*TagView, error) {
	epc := strings.TrimSpace(in.EPC)
	if epc == "" {
		return nil, fmt.Errorf("%w: epc is required", ErrInvalidPayload)
	}
	status := model.TagUnassigned
	if in.Status != nil {
		st := strings.ToUpper(strings.TrimSpace(*in.Status))
		if !model.ValidTagStatus(st) {
			return nil, fmt.Errorf("%w: unknown tag status %q", ErrInvalidPayload, *in.Status)
		}
		status = st
	}
	now := time.Now().UTC()
	tag := model.RfidTag{
		ID:          uuid.NewString(),
		EPC:         epc,
		TID:         in.TID,
		Status:      status,
		FirstSeenAt: now,
		LastSeenAt:  now,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.InventoryItemID != nil && strings.TrimSpace(*in.InventoryItemID) != "" {
			itemID := strings.TrimSpace(*in.InventoryItemID)
			if err := requireFreeItem(tx, itemID, tag.ID); err != nil {
				return err
			}
			tag.InventoryItemID = &itemID
			tag.Status = model.TagEnrolled
		}
		if err := tx.Create(&tag).Error; err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "epc") {
				return ErrDuplicateEPC
			}
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("rfid tag registered", zap.String("tag_id", tag.ID), zap.String("epc", tag.EPC))
	return s.GetTag(ctx, tag.ID)
}

// GetTag returns one tag with its linked item, its detection counter, and
// the most recent detections.
func (s *Service) GetTag(ctx context.Context, id string) (*TagView, error) {
	var tag model.RfidTag
	err := s.db.WithContext(ctx).Preload("InventoryItem.Product").First(&tag, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTagNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	view := tagView(&tag)
	err = s.db.WithContext(ctx).Model(&model.RfidDetection{}).
		Where("rfid_tag_id = ?", id).
		Count(&view.Count.Detections).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	var recent []model.RfidDetection
	err = s.db.WithContext(ctx).
		Where("rfid_tag_id = ?", id).
		Order("timestamp DESC, seq DESC").
		Limit(tagDetailDetections).
		Find(&recent).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	view.Detections = make([]DetectionView, 0, len(recent))
	for i := range recent {
		d := detectionView(&recent[i])
		d.EPC = tag.EPC
		view.Detections = append(view.Detections, d)
	}
	return &view, nil
}

// UpdateTag edits the manual fields of a tag: EPC, TID, status, and the item
// binding. A present binding forces the status to ENROLLED; clearing it with
// an empty inventoryItemId reverts the tag to UNASSIGNED unless the payload
// names another status. Sighting timestamps belong to the ingestion pipeline
// and are not touched here.
func (s *Service) UpdateTag(ctx context.Context, id string, in TagInput) (*TagView, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tag model.RfidTag
		if err := tx.First(&tag, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTagNotFound
			}
			return err
		}
		updates := map[string]any{}
		if epc := strings.TrimSpace(in.EPC); epc != "" && epc != tag.EPC {
			updates["epc"] = epc
		}
		if in.TID != nil {
			updates["tid"] = *in.TID
		}
		if in.Status != nil {
			st := strings.ToUpper(strings.TrimSpace(*in.Status))
			if !model.ValidTagStatus(st) {
				return fmt.Errorf("%w: unknown tag status %q", ErrInvalidPayload, *in.Status)
			}
			updates["status"] = st
		}
		if in.InventoryItemID != nil {
			itemID := strings.TrimSpace(*in.InventoryItemID)
			if itemID == "" {
				updates["inventory_item_id"] = nil
				if in.Status == nil {
					updates["status"] = model.TagUnassigned
				}
			} else {
				if err := requireFreeItem(tx, itemID, tag.ID); err != nil {
					return err
				}
				updates["inventory_item_id"] = itemID
				updates["status"] = model.TagEnrolled
			}
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&tag).Updates(updates).Error; err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "epc") {
				return ErrDuplicateEPC
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetTag(ctx, id)
}

// DeleteTag removes a tag and its detection history.
func (s *Service) DeleteTag(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tag model.RfidTag
		if err := tx.First(&tag, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTagNotFound
			}
			return err
		}
		if err := tx.Where("rfid_tag_id = ?", id).Delete(&model.RfidDetection{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.RfidTag{}, "id = ?", id).Error
	})
	if err != nil {
		return err
	}
	s.logger.Info("rfid tag deleted", zap.String("tag_id", id))
	return nil
}

// Enroll binds a tag to an inventory item. Both sides must be free: a tag
// tracks at most one item and an item carries at most one tag.
func (s *Service) Enroll(ctx context.Context, tagID string, in EnrollInput) (*TagView, error) {
	if in.InventoryItemID == "" {
		return nil, fmt.Errorf("%w: inventoryItemId is required", ErrInvalidPayload)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tag model.RfidTag
		if err := tx.First(&tag, "id = ?", tagID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTagNotFound
			}
			return err
		}
		if tag.InventoryItemID != nil {
			return ErrTagAlreadyLinked
		}
		if err := requireFreeItem(tx, in.InventoryItemID, tagID); err != nil {
			return err
		}
		return tx.Model(&tag).Updates(map[string]any{
			"inventory_item_id": in.InventoryItemID,
			"status":            model.TagEnrolled,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("rfid tag enrolled",
		zap.String("tag_id", tagID),
		zap.String("item_id", in.InventoryItemID))
	return s.GetTag(ctx, tagID)
}

// Unenroll detaches a tag from its item and reverts it to UNASSIGNED. A tag
// with no link is a no-op beyond the status reset.
func (s *Service) Unenroll(ctx context.Context, tagID string) (*TagView, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tag model.RfidTag
		if err := tx.First(&tag, "id = ?", tagID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTagNotFound
			}
			return err
		}
		return tx.Model(&tag).Updates(map[string]any{
			"inventory_item_id": nil,
			"status":            model.TagUnassigned,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("rfid tag unenrolled", zap.String("tag_id", tagID))
	return s.GetTag(ctx, tagID)
}

// ListDetections pages through the detection log, newest first.
func (s *Service) ListDetections(ctx context.Context, f DetectionFilters) (*DetectionsPage, error) {
	if f.Limit == 0 {
		f.Limit = defaultDetectionLimit
	}
	if f.Limit < 1 || f.Limit > maxDetectionLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidFilters, maxDetectionLimit)
	}
	if f.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", ErrInvalidFilters)
	}
	if f.Direction != "" && !model.ValidDirection(f.Direction) {
		return nil, fmt.Errorf("%w: unknown direction %q", ErrInvalidFilters, f.Direction)
	}

	q := s.db.WithContext(ctx).Model(&model.RfidDetection{})
	if f.ReaderID != "" {
		q = q.Where("reader_id = ?", f.ReaderID)
	}
	if f.TagID != "" {
		q = q.Where("rfid_tag_id = ?", f.TagID)
	}
	if f.EPC != "" {
		q = q.Where("rfid_tag_id IN (?)", s.db.Model(&model.RfidTag{}).Select("id").Where("epc = ?", f.EPC))
	}
	if f.Direction != "" {
		q = q.Where("direction = ?", f.Direction)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	var detections []model.RfidDetection
	err := q.Preload("RfidTag").
		Order("timestamp DESC, seq DESC").
		Limit(f.Limit).
		Offset(f.Offset).
		Find(&detections).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	views := make([]DetectionView, 0, len(detections))
	for i := range detections {
		views = append(views, detectionView(&detections[i]))
	}
	return &DetectionsPage{Detections: views, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// ProcessRead ingests one reader batch inside a single transaction: either
// every read lands or none does. Unknown EPCs become UNKNOWN tags, every
// read writes a detection row, and an enrolled tag with a direction flips
// its item's status directly. That flip deliberately writes no movement row;
// the detection log is the record of reader-driven changes.
func (s *Service) ProcessRead(ctx context.Context, batch ReadBatch) (*BatchResult, error) {
	if batch.ReaderID == "" {
		return nil, fmt.Errorf("%w: readerId is required", ErrInvalidPayload)
	}
	if len(batch.Reads) == 0 {
		return &BatchResult{Processed: 0, Results: []ReadResult{}}, nil
	}

	results := make([]ReadResult, 0, len(batch.Reads))
	events := make([]DetectionEvent, 0, len(batch.Reads))
	anyInventoryChange := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, read := range batch.Reads {
			epc := strings.TrimSpace(read.EPC)
			if epc == "" {
				return fmt.Errorf("%w: read without epc", ErrInvalidPayload)
			}
			detectedAt, err := parseTimestamp(read.Timestamp)
			if err != nil {
				return err
			}

			var tag model.RfidTag
			isNew := false
			err = tx.First(&tag, "epc = ?", epc).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				tag = model.RfidTag{
					ID:          uuid.NewString(),
					EPC:         epc,
					TID:         read.TID,
					Status:      model.TagUnknown,
					FirstSeenAt: detectedAt,
					LastSeenAt:  detectedAt,
				}
				if err := tx.Create(&tag).Error; err != nil {
					return err
				}
				isNew = true
			case err != nil:
				return err
			default:
				updates := map[string]any{"last_seen_at": detectedAt}
				if tag.TID == nil && read.TID != nil {
					updates["tid"] = *read.TID
					tag.TID = read.TID
				}
				if err := tx.Model(&tag).Updates(updates).Error; err != nil {
					return err
				}
				tag.LastSeenAt = detectedAt
			}

			detection := model.RfidDetection{
				ID:         uuid.NewString(),
				RfidTagID:  tag.ID,
				ReaderID:   batch.ReaderID,
				ReaderName: batch.ReaderName,
				RSSI:       read.RSSI,
				Direction:  normalizeDirection(read.Direction),
				Timestamp:  detectedAt,
			}
			if err := tx.Create(&detection).Error; err != nil {
				return err
			}
			detection.RfidTag = &tag

			updated := false
			if tag.Status == model.TagEnrolled && tag.InventoryItemID != nil && detection.Direction != nil {
				updated, err = applyDirection(tx, *tag.InventoryItemID, *detection.Direction)
				if err != nil {
					return err
				}
				if updated {
					anyInventoryChange = true
				}
			}

			result := ReadResult{
				EPC:              epc,
				TagID:            tag.ID,
				Status:           tag.Status,
				IsNew:            isNew,
				InventoryItemID:  tag.InventoryItemID,
				InventoryUpdated: updated,
			}
			results = append(results, result)
			events = append(events, DetectionEvent{
				Detection:        detectionView(&detection),
				TagStatus:        tag.Status,
				IsNew:            isNew,
				InventoryItemID:  tag.InventoryItemID,
				InventoryUpdated: updated,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if anyInventoryChange {
		if err := s.cache.Del(ctx, inventory.SummaryCacheKey); err != nil {
			s.logger.Warn("summary cache invalidation failed", zap.Error(err))
		}
	}
	for i := range events {
		payload, err := json.Marshal(&events[i])
		if err != nil {
			continue
		}
		if err := s.pubsub.Publish(ctx, DetectionChannel, string(payload)); err != nil {
			s.logger.Warn("detection publish failed", zap.Error(err))
		}
	}

	s.logger.Info("rfid batch processed",
		zap.String("reader_id", batch.ReaderID),
		zap.Int("reads", len(results)),
		zap.Bool("inventory_changed", anyInventoryChange))
	return &BatchResult{Processed: len(results), Results: results}, nil
}

// requireFreeItem checks that the item exists and that no tag other than
// tagID is bound to it.
func requireFreeItem(tx *gorm.DB, itemID, tagID string) error {
	var item model.InventoryItem
	if err := tx.First(&item, "id = ?", itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrItemNotFound
		}
		return err
	}
	var linked int64
	err := tx.Model(&model.RfidTag{}).
		Where("inventory_item_id = ? AND id <> ?", itemID, tagID).
		Count(&linked).Error
	if err != nil {
		return err
	}
	if linked > 0 {
		return ErrItemAlreadyLinked
	}
	return nil
}

// applyDirection maps IN/OUT onto the item status and reports whether the
// status actually changed.
func applyDirection(tx *gorm.DB, itemID, direction string) (bool, error) {
	target := model.StatusIn
	if direction == model.DirectionOut {
		target = model.StatusOut
	}
	var item model.InventoryItem
	if err := tx.First(&item, "id = ?", itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if item.Status == target {
		return false, nil
	}
	if err := tx.Model(&item).Update("status", target).Error; err != nil {
		return false, err
	}
	return true, nil
}

func normalizeDirection(d *string) *string {
	if d == nil {
		return nil
	}
	up := strings.ToUpper(strings.TrimSpace(*d))
	if !model.ValidDirection(up) {
		return nil
	}
	return &up
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

func parseTimestamp(s *string) (time.Time, error) {
	if s == nil || *s == "" {
		return time.Now().UTC(), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, *s)
}
