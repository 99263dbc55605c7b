package item

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/declutter/internal/scanning"
)

// IDGenerator generates unique IDs for items
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// Scanner runs the identification pipeline for one request
type Scanner interface {
	Run(ctx context.Context, req scanning.ScanRequest) scanning.Outcome
}

// ImageRemover deletes a user's photo behind an image URL
type ImageRemover interface {
	Remove(userID, imageURL string) error
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles item operations
type Service struct {
	db          DB
	scanner     Scanner
	images      ImageRemover
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source.
// images may be nil, in which case deleted items keep their photos.
func NewService(db DB, scanner Scanner, images ImageRemover) *Service {
	return NewServiceWithDeps(db, scanner, images, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner Scanner, images ImageRemover, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		images:      images,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Scan identifies the photographed item and saves it. Any manual name in the
// input is ignored; use ScanManual for that.
func (s *Service) Scan(ctx context.Context, userID string, in ScanInput) (*Item, error) {
	in.ManualName = ""
	return s.scan(ctx, userID, in, false)
}

// ScanManual scans an item the caller has already named
func (s *Service) ScanManual(ctx context.Context, userID string, in ScanInput) (*Item, error) {
	return s.scan(ctx, userID, in, true)
}

func (s *Service) scan(ctx context.Context, userID string, in ScanInput, manual bool) (*Item, error) {
	in = in.normalized()
	if fields := validateScanInput(in, manual); fields != nil {
		return nil, &ScanError{Code: CodeInvalidInput, Msg: "invalid scan request", Fields: fields}
	}

	req := scanning.ScanRequest{
		ImageURL:   in.ImageURL,
		Condition:  in.Condition,
		ManualName: in.ManualName,
	}

	outcome := s.scanner.Run(ctx, req)
	switch outcome.Kind {
	case scanning.OutcomeEscalated:
		slog.Info("Scan needs user identification", "user_id", userID, "image_url", req.ImageURL)
		return nil, &ScanError{Code: CodeLowConfidence, Msg: "low confidence identification", Result: outcome.Result}
	case scanning.OutcomeFailed:
		slog.Error("Failed to scan item",
			"user_id", userID,
			"image_url", req.ImageURL,
			"manual", manual,
			"error", outcome.Err,
		)
		return nil, &ScanError{Code: CodeScanFailed, Msg: "scan failed", Err: outcome.Err}
	}

	// the caller may have gone away while the model was working
	if err := ctx.Err(); err != nil {
		return nil, &ScanError{Code: CodeScanFailed, Msg: "scan abandoned", Err: err}
	}

	now := s.timeSource.Now()
	item := &Item{
		ID:        s.idGenerator.Generate(),
		UserID:    userID,
		ItemInput: NewItemInput(req, outcome.Result),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.SaveItem(item); err != nil {
		return nil, fmt.Errorf("saving item to database: %w", err)
	}

	slog.Info("Saved scanned item",
		"item_id", item.ID,
		"user_id", userID,
		"recommendation", item.Recommendation,
		"hazardous", item.IsHazardous,
	)
	return item, nil
}

// GetItem retrieves one of userID's items
func (s *Service) GetItem(userID, id string) (*Item, error) {
	item, err := s.db.GetItem(id)
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	if item.UserID != userID {
		return nil, fmt.Errorf("getting item: %w: %s", ErrNotFound, id)
	}
	return item, nil
}

// ListItems returns userID's items, newest first
func (s *Service) ListItems(userID string) ([]*Item, error) {
	items, err := s.db.ListItems(userID)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return items, nil
}

// DeleteItem removes one of userID's items and its photo
func (s *Service) DeleteItem(userID, id string) error {
	item, err := s.GetItem(userID, id)
	if err != nil {
		return err
	}

	if s.images != nil {
		if err := s.images.Remove(userID, item.PhotoURL); err != nil {
			// Log error but continue with database deletion
			slog.Warn("Failed to delete photo", "photo_url", item.PhotoURL, "error", err)
		}
	}

	if err := s.db.DeleteItem(id); err != nil {
		return fmt.Errorf("deleting item from database: %w", err)
	}
	return nil
}

// IsNotFound reports whether err means the item does not exist for the caller
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
