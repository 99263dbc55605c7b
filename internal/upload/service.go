package upload

import (
	"fmt"
	"log/slog"
)

// Service handles photo upload operations
type Service struct {
	presigner *Presigner
	storage   Storage
}

// NewService creates a new Service
func NewService(presigner *Presigner, storage Storage) *Service {
	return &Service{
		presigner: presigner,
		storage:   storage,
	}
}

// Grant issues an upload grant for a photo belonging to userID
func (s *Service) Grant(userID, filename, contentType string) (*Grant, error) {
	grant, err := s.presigner.Issue(userID, filename, contentType)
	if err != nil {
		return nil, fmt.Errorf("issuing upload grant: %w", err)
	}
	return grant, nil
}

// Store saves an uploaded photo once its credentials check out
func (s *Service) Store(key string, creds Credentials, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := s.presigner.Verify(key, creds); err != nil {
		return fmt.Errorf("verifying upload: %w", err)
	}
	if err := s.storage.Save(key, data); err != nil {
		return fmt.Errorf("saving upload: %w", err)
	}
	slog.Info("Stored upload", "key", key, "size", len(data), "content_type", creds.ContentType)
	return nil
}

// Open returns a stored photo
func (s *Service) Open(key string) ([]byte, error) {
	data, err := s.storage.Get(key)
	if err != nil {
		return nil, fmt.Errorf("getting upload: %w", err)
	}
	return data, nil
}

// Remove deletes userID's photo behind imageURL. URLs not issued here, or
// pointing at another user's photo, are ignored.
func (s *Service) Remove(userID, imageURL string) error {
	key, ok := s.presigner.KeyFor(imageURL)
	if !ok {
		return nil
	}
	if !OwnedBy(userID, key) {
		slog.Warn("Refusing to delete another user's upload", "user_id", userID, "key", key)
		return nil
	}
	if err := s.storage.Delete(key); err != nil {
		return fmt.Errorf("deleting upload: %w", err)
	}
	return nil
}
