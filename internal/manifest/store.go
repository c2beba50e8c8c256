package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"restore-chain/internal/errors"
	"restore-chain/internal/logging"
)

const (
	manifestObject = "manifest.json"
	summaryObject  = "summary.json"
)

// Store persists restore manifests
type Store interface {
	Put(ctx context.Context, m *Manifest) (*Summary, error)
	Get(ctx context.Context, id string) (*Manifest, error)
	List(ctx context.Context, filter Filter) ([]Summary, error)
	Delete(ctx context.Context, id string) error
}

// Filter narrows a listing
type Filter struct {
	Database string
	MaxItems int
}

// Backend is the object storage a Store writes to. Keys are slash separated
// and relative to the backend root.
type Backend interface {
	Provider() ProviderType
	Write(ctx context.Context, key string, data []byte, metadata map[string]string) error
	Read(ctx context.Context, key string) ([]byte, error)
	Keys(ctx context.Context, prefix string) ([]string, error)
	Remove(ctx context.Context, key string) error
	Location(key string) string
}

// ObjectStore keeps each manifest under <prefix><id>/ as an encoded
// manifest.json next to a plain summary.json used for listings.
type ObjectStore struct {
	backend Backend
	codec   *Codec
	prefix  string
	logger  *logging.Logger
}

// NewObjectStore creates a store over backend
func NewObjectStore(backend Backend, codec *Codec, prefix string, logger *logging.Logger) *ObjectStore {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &ObjectStore{
		backend: backend,
		codec:   codec,
		prefix:  prefix,
		logger:  logger,
	}
}

// Put encodes and stores m, returning its listing entry
func (s *ObjectStore) Put(ctx context.Context, m *Manifest) (summary *Summary, err error) {
	defer func() {
		var location string
		var size int64
		if summary != nil {
			location, size = summary.Location, summary.Size
		}
		s.logger.LogManifestStored(m.ID, string(s.backend.Provider()), location, size, err)
	}()

	data, err := s.codec.Encode(m)
	if err != nil {
		return nil, err
	}

	dir := s.objectDir(m.ID)
	entry := m.Summary()
	entry.Location = s.backend.Location(dir)
	entry.Size = int64(len(data))
	entry.Checksum = Checksum(data)

	metadata := map[string]string{
		"manifest-id":   m.ID,
		"database-name": m.Database,
	}
	if err := s.backend.Write(ctx, dir+manifestObject, data, metadata); err != nil {
		return nil, storageError("failed to store manifest", m.ID, err)
	}

	summaryData, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return nil, storageError("failed to serialize manifest summary", m.ID, err)
	}
	if err := s.backend.Write(ctx, dir+summaryObject, summaryData, metadata); err != nil {
		return nil, storageError("failed to store manifest summary", m.ID, err)
	}

	return &entry, nil
}

// Get loads and decodes a manifest
func (s *ObjectStore) Get(ctx context.Context, id string) (*Manifest, error) {
	if id == "" {
		return nil, errors.NewAppError(errors.ErrorTypeValidation, "manifest ID cannot be empty", nil)
	}

	data, err := s.backend.Read(ctx, s.objectDir(id)+manifestObject)
	if err != nil {
		return nil, storageError(fmt.Sprintf("manifest %s not found", id), id, err)
	}

	m, err := s.codec.Decode(data)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// List returns stored manifests, newest first. Unreadable summaries are skipped.
func (s *ObjectStore) List(ctx context.Context, filter Filter) ([]Summary, error) {
	keys, err := s.backend.Keys(ctx, s.prefix)
	if err != nil {
		return nil, storageError("failed to list manifests", "", err)
	}

	var summaries []Summary
	for _, key := range keys {
		if !strings.HasSuffix(key, "/"+summaryObject) {
			continue
		}

		data, err := s.backend.Read(ctx, key)
		if err != nil {
			s.logger.WithField("key", key).Debug("Skipping unreadable manifest summary")
			continue
		}
		var entry Summary
		if err := json.Unmarshal(data, &entry); err != nil {
			s.logger.WithField("key", key).Debug("Skipping malformed manifest summary")
			continue
		}
		if filter.Database != "" && !strings.EqualFold(entry.Database, filter.Database) {
			continue
		}
		summaries = append(summaries, entry)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	if filter.MaxItems > 0 && len(summaries) > filter.MaxItems {
		summaries = summaries[:filter.MaxItems]
	}
	return summaries, nil
}

// Delete removes every object of a manifest
func (s *ObjectStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.NewAppError(errors.ErrorTypeValidation, "manifest ID cannot be empty", nil)
	}

	dir := s.objectDir(id)
	keys, err := s.backend.Keys(ctx, dir)
	if err != nil {
		return storageError("failed to list manifest objects", id, err)
	}
	if len(keys) == 0 {
		return storageError(fmt.Sprintf("manifest %s not found", id), id, nil)
	}

	for _, key := range keys {
		if err := s.backend.Remove(ctx, key); err != nil {
			return storageError(fmt.Sprintf("failed to delete %s", key), id, err)
		}
	}
	return nil
}

func (s *ObjectStore) objectDir(id string) string {
	return s.prefix + sanitizeID(id) + "/"
}

// sanitizeID keeps manifest IDs from escaping their directory
func sanitizeID(id string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", "..", "_", " ", "_")
	return r.Replace(id)
}

func storageError(message, id string, cause error) error {
	appErr := errors.NewAppError(errors.ErrorTypeStorage, message, cause)
	if id != "" {
		appErr = appErr.WithContext("manifest_id", id)
	}
	return appErr
}
