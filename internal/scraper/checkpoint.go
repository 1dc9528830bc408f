package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FileCheckpointStore persists checkpoints as JSON files under a directory.
// Each store instance writes under its own session id so concurrent crawls
// with distinct keys never collide on a filename; Load picks the newest
// snapshot for the key regardless of which session wrote it.
type FileCheckpointStore struct {
	dir       string
	sessionID string
	clock     Clock
	logger    *zap.Logger
}

// NewFileCheckpointStore creates the directory if needed.
func NewFileCheckpointStore(dir string, clock Clock, logger *zap.Logger) (*FileCheckpointStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating checkpoint dir: %w", err)
	}
	return &FileCheckpointStore{
		dir:       dir,
		sessionID: uuid.NewString()[:8],
		clock:     clock,
		logger:    logger,
	}, nil
}

// sanitizeToken keeps alphanumerics and replaces everything else with an
// underscore, so keys are safe as filename components.
func sanitizeToken(s string) string {
	if s == "" {
		return "any"
	}
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func checkpointKey(platform Platform, keyword, location string) string {
	return fmt.Sprintf("%s_%s_%s", platform, sanitizeToken(keyword), sanitizeToken(location))
}

func (s *FileCheckpointStore) path(platform Platform, keyword, location string) string {
	name := fmt.Sprintf("%s_%s.json", checkpointKey(platform, keyword, location), s.sessionID)
	return filepath.Join(s.dir, name)
}

// Save overwrites the snapshot for the checkpoint's key. The whole job list
// is rewritten each time; per-crawl lists are bounded to a few hundred
// records so the simplicity is worth it.
func (s *FileCheckpointStore) Save(ctx context.Context, cp Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp.JobsCount = len(cp.Jobs)
	if cp.Timestamp.IsZero() {
		cp.Timestamp = s.clock.Now()
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}
	path := s.path(cp.Platform, cp.Keyword, cp.Location)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	s.logger.Info("checkpoint saved",
		zap.String("path", path),
		zap.Int("page", cp.CurrentPage),
		zap.Int("jobs", cp.JobsCount))
	return nil
}

// Load returns the newest resumable snapshot for the key, or nil when none
// exists, the newest one is older than CheckpointMaxAge, or it cannot be
// decoded. A corrupt snapshot is logged and treated as not found.
func (s *FileCheckpointStore) Load(ctx context.Context, platform Platform, keyword, location string) (*Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, ok := s.newestSnapshot(platform, keyword, location)
	if !ok {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		s.logger.Warn("checkpoint corrupt, starting fresh",
			zap.String("path", path), zap.Error(err))
		return nil, nil
	}
	age := s.clock.Now().Sub(cp.Timestamp)
	if age > CheckpointMaxAge {
		s.logger.Info("checkpoint too old, starting fresh",
			zap.String("path", path), zap.Duration("age", age))
		return nil, nil
	}
	s.logger.Info("checkpoint loaded",
		zap.String("path", path),
		zap.Int("page", cp.CurrentPage),
		zap.Int("jobs", len(cp.Jobs)))
	return &cp, nil
}

// newestSnapshot scans the directory for files matching the key prefix and
// returns the most recently modified one.
func (s *FileCheckpointStore) newestSnapshot(platform Platform, keyword, location string) (string, bool) {
	prefix := checkpointKey(platform, keyword, location) + "_"
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", false
	}
	type candidate struct {
		path string
		mod  int64
	}
	var found []candidate
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, candidate{
			path: filepath.Join(s.dir, e.Name()),
			mod:  info.ModTime().UnixNano(),
		})
	}
	if len(found) == 0 {
		return "", false
	}
	sort.Slice(found, func(i, j int) bool { return found[i].mod > found[j].mod })
	return found[0].path, true
}
