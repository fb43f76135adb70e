package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/kharvd/gpt-telegram-bot/internal/fsstore"
)

const sessionFileVersion = 1

type sessionFile struct {
	Version int     `json:"version"`
	Session Session `json:"session"`
}

// FileStore keeps one JSON document per user under root, written atomically.
// A single process owns the state dir; a mutex serializes writers in-process.
type FileStore struct {
	root string
	mu   sync.Mutex
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: strings.TrimSpace(root)}
}

func (s *FileStore) Ensure(ctx context.Context) error {
	if err := ensureNotCanceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fsstore.EnsureDir(s.root, 0o700)
}

func (s *FileStore) Get(ctx context.Context, userID int64) (Session, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return Session{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc sessionFile
	found, err := fsstore.ReadJSON(s.sessionPath(userID), &doc)
	if err != nil {
		return Session{}, err
	}
	if !found {
		return Session{}, nil
	}
	return doc.Session, nil
}

func (s *FileStore) Put(ctx context.Context, userID int64, sess Session) error {
	if err := ensureNotCanceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := sessionFile{Version: sessionFileVersion, Session: sess}
	return fsstore.WriteJSONAtomic(s.sessionPath(userID), doc, fsstore.FileOptions{})
}

func (s *FileStore) Delete(ctx context.Context, userID int64) error {
	if err := ensureNotCanceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.sessionPath(userID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete session %d: %w", userID, err)
	}
	return nil
}

func (s *FileStore) sessionPath(userID int64) string {
	return filepath.Join(s.root, strconv.FormatInt(userID, 10)+".json")
}

func ensureNotCanceled(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}
