package io

import (
	"os"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	u "github.com/moratsam/rsparity/util"
)

var (
	ErrUnknownFile = xerrors.New("unknown file id")
	ErrShortRead   = xerrors.New("short read")
	ErrShortWrite  = xerrors.New("short write")
)

// Handles are used with ReadAt/WriteAt only, but some afero files keep a
// shared cursor for those, so every handle is serialized.
type entry struct {
	mu      sync.Mutex
	path    string
	f       afero.File
	created bool
}

// FileStore implements BlockIO over an afero filesystem.
type FileStore struct {
	fs    afero.Fs
	mu    sync.RWMutex
	next  FileID
	files map[FileID]*entry
}

func NewFileStore(fs afero.Fs) *FileStore {
	return &FileStore{fs: fs, files: make(map[FileID]*entry)}
}

// NewOsFileStore is a store on the real filesystem.
func NewOsFileStore() *FileStore {
	return NewFileStore(afero.NewOsFs())
}

func (s *FileStore) add(path string, f afero.File, created bool) FileID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.files[id] = &entry{path: path, f: f, created: created}
	return id
}

// Open opens an existing file for reading and writing.
func (s *FileStore) Open(path string) (FileID, error) {
	f, err := s.fs.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return 0, u.WrapErr("open "+path, err)
	}
	return s.add(path, f, false), nil
}

// Create creates or truncates a file. Files created here are removed by Discard.
func (s *FileStore) Create(path string) (FileID, error) {
	f, err := s.fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, u.WrapErr("create "+path, err)
	}
	return s.add(path, f, true), nil
}

func (s *FileStore) get(id FileID) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.files[id]
	if !ok {
		return nil, xerrors.Errorf("file %d: %w", id, ErrUnknownFile)
	}
	return e, nil
}

func (s *FileStore) Path(id FileID) (string, error) {
	e, err := s.get(id)
	if err != nil {
		return "", err
	}
	return e.path, nil
}

func (s *FileStore) Size(id FileID) (int64, error) {
	e, err := s.get(id)
	if err != nil {
		return 0, err
	}
	fi, err := e.f.Stat()
	if err != nil {
		return 0, u.WrapErr("get stat", err)
	}
	return fi.Size(), nil
}

func (s *FileStore) ReadRange(id FileID, off int64, p []byte) error {
	e, err := s.get(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	n, err := e.f.ReadAt(p, off)
	e.mu.Unlock()
	if n == len(p) {
		return nil
	}
	if err != nil {
		return u.WrapErr("read "+e.path, err)
	}
	return xerrors.Errorf("read %s: %w", e.path, ErrShortRead)
}

func (s *FileStore) WriteRange(id FileID, off int64, p []byte) error {
	e, err := s.get(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	n, err := e.f.WriteAt(p, off)
	e.mu.Unlock()
	if err != nil {
		return u.WrapErr("write "+e.path, err)
	}
	if n != len(p) {
		return xerrors.Errorf("write %s: %w", e.path, ErrShortWrite)
	}
	return nil
}

// Discard closes and removes a file this store created. Files that were only
// opened are left alone.
func (s *FileStore) Discard(id FileID) error {
	s.mu.Lock()
	e, ok := s.files[id]
	if ok && e.created {
		delete(s.files, id)
	}
	s.mu.Unlock()
	if !ok || !e.created {
		return nil
	}
	if err := e.f.Close(); err != nil {
		return u.WrapErr("close "+e.path, err)
	}
	if err := s.fs.Remove(e.path); err != nil {
		return u.WrapErr("remove "+e.path, err)
	}
	return nil
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for id, e := range s.files {
		if err := e.f.Close(); err != nil && first == nil {
			first = u.WrapErr("close "+e.path, err)
		}
		delete(s.files, id)
	}
	return first
}
