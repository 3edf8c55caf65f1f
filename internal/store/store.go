// Package store implements the content-addressed artifact store.
//
// The store is a directory tree:
//
//	<root>/<StorageID>/<PackageHash>/<archive>.zip
//	<root>/<StorageID>/labels.yml
//
// A PackageHash is a pure function of the relative paths and bytes of the
// files in a package, so adding the same content twice is a no-op no matter
// where it was staged or in which order its files were written.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Iron-Ham/mailcd/internal/errors"
	"github.com/Iron-Ham/mailcd/internal/logging"
)

// Store is an artifact store rooted at a directory. It is safe for use by
// several processes at once; writes to one bucket are serialized with a file
// lock.
type Store struct {
	root   string
	logger *logging.Logger
}

// New returns a Store rooted at root. The directory is created lazily on the
// first Add.
func New(root string, logger *logging.Logger) *Store {
	return &Store{
		root:   root,
		logger: logging.OrNop(logger).WithComponent("store"),
	}
}

// Root returns the store directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) bucket(storageID string) string {
	return filepath.Join(s.root, storageID)
}

func (s *Store) packageDir(storageID, hash string) string {
	return filepath.Join(s.root, storageID, hash)
}

func validStorageID(storageID string) error {
	if storageID == "" || strings.ContainsAny(storageID, `/\`) ||
		strings.HasPrefix(storageID, ".") {
		return errors.NewValidationError("invalid storage id").WithField("storage_id").WithValue(storageID)
	}
	return nil
}

func (s *Store) requireBucket(storageID string) error {
	if err := validStorageID(storageID); err != nil {
		return err
	}
	info, err := os.Stat(s.bucket(storageID))
	if err != nil || !info.IsDir() {
		return errors.NewStoreError("no such bucket", errors.ErrStorageIDNotFound).WithStorageID(storageID)
	}
	return nil
}

func (s *Store) requirePackage(storageID, hash string) error {
	if err := s.requireBucket(storageID); err != nil {
		return err
	}
	info, err := os.Stat(s.packageDir(storageID, hash))
	if hash == "" || strings.ContainsAny(hash, `/\`) || err != nil || !info.IsDir() {
		return errors.NewNotFoundError("package", storageID+"/"+hash).WithCause(errors.ErrPackageNotFound)
	}
	return nil
}

// Add stores the package at sourcePath under storageID and returns its hash.
// A package whose hash is already present is left untouched.
func (s *Store) Add(storageID, sourcePath string) (string, error) {
	if err := validStorageID(storageID); err != nil {
		return "", err
	}
	if _, err := os.Stat(sourcePath); err != nil {
		return "", errors.NewStoreError("add package", errors.ErrInvalidPath).
			WithStorageID(storageID).WithPath(sourcePath)
	}

	hash, err := HashPath(sourcePath)
	if err != nil {
		return "", errors.NewStoreError("hash package", err).WithStorageID(storageID).WithPath(sourcePath)
	}
	log := s.logger.WithStorage(storageID).With("hash", hash)

	lock := newFileLock(s.bucket(storageID))
	if err := lock.Lock(); err != nil {
		return "", errors.NewStoreError("lock bucket", err).WithStorageID(storageID)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn("failed to release bucket lock", "error", err.Error())
		}
	}()

	dir := s.packageDir(storageID, hash)
	if _, err := os.Stat(dir); err == nil {
		log.Info("package already stored", "source", sourcePath)
		return hash, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.NewStoreError("create package directory", err).WithStorageID(storageID).WithHash(hash)
	}
	if err := writeArchive(sourcePath, filepath.Join(dir, archiveName(sourcePath))); err != nil {
		_ = os.RemoveAll(dir)
		return "", errors.NewStoreError("archive package", err).WithStorageID(storageID).WithHash(hash)
	}

	log.Info("package stored", "source", sourcePath)
	return hash, nil
}

// List returns the known StorageIDs when storageID is empty, otherwise the
// package hashes in that bucket. Both lists are sorted.
func (s *Store) List(storageID string) ([]string, error) {
	if storageID == "" {
		names, err := listDirs(s.root)
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		if err != nil {
			return nil, errors.NewStoreError("list buckets", err).WithPath(s.root)
		}
		return names, nil
	}

	if err := s.requireBucket(storageID); err != nil {
		return nil, err
	}
	names, err := listDirs(s.bucket(storageID))
	if err != nil {
		return nil, errors.NewStoreError("list packages", err).WithStorageID(storageID)
	}
	return names, nil
}

// listDirs returns the non-hidden subdirectories of dir, sorted.
func listDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Label attaches label to a package. Labels compare case-insensitively and
// are stored as supplied.
func (s *Store) Label(storageID, hash, label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return errors.NewValidationError("label must not be empty").WithField("label")
	}
	if err := s.requirePackage(storageID, hash); err != nil {
		return err
	}

	lock := newFileLock(s.bucket(storageID))
	if err := lock.Lock(); err != nil {
		return errors.NewStoreError("lock bucket", err).WithStorageID(storageID)
	}
	defer func() { _ = lock.Unlock() }()

	index, err := loadLabels(s.bucket(storageID))
	if err != nil {
		return errors.NewStoreError("load labels", err).WithStorageID(storageID)
	}
	if hasLabel(index[hash], label) {
		return errors.NewAlreadyExistsError("label", label).WithCause(errors.ErrLabelExists)
	}
	index[hash] = append(index[hash], label)
	if err := saveLabels(s.bucket(storageID), index); err != nil {
		return errors.NewStoreError("save labels", err).WithStorageID(storageID).WithHash(hash)
	}

	s.logger.WithStorage(storageID).Info("label attached", "hash", hash, "label", label)
	return nil
}

// GetLabels returns the labels of a package in the order they were attached.
func (s *Store) GetLabels(storageID, hash string) ([]string, error) {
	if err := s.requirePackage(storageID, hash); err != nil {
		return nil, err
	}
	index, err := loadLabels(s.bucket(storageID))
	if err != nil {
		return nil, errors.NewStoreError("load labels", err).WithStorageID(storageID)
	}
	return append([]string{}, index[hash]...), nil
}

// Find returns the hashes of packages carrying every label, sorted. With no
// labels every package matches.
func (s *Store) Find(storageID string, labels ...string) ([]string, error) {
	hashes, err := s.List(storageID)
	if err != nil {
		return nil, err
	}
	index, err := loadLabels(s.bucket(storageID))
	if err != nil {
		return nil, errors.NewStoreError("load labels", err).WithStorageID(storageID)
	}

	matches := []string{}
	for _, h := range hashes {
		if hasAllLabels(index[h], labels) {
			matches = append(matches, h)
		}
	}
	return matches, nil
}

// Matches returns every hash in the bucket starting with prefix, sorted.
func (s *Store) Matches(storageID, prefix string) ([]string, error) {
	hashes, err := s.List(storageID)
	if err != nil {
		return nil, err
	}
	prefix = strings.ToLower(prefix)

	matches := []string{}
	for _, h := range hashes {
		if strings.HasPrefix(h, prefix) {
			matches = append(matches, h)
		}
	}
	return matches, nil
}

// ResolvePartialHash expands prefix to the single hash it identifies.
func (s *Store) ResolvePartialHash(storageID, prefix string) (string, error) {
	matches, err := s.Matches(storageID, prefix)
	if err != nil {
		return "", err
	}
	switch len(matches) {
	case 0:
		return "", errors.NewNotFoundError("package", storageID+"/"+prefix).WithCause(errors.ErrPackageNotFound)
	case 1:
		return matches[0], nil
	default:
		return "", errors.NewAmbiguousMatchError(storageID, prefix, matches)
	}
}

// Contents lists the files inside a stored package.
func (s *Store) Contents(storageID, hash string) ([]Entry, error) {
	archive, err := s.archivePath(storageID, hash)
	if err != nil {
		return nil, err
	}
	entries, err := listArchive(archive)
	if err != nil {
		return nil, errors.NewStoreError("read archive", err).WithStorageID(storageID).WithHash(hash)
	}
	return entries, nil
}

// Download extracts a package into targetDir, creating it if needed.
func (s *Store) Download(storageID, hash, targetDir string) error {
	archive, err := s.archivePath(storageID, hash)
	if err != nil {
		return err
	}
	if err := extractArchive(archive, targetDir); err != nil {
		return errors.NewStoreError("extract archive", err).
			WithStorageID(storageID).WithHash(hash).WithPath(targetDir)
	}

	s.logger.WithStorage(storageID).Info("package downloaded", "hash", hash, "target", targetDir)
	return nil
}

// archivePath returns the single archive in a package directory.
func (s *Store) archivePath(storageID, hash string) (string, error) {
	if err := s.requirePackage(storageID, hash); err != nil {
		return "", err
	}
	dir := s.packageDir(storageID, hash)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.NewStoreError("read package directory", err).WithStorageID(storageID).WithHash(hash)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			files = append(files, e.Name())
		}
	}
	if len(files) != 1 {
		return "", errors.NewStoreError(fmt.Sprintf("expected one archive, found %d", len(files)), errors.ErrStoreCorrupt).
			WithStorageID(storageID).WithHash(hash)
	}
	return filepath.Join(dir, files[0]), nil
}
