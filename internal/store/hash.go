package store

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zip"
)

// chunkSize is the block size fed to the per-chunk digests.
const chunkSize = 4096

// packageHasher accumulates a package hash: for every entry, the SHA-1 of
// its relative path followed by the SHA-1 of each content chunk.
type packageHasher struct {
	sum hash.Hash
	buf []byte
}

func newPackageHasher() *packageHasher {
	return &packageHasher{sum: sha1.New(), buf: make([]byte, chunkSize)}
}

func (h *packageHasher) addPath(rel string) {
	d := sha1.Sum([]byte(rel))
	h.sum.Write(d[:])
}

func (h *packageHasher) addContent(r io.Reader) error {
	for {
		n, err := io.ReadFull(r, h.buf)
		if n > 0 {
			d := sha1.Sum(h.buf[:n])
			h.sum.Write(d[:])
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (h *packageHasher) hex() string {
	return hex.EncodeToString(h.sum.Sum(nil))
}

// HashPath returns the package hash of a directory, a zip archive, or a
// single file.
func HashPath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return HashDirectory(path)
	}
	if isZip(path) {
		return HashZip(path)
	}
	return hashSingleFile(path)
}

// HashDirectory hashes every regular file under dir in sorted relative-path
// order. Paths use forward slashes on every platform.
func HashDirectory(dir string) (string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(files)

	h := newPackageHasher()
	for _, rel := range files {
		h.addPath(rel)
		if err := hashFileInto(h, filepath.Join(dir, filepath.FromSlash(rel))); err != nil {
			return "", err
		}
	}
	return h.hex(), nil
}

// HashZip hashes the non-directory entries of a zip archive in sorted name
// order, so an archive hashes the same as the directory it was made from.
func HashZip(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open archive %s: %w", path, err)
	}
	defer zr.Close()

	entries := make([]*zip.File, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		entries = append(entries, f)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	h := newPackageHasher()
	for _, f := range entries {
		h.addPath(f.Name)
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open entry %s: %w", f.Name, err)
		}
		err = h.addContent(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read entry %s: %w", f.Name, err)
		}
	}
	return h.hex(), nil
}

// HashFile hashes only the content chunks of a file. It identifies container
// definitions, whose location does not matter.
func HashFile(path string) (string, error) {
	h := newPackageHasher()
	if err := hashFileInto(h, path); err != nil {
		return "", err
	}
	return h.hex(), nil
}

func hashSingleFile(path string) (string, error) {
	h := newPackageHasher()
	h.addPath(filepath.Base(path))
	if err := hashFileInto(h, path); err != nil {
		return "", err
	}
	return h.hex(), nil
}

func hashFileInto(h *packageHasher, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := h.addContent(f); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

// isZip reports whether path starts with a zip local file header.
func isZip(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil {
		return false
	}
	return string(magic) == "PK\x03\x04" || string(magic) == "PK\x05\x06"
}
