// Package storage is the file-system layer of the photo inbox.
package storage

import "github.com/starford/plantcare/internal/models"

// Provider is the interface for inbox file operations. Paths are relative to
// the inbox root.
type Provider interface {
	// Root returns the absolute inbox directory.
	Root() string
	// List returns metadata for every image file under dir, skipping hidden
	// directories such as the upload archive.
	List(dir string) ([]models.InboxFile, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath, creating parent directories.
	Move(oldPath, newPath string) error
}
