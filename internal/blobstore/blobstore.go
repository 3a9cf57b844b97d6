// Package blobstore stores uploaded photo files and maps their stored keys to
// the paths clients use to retrieve them.
package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"
)

var (
	// ErrNotFound is returned when no blob exists under a key
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidKey is returned for keys that escape the store
	ErrInvalidKey = errors.New("invalid blob key")
)

// Store persists photo bytes under opaque relative keys
type Store interface {
	Save(ctx context.Context, prefix, mimeType string, r io.Reader) (key string, err error)
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
}

// Resolver turns stored keys into fully-qualified retrieval paths and back
type Resolver struct {
	Base string
}

// NewResolver returns a Resolver for the given base path or URL prefix
func NewResolver(base string) Resolver {
	return Resolver{Base: strings.TrimRight(base, "/")}
}

// Qualify prefixes key with the base path
func (r Resolver) Qualify(key string) string {
	if r.Base == "" {
		return key
	}
	return r.Base + "/" + strings.TrimLeft(key, "/")
}

// Key strips the base path from a qualified path. Paths that do not carry
// the base are returned unchanged.
func (r Resolver) Key(path string) string {
	if r.Base == "" {
		return path
	}
	return strings.TrimPrefix(path, r.Base+"/")
}
