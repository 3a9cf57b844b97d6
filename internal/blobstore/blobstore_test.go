package blobstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolverQualify(t *testing.T) {
	tests := []struct {
		base, key, want string
	}{
		{"uploads", "abc.jpg", "uploads/abc.jpg"},
		{"uploads/", "abc.jpg", "uploads/abc.jpg"},
		{"https://cdn.example.com/photos", "/abc.jpg", "https://cdn.example.com/photos/abc.jpg"},
		{"", "abc.jpg", "abc.jpg"},
	}
	for _, tt := range tests {
		r := NewResolver(tt.base)
		assert.Equal(t, tt.want, r.Qualify(tt.key), "base=%q key=%q", tt.base, tt.key)
	}
}

func TestResolverKeyRoundTrip(t *testing.T) {
	r := NewResolver("uploads")

	assert.Equal(t, "req_5/abc.jpg", r.Key(r.Qualify("req_5/abc.jpg")))
	assert.Equal(t, "other/abc.jpg", r.Key("other/abc.jpg"))
}
