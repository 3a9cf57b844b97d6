package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to RequestStatus
		want     bool
	}{
		{StatusNew, StatusAssigned, true},
		{StatusNew, StatusInProgress, false},
		{StatusAssigned, StatusAssigned, true},
		{StatusAssigned, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusAssigned, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusNew, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestRequestStatusValid(t *testing.T) {
	assert.True(t, StatusInProgress.Valid())
	assert.False(t, RequestStatus("archived").Valid())
}

func TestParseCategoryKind(t *testing.T) {
	kind, err := ParseCategoryKind("movable_property")
	require.NoError(t, err)
	assert.Equal(t, KindMovableProperty, kind)

	_, err = ParseCategoryKind("gallery")
	require.Error(t, err)
}
