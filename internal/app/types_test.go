package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRequest_Normalize(t *testing.T) {
	assert.Equal(t, PageRequest{Offset: 0, Limit: DefaultPageSize}, PageRequest{Offset: -4}.Normalize())
	assert.Equal(t, PageRequest{Offset: 40, Limit: 5}, PageRequest{Offset: 40, Limit: 5}.Normalize())
}

func TestOpportunityPage_HasMore(t *testing.T) {
	assert.True(t, (&OpportunityPage{NextOffset: 20}).HasMore())
	assert.False(t, (&OpportunityPage{NextOffset: -1}).HasMore())
}
