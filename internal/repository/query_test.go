package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListQueryNormalize(t *testing.T) {
	tests := []struct {
		name       string
		in         ListQuery
		page       int
		limit      int
		wantOffset int
	}{
		{"zero value gets defaults", ListQuery{}, 1, DefaultPageSize, 0},
		{"negative page clamped", ListQuery{Page: -3, Limit: 10}, 1, 10, 0},
		{"limit capped", ListQuery{Page: 2, Limit: 500}, 2, MaxPageSize, MaxPageSize},
		{"plain paging", ListQuery{Page: 3, Limit: 20}, 3, 20, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.in.Normalize()
			assert.Equal(t, tt.page, q.Page)
			assert.Equal(t, tt.limit, q.Limit)
			assert.Equal(t, tt.wantOffset, q.Offset())
		})
	}
}
