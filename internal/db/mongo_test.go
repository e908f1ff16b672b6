package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginationNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   PaginationParams
		want PaginationParams
	}{
		{"defaults", PaginationParams{}, PaginationParams{Page: 1, PageSize: defaultPageSize}},
		{"capped", PaginationParams{Page: 3, PageSize: 500}, PaginationParams{Page: 3, PageSize: maxPageSize}},
		{"untouched", PaginationParams{Page: 2, PageSize: 15, SortBy: "createdAt"}, PaginationParams{Page: 2, PageSize: 15, SortBy: "createdAt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestPageCount(t *testing.T) {
	assert.Equal(t, int64(0), pageCount(0, 15))
	assert.Equal(t, int64(1), pageCount(15, 15))
	assert.Equal(t, int64(2), pageCount(16, 15))
	assert.Equal(t, int64(0), pageCount(10, 0))
}
