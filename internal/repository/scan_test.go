package repository

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPage(t *testing.T) {
	cases := []struct {
		p, size       int
		limit, offset int
	}{
		{0, 0, 20, 0},
		{1, 10, 10, 0},
		{3, 10, 10, 20},
		{2, 500, 100, 100},
		{-4, -1, 20, 0},
	}
	for _, tc := range cases {
		limit, offset := page(tc.p, tc.size)
		assert.Equal(t, tc.limit, limit, "limit for page=%d size=%d", tc.p, tc.size)
		assert.Equal(t, tc.offset, offset, "offset for page=%d size=%d", tc.p, tc.size)
	}
}

func TestNullHelpers(t *testing.T) {
	assert.Nil(t, nullTimePtr(sql.NullTime{}))
	now := time.Now()
	got := nullTimePtr(sql.NullTime{Time: now, Valid: true})
	if assert.NotNil(t, got) {
		assert.Equal(t, time.UTC, got.Location())
	}
	assert.Nil(t, timeArg(nil))
	assert.Nil(t, jsonArg(nil))
	assert.Equal(t, []byte(`{}`), jsonArg([]byte(`{}`)))

	assert.Nil(t, nullUint64Ptr(sql.NullInt64{}))
	assert.Equal(t, uint64(7), *nullUint64Ptr(sql.NullInt64{Int64: 7, Valid: true}))
	assert.Nil(t, uint64Arg(nil))
	v := uint64(9)
	assert.Equal(t, uint64(9), uint64Arg(&v))
}
