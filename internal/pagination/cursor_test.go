package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.UTC)

	encoded := EncodeCursor("job-42", ts)
	assert.NotContains(t, encoded, "=")

	decoded, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, "job-42", decoded.LastID)
	assert.True(t, ts.Equal(decoded.Timestamp))
}

func TestDecodeCursor(t *testing.T) {
	c, err := DecodeCursor("")
	assert.NoError(t, err)
	assert.Nil(t, c)

	for _, bad := range []string{"!!!", "bm8tc2VwYXJhdG9y", "fG5vdC1hLWRhdGU"} {
		_, err := DecodeCursor(bad)
		assert.ErrorIs(t, err, ErrInvalidCursor, bad)
	}

	assert.Empty(t, EncodeCursor("", time.Now()))
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", DefaultLimit, false},
		{"5", 5, false},
		{"1000", MaxLimit, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"ten", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseLimit(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidLimit)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type row struct {
	id string
	at time.Time
}

func TestNewPage(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []row{{"c", base.Add(2 * time.Hour)}, {"b", base.Add(time.Hour)}, {"a", base}}
	id := func(r row) string { return r.id }
	at := func(r row) time.Time { return r.at }

	page := NewPage(rows, 2, id, at)
	assert.True(t, page.HasMore)
	assert.Len(t, page.Items, 2)
	cursor, err := DecodeCursor(page.Cursor)
	require.NoError(t, err)
	assert.Equal(t, "b", cursor.LastID)

	last := NewPage(rows[2:], 2, id, at)
	assert.False(t, last.HasMore)
	assert.Empty(t, last.Cursor)

	empty := NewPage[row](nil, 2, id, at)
	assert.NotNil(t, empty.Items)
}
