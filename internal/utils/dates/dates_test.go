package dates_test

import (
	"testing"
	"time"

	"github.com/SscSPs/client_records_app/internal/utils/dates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "02/20/2026", want: "02/20/2026"},
		{raw: "2/5/2026", want: "02/05/2026"},
		{raw: "02-20-2026", want: "02/20/2026"},
		{raw: "02.20.2026", want: "02/20/2026"},
		{raw: "2026-02-20", want: "02/20/2026"},
		{raw: "2026/2/20", want: "02/20/2026"},
		{raw: "2026-02-20T10:11:12.000Z", want: "02/20/2026"},
		{raw: "02/29/2024", want: "02/29/2024"},
		{raw: "02/29/2025", wantErr: true},
		{raw: "02/30/2026", wantErr: true},
		{raw: "13/01/2026", wantErr: true},
		{raw: "00/10/2026", wantErr: true},
		{raw: "04/31/2026", wantErr: true},
		{raw: "01/01/1850", wantErr: true},
		{raw: "tomorrow", wantErr: true},
		{raw: "2026-02", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := dates.NormalizeDate(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, dates.ErrInvalidDate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	got, err := dates.NormalizeTimestamp("2026-02-20T10:11:12+02:00")
	require.NoError(t, err)
	assert.Equal(t, "2026-02-20T08:11:12.000Z", got)

	got, err = dates.NormalizeTimestamp("2026-02-20")
	require.NoError(t, err)
	assert.Equal(t, "2026-02-20T00:00:00.000Z", got)

	_, err = dates.NormalizeTimestamp("20/02/2026 10:00")
	assert.ErrorIs(t, err, dates.ErrInvalidTimestamp)
}

func TestDateOrdering(t *testing.T) {
	a, err := dates.ParseDate("01/31/2026")
	require.NoError(t, err)
	b, err := dates.ParseDate("02/01/2026")
	require.NoError(t, err)
	assert.True(t, a.Before(b))
	assert.False(t, b.Before(a))
	assert.Equal(t, "03/04/2026", dates.FromTime(time.Date(2026, 3, 4, 23, 0, 0, 0, time.UTC)).String())
}
