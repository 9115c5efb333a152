package provider

import (
	"bytes"
	"context"
	"testing"
	"testing/fstest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticker-strategy-lab/internal/domain"
	"ticker-strategy-lab/internal/storage/memory"
)

func zerologNop() zerolog.Logger { return zerolog.Nop() }

func TestCSVProvider_Fetch(t *testing.T) {
	fsys := fstest.MapFS{
		"IXIC.csv": {Data: []byte("Date,Open,Close,Adj Close\n" +
			"2024-03-04 00:00:00-05:00,1,10,9.5\n" +
			"2024-03-05,1,11,10.5\n" +
			"2024-03-06,1,,\n" +
			"2024-03-07,1,12,11.5\n")},
	}
	p := NewCSVProviderFS(fsys)

	s, err := p.Fetch(context.Background(), "^IXIC", day0, day0.AddDate(0, 0, 2))
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, []float64{9.5, 10.5}, s.Closes(), "adj close preferred, rows outside range dropped")
}

func TestCSVProvider_MissingFile(t *testing.T) {
	p := NewCSVProviderFS(fstest.MapFS{})
	_, err := p.Fetch(context.Background(), "SPY", day0, day0)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestCSVProvider_EmptyRange(t *testing.T) {
	p := NewCSVProviderFS(fstest.MapFS{"SPY.csv": {Data: []byte("date,close\n2024-03-04,1\n")}})
	_, err := p.Fetch(context.Background(), "SPY", day0.AddDate(1, 0, 0), day0.AddDate(1, 0, 5))
	assert.ErrorIs(t, err, ErrNoData)
}

func TestReadCSV_BadHeader(t *testing.T) {
	_, err := ReadCSV(bytes.NewBufferString("when,price\n"))
	assert.Error(t, err)
}

func TestWriteCSV_ReadBack(t *testing.T) {
	s, err := domain.DailySeries("SPY", day0, []float64{1.25, 2, 3})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, s))

	points, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, 1.25, points[0].Close)
	assert.True(t, points[2].Date.Equal(day0.AddDate(0, 0, 2)))
}

func TestStoreProvider_Fetch(t *testing.T) {
	store := memory.NewPriceSeriesStore()
	ctx := context.Background()
	require.NoError(t, store.InsertBulk(ctx, "SPY", []domain.PricePoint{
		{Date: day0, Close: 1},
		{Date: day0.AddDate(0, 0, 1), Close: 2},
	}))

	p := NewStoreProvider(store)
	s, err := p.Fetch(ctx, "SPY", day0, day0.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	_, err = p.Fetch(ctx, "QQQ", day0, day0)
	assert.ErrorIs(t, err, ErrNoData)
}
