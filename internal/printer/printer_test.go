package printer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checker(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	return img
}

func TestBitmap(t *testing.T) {
	bm := Bitmap(checker(10, 2), defaultThreshold)
	// 10 px wide rows take two bytes
	require.Len(t, bm, 4)
	assert.Equal(t, []byte{0b10101010, 0b10000000, 0b01010101, 0b01000000}, bm)
}

func TestBitmap_TransparentIsWhite(t *testing.T) {
	bm := Bitmap(image.NewRGBA(image.Rect(0, 0, 8, 1)), defaultThreshold)
	assert.Equal(t, []byte{0}, bm)
}

func TestEncodeLabel(t *testing.T) {
	data := EncodeLabel(checker(16, 3), true)

	assert.True(t, bytes.HasPrefix(data, []byte{ESC, '@'}))
	header := []byte{GS, 'v', '0', 0, 2, 0, 3, 0}
	assert.Equal(t, header, data[2:10])
	assert.Len(t, data, 2+8+6+3+3)
	assert.True(t, bytes.HasSuffix(data, []byte{GS, 'V', 0}))

	noCut := EncodeLabel(checker(16, 3), false)
	assert.Len(t, noCut, len(data)-3)
}

func TestManager_Add(t *testing.T) {
	m, err := NewManager([]Target{{Name: "shelf", Type: TypeNetwork, Address: "10.0.0.5"}})
	require.NoError(t, err)

	assert.Error(t, m.Add(Target{Name: "shelf", Type: TypeNetwork, Address: "10.0.0.6"}))
	assert.Error(t, m.Add(Target{Name: "usb", Type: "usb", Address: "1"}))
	assert.Error(t, m.Add(Target{Name: "blank", Type: TypeSerial}))
	assert.Len(t, m.List(), 1)
}

type recorder struct {
	bytes.Buffer
	closed bool
}

func (r *recorder) Close() error {
	r.closed = true
	return nil
}

func TestManager_Print(t *testing.T) {
	m, err := NewManager([]Target{{Name: "bench", Type: TypeSerial, Address: "/dev/null"}})
	require.NoError(t, err)
	rec := &recorder{}
	m.dial = func(Target) (Connection, error) { return rec, nil }

	var last int
	imgs := []image.Image{checker(8, 2), checker(8, 2)}
	require.NoError(t, m.Print(context.Background(), "bench", imgs, func(done, total int) { last = done }))

	assert.Equal(t, 2, last)
	assert.True(t, rec.closed)
	assert.Equal(t, 2*len(EncodeLabel(imgs[0], false)), rec.Len())
}

func TestManager_PrintCancelled(t *testing.T) {
	m, err := NewManager([]Target{{Name: "bench", Type: TypeSerial, Address: "/dev/null"}})
	require.NoError(t, err)
	rec := &recorder{}
	m.dial = func(Target) (Connection, error) { return rec, nil }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = m.Print(ctx, "bench", []image.Image{checker(8, 1)}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, rec.Len())
}

func TestManager_UnknownPrinter(t *testing.T) {
	m, err := NewManager(nil)
	require.NoError(t, err)
	err = m.Print(context.Background(), "ghost", nil, nil)
	assert.True(t, errors.Is(err, ErrUnknownPrinter))
}

func TestConnectNetwork(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	m, err := NewManager([]Target{{Name: "lan", Type: TypeNetwork, Address: ln.Addr().String()}})
	require.NoError(t, err)
	img := checker(8, 4)
	require.NoError(t, m.Print(context.Background(), "lan", []image.Image{img}, nil))

	assert.Equal(t, EncodeLabel(img, false), <-received)
}
