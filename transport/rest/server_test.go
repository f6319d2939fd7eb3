package rest

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/atrapa-milio/internal/apperror"
	"github.com/rocketscienceinc/atrapa-milio/internal/event"
)

type stubRooms struct {
	rooms map[string]event.RoomView
	err   error
}

func (that stubRooms) Room(_ context.Context, code string) (event.RoomView, error) {
	if that.err != nil {
		return event.RoomView{}, that.err
	}

	room, ok := that.rooms[code]
	if !ok {
		return event.RoomView{}, apperror.ErrRoomNotFound
	}
	return room, nil
}

func newTestHandler(rooms stubRooms) http.Handler {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return New(logger, rooms, "https://atrapa.example/").Handler()
}

func serve(handler http.Handler, method, target string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(method, target, nil))
	return recorder
}

func TestServer_Health(t *testing.T) {
	handler := newTestHandler(stubRooms{})

	// When: the probes are called
	health := serve(handler, http.MethodGet, "/health")
	ping := serve(handler, http.MethodGet, "/ping")

	// Then: both answer 200
	assert.Equal(t, http.StatusOK, health.Code)
	assert.JSONEq(t, `{"status":"ok"}`, health.Body.String())
	assert.Equal(t, "application/json", health.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusOK, ping.Code)
	assert.Equal(t, "pong", ping.Body.String())
}

func TestServer_QRCode(t *testing.T) {
	handler := newTestHandler(stubRooms{rooms: map[string]event.RoomView{
		"ABC123": {RoomCode: "ABC123"},
	}})

	t.Run("existing room", func(t *testing.T) {
		// When: the QR code of a known room is requested
		recorder := serve(handler, http.MethodGet, "/rooms/ABC123/qr.png")

		// Then: a decodable PNG comes back
		require.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, "image/png", recorder.Header().Get("Content-Type"))

		img, err := png.Decode(bytes.NewReader(recorder.Body.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, qrSize, img.Bounds().Dx())
	})

	t.Run("unknown room", func(t *testing.T) {
		recorder := serve(handler, http.MethodGet, "/rooms/ZZZZZZ/qr.png")

		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		recorder := serve(handler, http.MethodPost, "/rooms/ABC123/qr.png")

		assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
	})
}

func TestServer_QRCode_StoreFailure(t *testing.T) {
	// Given: a store that cannot be reached
	handler := newTestHandler(stubRooms{err: errors.New("connection refused")})

	// When: a QR code is requested
	recorder := serve(handler, http.MethodGet, "/rooms/ABC123/qr.png")

	// Then: the internal error is not leaked
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.NotContains(t, recorder.Body.String(), "connection refused")
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://atrapa.example/join/ABC123", JoinURL("https://atrapa.example/", "ABC123"))
	assert.Equal(t, "http://localhost:5173/join/XYZ789", JoinURL("http://localhost:5173", "XYZ789"))
}
