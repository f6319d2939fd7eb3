package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/rocketscienceinc/atrapa-milio/internal/apperror"
)

const qrSize = 256

// JoinURL - returns the link a player opens to join the room.
func JoinURL(publicURL, code string) string {
	return strings.TrimRight(publicURL, "/") + "/join/" + code
}

// qrHandler - renders the join link of an existing room as a PNG QR code.
func (that *Server) qrHandler(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "qrHandler")

	room, err := that.rooms.Room(r.Context(), r.PathValue("code"))
	if err != nil {
		if errors.Is(err, apperror.ErrRoomNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		log.Error("failed to load room", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	png, err := qrcode.Encode(JoinURL(that.publicURL, room.RoomCode), qrcode.Medium, qrSize)
	if err != nil {
		log.Error("failed to encode qr code", "roomCode", room.RoomCode, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}
