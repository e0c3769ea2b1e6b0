package http

import (
	"net/http"
	"strconv"

	"attendancepro/internal/kiosk"
)

func (s *Server) handleKioskCode(w http.ResponseWriter, r *http.Request) {
	if s.kiosk == nil {
		writeError(w, http.StatusServiceUnavailable, "kiosk_disabled")
		return
	}
	ctx, cancel := s.storeContext(r.Context())
	defer cancel()

	code, err := s.kiosk.Current(ctx)
	if err != nil {
		serverError(w, r, "kiosk code", "", err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")

	if r.URL.Query().Get("format") != "png" {
		writeJSON(w, http.StatusOK, code)
		return
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size > 1024 {
		size = 1024
	}
	png, err := kiosk.PNG(code.Payload, size)
	if err != nil {
		serverError(w, r, "kiosk png", "", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
