package music

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mkravch/media_library/internal/logging"
)

type Handler struct {
	Lib *Library
}

// Playlist returns the demo track followed by everything in the music dir.
func (h *Handler) Playlist(c echo.Context) error {
	playlist := []Track{
		{
			ID:       "demo1",
			Title:    "Techno Dream",
			Artist:   "SoundHelix",
			Category: "Electronic",
			Album:    "Digital Horizons",
			Duration: "5:30",
			URL:      "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-1.mp3",
		},
	}

	tracks, err := h.Lib.Scan()
	if err != nil {
		logging.FromContext(c.Request().Context()).Warn("music scan failed", "error", err)
	} else {
		playlist = append(playlist, tracks...)
	}

	return c.JSON(http.StatusOK, playlist)
}

func (h *Handler) Cover(c echo.Context) error {
	data, mime, err := h.Lib.Cover(c.Param("filename"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "no cover found")
	}
	return c.Blob(http.StatusOK, mime, data)
}

func (h *Handler) Categories(c echo.Context) error {
	return c.JSON(http.StatusOK, []string{"My Library", "Electronic", "Classical", "Pop", "Rock"})
}

func Register(e *echo.Echo, h *Handler) {
	e.GET("/api/music", h.Playlist)
	e.GET("/api/cover/:filename", h.Cover)
	e.GET("/api/categories", h.Categories)
	e.Static("/music", h.Lib.Dir)
}
