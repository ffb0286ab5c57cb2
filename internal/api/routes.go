package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/b3eb0o/LyngvigFyr/internal/catalog"
	"github.com/b3eb0o/LyngvigFyr/internal/timelapse"
)

const maxDaysLimit = 365

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Get("/status/stream", statusStreamHandler(cfg))
		r.Get("/days", listDaysHandler(cfg))
		r.Get("/days/{date}", getDayHandler(cfg))
		r.Get("/videos/{date}", videoHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  cfg.Version,
			UptimeS:  uptime,
			Location: cfg.Location,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{Status: cfg.Daemon.Status()}

		if usage, err := diskUsage(cfg.OutputDir); err == nil {
			resp.Disk = usage
		} else {
			cfg.Logger.Debug("disk usage unavailable", "error", err)
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

// diskUsage reports free space on the volume holding dir, walking up to
// the nearest existing parent.
func diskUsage(dir string) (*DiskResponse, error) {
	path := dir
	for {
		if _, err := os.Stat(path); err == nil {
			break
		}
		parent := filepath.Dir(path)
		if parent == path {
			break
		}
		path = parent
	}

	u, err := disk.Usage(path)
	if err != nil {
		return nil, err
	}
	return &DiskResponse{
		Path:        path,
		FreeBytes:   u.Free,
		Free:        humanize.Bytes(u.Free),
		UsedPercent: u.UsedPercent,
	}, nil
}

func listDaysHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 30
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 || n > maxDaysLimit {
				WriteError(w, http.StatusBadRequest, "limit must be between 1 and 365", "BAD_REQUEST")
				return
			}
			limit = n
		}

		days, err := cfg.Repository.ListDays(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list days", "INTERNAL_ERROR")
			return
		}
		if days == nil {
			days = []*catalog.Day{}
		}
		WriteJSON(w, http.StatusOK, DaysResponse{Days: days})
	}
}

func getDayHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, ok := parseDateParam(w, r)
		if !ok {
			return
		}

		day, err := cfg.Repository.GetDay(r.Context(), date)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if day == nil {
			WriteError(w, http.StatusNotFound, "no record for "+date, "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, day)
	}
}

func videoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, ok := parseDateParam(w, r)
		if !ok {
			return
		}

		path := timelapse.VideoPath(cfg.OutputDir, cfg.Location, date)
		f, err := os.Open(path)
		if os.IsNotExist(err) {
			WriteError(w, http.StatusNotFound, "no video for "+date, "NOT_FOUND")
			return
		}
		if err != nil {
			cfg.Logger.Error("failed to open video", "date", date, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to open video", "INTERNAL_ERROR")
			return
		}
		defer f.Close()

		stat, err := f.Stat()
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to stat video", "INTERNAL_ERROR")
			return
		}

		w.Header().Set("Content-Type", "video/mp4")
		http.ServeContent(w, r, filepath.Base(path), stat.ModTime(), f)
	}
}

func parseDateParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := chi.URLParam(r, "date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		WriteError(w, http.StatusBadRequest, "date must be YYYY-MM-DD", "BAD_REQUEST")
		return "", false
	}
	return date, true
}
