package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/aferrazza/tunecrate/internal/catalog"
	"github.com/aferrazza/tunecrate/internal/downloader"
	"github.com/aferrazza/tunecrate/internal/downloader/progress"
	"github.com/aferrazza/tunecrate/internal/library"
	"github.com/aferrazza/tunecrate/internal/logctx"
	"github.com/aferrazza/tunecrate/internal/lyrics"
	"github.com/aferrazza/tunecrate/internal/storage"
	"github.com/aferrazza/tunecrate/internal/telemetry"
	"github.com/go-chi/chi/v5"
)

// DownloadRunner is the slice of the download pipeline the handler needs.
type DownloadRunner interface {
	Download(ctx context.Context, rawURL string) (*downloader.Result, error)
}

// LyricsLookup resolves lyrics for a track by artist and title.
type LyricsLookup interface {
	Lookup(ctx context.Context, artist, title string) (string, error)
}

// songView decorates a library entry with the caller's favorite flag.
type songView struct {
	library.Entry
	Favorite bool `json:"favorite"`
}

type MusicHandler struct {
	searcher   catalog.Searcher
	enumerator catalog.Enumerator
	runner     DownloadRunner
	lib        *library.Store
	tracker    *progress.Tracker
	favorites  storage.FavoriteRepository
	playlists  storage.PlaylistRepository
	history    storage.SearchHistoryRepository
	lyrics     LyricsLookup
	telemetry  *telemetry.Telemetry
}

// NewMusicHandler creates the handler serving the page and the JSON API.
func NewMusicHandler(
	searcher catalog.Searcher,
	enumerator catalog.Enumerator,
	runner DownloadRunner,
	lib *library.Store,
	tracker *progress.Tracker,
	favorites storage.FavoriteRepository,
	playlists storage.PlaylistRepository,
	history storage.SearchHistoryRepository,
	lyricsClient LyricsLookup,
	t *telemetry.Telemetry,
) *MusicHandler {
	return &MusicHandler{
		searcher:   searcher,
		enumerator: enumerator,
		runner:     runner,
		lib:        lib,
		tracker:    tracker,
		favorites:  favorites,
		playlists:  playlists,
		history:    history,
		lyrics:     lyricsClient,
		telemetry:  t,
	}
}

func (h *MusicHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/", h.HandlePage)
	r.Get("/health", h.HandleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/search", h.HandleSearch)
		r.Get("/search-history", h.HandleSearchHistory)
		r.Delete("/search-history", h.HandleClearSearchHistory)
		r.Post("/download", h.HandleDownload)
		r.Get("/download-progress/{id}", h.HandleDownloadProgress)
		r.Get("/stream/{id}", h.HandleStream)
		r.Get("/cover/{id}", h.HandleCover)
		r.Get("/library", h.HandleLibrary)
		r.Delete("/library/{id}", h.HandleDeleteTrack)
		r.Get("/favorites", h.HandleFavorites)
		r.Post("/favorites/{id}", h.HandleToggleFavorite)
		r.Get("/playlists", h.HandlePlaylists)
		r.Post("/playlists", h.HandleCreatePlaylist)
		r.Get("/playlists/{id}", h.HandleGetPlaylist)
		r.Put("/playlists/{id}", h.HandleRenamePlaylist)
		r.Delete("/playlists/{id}", h.HandleDeletePlaylist)
		r.Post("/playlists/{id}/songs", h.HandleAddPlaylistSong)
		r.Delete("/playlists/{id}/songs/{songID}", h.HandleRemovePlaylistSong)
		r.Get("/lyrics", h.HandleLyrics)
		r.Post("/import-playlist", h.HandleImportPlaylist)
	})

	return r
}

// HandlePage serves the single-page player UI.
func (h *MusicHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := page.Execute(w, nil); err != nil {
		logctx.LoggerFromContext(r.Context()).Error("failed to render page", "err", err)
	}
}

func (h *MusicHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleSearch looks up track candidates for a free-text query.
func (h *MusicHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	logger := logctx.LoggerFromContext(r.Context())

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		errorJSON(w, r, http.StatusBadRequest, "missing query parameter q")

		return
	}

	// History is cosmetic; a failed insert must not break the search.
	if err := h.history.RecordSearch(query); err != nil {
		logger.Warn("failed to record search", "query", query, "err", err)
	}

	results, err := h.searcher.Search(r.Context(), query, 0)
	if err != nil {
		var unavailable *catalog.UnavailableError
		if errors.As(err, &unavailable) {
			logger.Error("catalog source unavailable", "query", query, "err", err)
			h.telemetry.RecordSearch("unavailable", 0)
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]interface{}{
				"results": []catalog.TrackCandidate{},
				"error":   "search source unavailable, try again shortly",
			})

			return
		}

		logger.Error("search failed", "query", query, "err", err)
		h.telemetry.RecordSearch("error", 0)
		errorJSON(w, r, http.StatusInternalServerError, "search failed")

		return
	}

	h.telemetry.RecordSearch("success", len(results))

	if results == nil {
		results = []catalog.TrackCandidate{}
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{"results": results})
}

func (h *MusicHandler) HandleSearchHistory(w http.ResponseWriter, r *http.Request) {
	queries, err := h.history.RecentSearches()
	if err != nil {
		logctx.LoggerFromContext(r.Context()).Error("failed to load search history", "err", err)
		errorJSON(w, r, http.StatusInternalServerError, "failed to load search history")

		return
	}

	if queries == nil {
		queries = []string{}
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{"history": queries})
}

func (h *MusicHandler) HandleClearSearchHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.history.ClearSearches(); err != nil {
		logctx.LoggerFromContext(r.Context()).Error("failed to clear search history", "err", err)
		errorJSON(w, r, http.StatusInternalServerError, "failed to clear search history")

		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "cleared"})
}

// HandleDownload runs a download to completion and reports where the track
// landed. Repeat requests for a track already in the library short-circuit.
func (h *MusicHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	logger := logctx.LoggerFromContext(r.Context())

	rawURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if rawURL == "" {
		errorJSON(w, r, http.StatusBadRequest, "missing query parameter url")

		return
	}

	result, err := h.runner.Download(r.Context(), rawURL)
	if err != nil {
		if errors.Is(err, downloader.ErrUnrecognizedSource) {
			errorJSON(w, r, http.StatusBadRequest, "unrecognized source url")

			return
		}

		logger.Error("download failed", "url", rawURL, "err", err)
		errorJSON(w, r, http.StatusBadGateway, "download failed")

		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

func (h *MusicHandler) HandleDownloadProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	writeJSON(w, r, http.StatusOK, map[string]float64{"progress": h.tracker.Get(id)})
}

// HandleStream serves the audio file for a library track, honoring range
// requests so players can seek.
func (h *MusicHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	f, info, err := h.lib.Open(id)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			h.telemetry.RecordStream("not_found")
			errorJSON(w, r, http.StatusNotFound, "track not found")

			return
		}

		logctx.LoggerFromContext(r.Context()).Error("failed to open track", "id", id, "err", err)
		h.telemetry.RecordStream("error")
		errorJSON(w, r, http.StatusInternalServerError, "failed to open track")

		return
	}
	defer f.Close()

	h.telemetry.RecordStream("success")

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (h *MusicHandler) HandleCover(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	data, mime, err := h.lib.CoverArt(id)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			errorJSON(w, r, http.StatusNotFound, "cover not found")

			return
		}

		logctx.LoggerFromContext(r.Context()).Error("failed to read cover", "id", id, "err", err)
		errorJSON(w, r, http.StatusInternalServerError, "failed to read cover")

		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=604800")
	w.Write(data)
}

// HandleLibrary lists downloaded tracks, each flagged with whether it is a
// favorite.
func (h *MusicHandler) HandleLibrary(w http.ResponseWriter, r *http.Request) {
	logger := logctx.LoggerFromContext(r.Context())

	entries, err := h.lib.List(r.Context())
	if err != nil {
		logger.Error("failed to list library", "err", err)
		errorJSON(w, r, http.StatusInternalServerError, "failed to list library")

		return
	}

	favoriteIDs := make(map[string]bool)

	// Favorite flags are decoration; the listing survives a broken database.
	favs, err := h.favorites.GetFavorites()
	if err != nil {
		logger.Warn("failed to load favorites", "err", err)
	} else {
		for _, fav := range favs {
			favoriteIDs[fav.VideoID] = true
		}
	}

	songs := make([]songView, len(entries))
	for i, entry := range entries {
		songs[i] = songView{Entry: entry, Favorite: favoriteIDs[entry.ID]}
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{"songs": songs})
}

func (h *MusicHandler) HandleDeleteTrack(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.lib.Delete(r.Context(), id); err != nil {
		if errors.Is(err, library.ErrNotFound) {
			errorJSON(w, r, http.StatusNotFound, "track not found")

			return
		}

		logctx.LoggerFromContext(r.Context()).Error("failed to delete track", "id", id, "err", err)
		errorJSON(w, r, http.StatusInternalServerError, "failed to delete track")

		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *MusicHandler) HandleFavorites(w http.ResponseWriter, r *http.Request) {
	favs, err := h.favorites.GetFavorites()
	if err != nil {
		logctx.LoggerFromContext(r.Context()).Error("failed to load favorites", "err", err)
		errorJSON(w, r, http.StatusInternalServerError, "failed to load favorites")

		return
	}

	if favs == nil {
		favs = []storage.Favorite{}
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{"favorites": favs})
}

// HandleToggleFavorite stars or unstars a track. The body carries title and
// artist so favorites keep their metadata even after the file is deleted;
// both are optional when unstarring.
func (h *MusicHandler) HandleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		Title  string `json:"title"`
		Artist string `json:"artist"`
	}

	// Tolerant decode: an empty or absent body is a bare toggle.
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		logctx.LoggerFromContext(r.Context()).Debug("ignoring malformed favorite body", "err", err)
	}

	added, err := h.favorites.ToggleFavorite(id, body.Title, body.Artist)
	if err != nil {
		logctx.LoggerFromContext(r.Context()).Error("failed to toggle favorite", "id", id, "err", err)
		errorJSON(w, r, http.StatusInternalServerError, "failed to toggle favorite")

		return
	}

	status := "removed"
	if added {
		status = "added"
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{"status": status, "favorite": added})
}

func (h *MusicHandler) HandlePlaylists(w http.ResponseWriter, r *http.Request) {
	lists, err := h.playlists.GetPlaylists()
	if err != nil {
		logctx.LoggerFromContext(r.Context()).Error("failed to load playlists", "err", err)
		errorJSON(w, r, http.StatusInternalServerError, "failed to load playlists")

		return
	}

	if lists == nil {
		lists = []storage.Playlist{}
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{"playlists": lists})
}

func (h *MusicHandler) HandleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		errorJSON(w, r, http.StatusBadRequest, "invalid request body")

		return
	}

	name := strings.TrimSpace(body.Name)
	if name == "" {
		errorJSON(w, r, http.StatusBadRequest, "playlist name is required")

		return
	}

	created, err := h.playlists.CreatePlaylist(name)
	if err != nil {
		logctx.LoggerFromContext(r.Context()).Error("failed to create playlist", "name", name, "err", err)
		errorJSON(w, r, http.StatusInternalServerError, "failed to create playlist")

		return
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{"id": created.ID, "name": created.Name})
}

func (h *MusicHandler) HandleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	id, ok := playlistID(w, r)
	if !ok {
		return
	}

	list, songs, err := h.playlists.GetPlaylist(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			errorJSON(w, r, http.StatusNotFound, "playlist not found")

			return
		}

		logctx.LoggerFromContext(r.Context()).Error("failed to load playlist", "id", id, "err", err)
		errorJSON(w, r, http.StatusInternalServerError, "failed to load playlist")

		return
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{"playlist": list, "songs": songs})
}

func (h *MusicHandler) HandleRenamePlaylist(w http.ResponseWriter, r *http.Request) {
	id, ok := playlistID(w, r)
	if !ok {
		return
	}

	var body struct {
		Name string `json:"name"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		errorJSON(w, r, http.StatusBadRequest, "invalid request body")

		return
	}

	name := strings.TrimSpace(body.Name)
	if name == "" {
		errorJSON(w, r, http.StatusBadRequest, "playlist name is required")

		return
	}

	if err := h.playlists.RenamePlaylist(id, name); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			errorJSON(w, r, http.StatusNotFound, "playlist not found")

			return
		}

		logctx.LoggerFromContext(r.Context()).Error("failed to rename playlist", "id", id, "err", err)
		errorJSON(w, r, http.StatusInternalServerError, "failed to rename playlist")

		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *MusicHandler) HandleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	id, ok := playlistID(w, r)
	if !ok {
		return
	}

	if err := h.playlists.DeletePlaylist(id); err != nil {
		logctx.LoggerFromContext(r.Context()).Error("failed to delete playlist", "id", id, "err", err)
		errorJSON(w, r, http.StatusInternalServerError, "failed to delete playlist")

		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *MusicHandler) HandleAddPlaylistSong(w http.ResponseWriter, r *http.Request) {
	id, ok := playlistID(w, r)
	if !ok {
		return
	}

	var body struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Artist string `json:"artist"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		errorJSON(w, r, http.StatusBadRequest, "invalid request body")

		return
	}

	if strings.TrimSpace(body.ID) == "" {
		errorJSON(w, r, http.StatusBadRequest, "song id is required")

		return
	}

	if err := h.playlists.AddSong(id, body.ID, body.Title, body.Artist); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			errorJSON(w, r, http.StatusNotFound, "playlist not found")

			return
		}

		logctx.LoggerFromContext(r.Context()).Error("failed to add playlist song", "playlist_id", id, "err", err)
		errorJSON(w, r, http.StatusInternalServerError, "failed to add song")

		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "added"})
}

func (h *MusicHandler) HandleRemovePlaylistSong(w http.ResponseWriter, r *http.Request) {
	id, ok := playlistID(w, r)
	if !ok {
		return
	}

	songID := chi.URLParam(r, "songID")

	if err := h.playlists.RemoveSong(id, songID); err != nil {
		logctx.LoggerFromContext(r.Context()).Error("failed to remove playlist song", "playlist_id", id, "err", err)
		errorJSON(w, r, http.StatusInternalServerError, "failed to remove song")

		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "removed"})
}

// HandleLyrics resolves lyrics for a track. Lookup failures of any kind are
// reported as not found; lyrics are cosmetic and never worth a 5xx.
func (h *MusicHandler) HandleLyrics(w http.ResponseWriter, r *http.Request) {
	artist := strings.TrimSpace(r.URL.Query().Get("artist"))
	title := strings.TrimSpace(r.URL.Query().Get("title"))

	if artist == "" || title == "" {
		errorJSON(w, r, http.StatusBadRequest, "artist and title are required")

		return
	}

	text, err := h.lyrics.Lookup(r.Context(), artist, title)
	if err != nil {
		if !errors.Is(err, lyrics.ErrNotFound) {
			logctx.LoggerFromContext(r.Context()).Warn("lyrics lookup failed", "artist", artist, "title", title, "err", err)
		}

		errorJSON(w, r, http.StatusNotFound, "lyrics not found")

		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"lyrics": text})
}

// HandleImportPlaylist enumerates a playlist URL into track candidates
// without downloading anything.
func (h *MusicHandler) HandleImportPlaylist(w http.ResponseWriter, r *http.Request) {
	logger := logctx.LoggerFromContext(r.Context())

	var body struct {
		URL string `json:"url"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		errorJSON(w, r, http.StatusBadRequest, "invalid request body")

		return
	}

	playlistURL := strings.TrimSpace(body.URL)
	if playlistURL == "" {
		errorJSON(w, r, http.StatusBadRequest, "playlist url is required")

		return
	}

	videos, err := h.enumerator.Enumerate(r.Context(), playlistURL)
	if err != nil {
		var unavailable *catalog.UnavailableError
		if errors.As(err, &unavailable) {
			logger.Error("playlist source unavailable", "url", playlistURL, "err", err)
			errorJSON(w, r, http.StatusServiceUnavailable, "playlist source unavailable, try again shortly")

			return
		}

		logger.Error("playlist import failed", "url", playlistURL, "err", err)
		errorJSON(w, r, http.StatusBadGateway, "failed to read playlist")

		return
	}

	if videos == nil {
		videos = []catalog.TrackCandidate{}
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{"videos": videos, "count": len(videos)})
}

// playlistID parses the {id} route parameter, writing a 400 when it is not
// numeric.
func playlistID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		errorJSON(w, r, http.StatusBadRequest, "invalid playlist id")

		return 0, false
	}

	return id, true
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logctx.LoggerFromContext(r.Context()).Error("failed to encode response", "err", err)
	}
}

func errorJSON(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}
