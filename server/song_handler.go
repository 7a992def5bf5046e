package server

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"soundvault/logger"
	"soundvault/model"
	"soundvault/repository"
	"soundvault/storage"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const (
	audioFormField = "audioFile"
	imageFormField = "coverImage"

	// In-memory limit for multipart parsing; larger parts spill to temp files.
	multipartMemory = 32 << 20
)

func songIDFromRequest(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, validationError("Invalid ID format")
	}
	return id, nil
}

// formFile returns the first header for a multipart field, or nil when the
// field is absent.
func formFile(r *http.Request, field string) *multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return nil
	}
	return files[0]
}

// GenresHandler returns the fixed genre enumeration.
func (h *APIHandler) GenresHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"genres":  model.Genres,
	})
}

// ListSongsHandler returns the songs visible to the caller: the default
// library plus their own uploads, newest first.
func (h *APIHandler) ListSongsHandler(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	page, limit := parsePagination(r)

	songs, err := h.songs.ListVisibleSongs(r.Context(), user.ID, limit, (page-1)*limit)
	if err != nil {
		writeError(w, err)
		return
	}
	total, err := h.songs.CountVisibleSongs(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writePage(w, formatSongs(songs), total, page, limit)
}

// MySongsHandler returns only the caller's own uploads.
func (h *APIHandler) MySongsHandler(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	page, limit := parsePagination(r)

	songs, err := h.songs.ListSongsByUploader(r.Context(), user.ID, limit, (page-1)*limit)
	if err != nil {
		writeError(w, err)
		return
	}
	total, err := h.songs.CountSongsByUploader(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writePage(w, formatSongs(songs), total, page, limit)
}

// SearchSongsHandler filters and sorts the caller-visible set.
func (h *APIHandler) SearchSongsHandler(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	page, limit := parsePagination(r)
	q := r.URL.Query()

	genre := q.Get("genre")
	if genre != "" && !model.ValidGenre(genre) {
		writeError(w, validationError("Invalid genre"))
		return
	}

	sortBy := q.Get("sortBy")
	if sortBy == "" {
		sortBy = "createdAt"
	}
	switch sortBy {
	case "createdAt", "plays", "title", "artist":
	default:
		writeError(w, validationError("Invalid sort field"))
		return
	}

	order := q.Get("order")
	if order == "" {
		order = "desc"
	}
	if order != "asc" && order != "desc" {
		writeError(w, validationError("Order must be asc or desc"))
		return
	}

	songs, total, err := h.songs.SearchSongs(r.Context(), repository.SearchParams{
		UserID: user.ID,
		Query:  q.Get("q"),
		Genre:  genre,
		SortBy: sortBy,
		Order:  order,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writePage(w, formatSongs(songs), total, page, limit)
}

// GetSongHandler returns a single song, enforcing the visibility rule.
func (h *APIHandler) GetSongHandler(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	id, err := songIDFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	song, err := h.songs.GetSongByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if song == nil {
		writeError(w, notFoundError("Song not found"))
		return
	}
	if !song.VisibleTo(user.ID) {
		writeError(w, forbiddenError("Access denied"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"song":    formatSong(song),
	})
}

// UploadSongHandler ingests a personal song for the caller.
func (h *APIHandler) UploadSongHandler(w http.ResponseWriter, r *http.Request) {
	h.ingestSong(w, r, false)
}

// UpdateSongHandler updates a song the caller owns.
func (h *APIHandler) UpdateSongHandler(w http.ResponseWriter, r *http.Request) {
	h.updateSong(w, r, false)
}

// DeleteSongHandler deletes a song the caller owns, blobs first.
func (h *APIHandler) DeleteSongHandler(w http.ResponseWriter, r *http.Request) {
	h.deleteSong(w, r, false)
}

// ingestSong is the shared upload path. The admin route forces the resulting
// song into the default (globally visible) library.
//
// Side effects are strictly ordered: audio blob, then cover blob, then the
// catalog row. There is no compensating delete, so a failure after the audio
// write leaves an orphaned blob behind.
func (h *APIHandler) ingestSong(w http.ResponseWriter, r *http.Request, isDefault bool) {
	user := userFromContext(r.Context())

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, validationError("Invalid multipart form"))
		return
	}

	title := r.FormValue("title")
	artist := r.FormValue("artist")
	album := r.FormValue("album")
	genre := r.FormValue("genre")
	if err := validateSongMetadata(title, artist, album, genre); err != nil {
		writeError(w, err)
		return
	}

	audioHeader := formFile(r, audioFormField)
	if err := validateAudioFile(audioHeader, h.cfg.MaxAudioSize); err != nil {
		writeError(w, err)
		return
	}
	coverHeader := formFile(r, imageFormField)
	if err := validateImageFile(coverHeader, h.cfg.MaxImageSize); err != nil {
		writeError(w, err)
		return
	}

	audioFileID := uuid.NewString()
	audioFile, err := audioHeader.Open()
	if err != nil {
		writeError(w, err)
		return
	}
	defer audioFile.Close()

	err = h.blobs.Put(r.Context(), storage.NamespaceAudio, audioFileID, audioFile,
		audioHeader.Size, audioHeader.Header.Get("Content-Type"), audioHeader.Filename)
	if err != nil {
		writeError(w, err)
		return
	}

	var coverFileID, coverFilename *string
	if coverHeader != nil {
		coverFile, err := coverHeader.Open()
		if err != nil {
			logger.Warn("aborting ingestion after audio blob write, audio blob orphaned",
				logger.String("audioFileId", audioFileID))
			writeError(w, err)
			return
		}
		defer coverFile.Close()

		id := uuid.NewString()
		err = h.blobs.Put(r.Context(), storage.NamespaceImage, id, coverFile,
			coverHeader.Size, coverHeader.Header.Get("Content-Type"), coverHeader.Filename)
		if err != nil {
			logger.Warn("aborting ingestion after audio blob write, audio blob orphaned",
				logger.String("audioFileId", audioFileID))
			writeError(w, err)
			return
		}
		coverFileID = &id
		name := coverHeader.Filename
		coverFilename = &name
	}

	song := &model.Song{
		Title:         title,
		Artist:        artist,
		Genre:         genre,
		AudioFileID:   audioFileID,
		AudioFilename: audioHeader.Filename,
		CoverFileID:   coverFileID,
		CoverFilename: coverFilename,
		UploadedBy:    user.ID,
		IsDefault:     isDefault,
	}
	if album != "" {
		song.Album = &album
	}

	songID, err := h.songs.CreateSong(r.Context(), song)
	if err != nil {
		logger.Warn("song row creation failed after blob writes, blobs orphaned",
			logger.String("audioFileId", audioFileID))
		writeError(w, err)
		return
	}
	song.ID = songID

	logger.Info("song uploaded",
		logger.Int64("songId", songID),
		logger.String("title", song.Title),
		logger.Int64("userId", user.ID),
		logger.Bool("isDefault", isDefault))

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Song uploaded successfully",
		"song":    formatSong(song),
	})
}

// loadSongForWrite fetches a song and applies the write-authorization rule
// for either the owner path or the admin default-library path.
func (h *APIHandler) loadSongForWrite(r *http.Request, asAdmin bool, verb string) (*model.Song, error) {
	user := userFromContext(r.Context())
	id, err := songIDFromRequest(r)
	if err != nil {
		return nil, err
	}

	song, err := h.songs.GetSongByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if song == nil {
		return nil, notFoundError("Song not found")
	}

	if asAdmin {
		// Admins manage only the default library through this path.
		if !song.IsDefault {
			return nil, validationError("This is not a default song")
		}
		return song, nil
	}
	if song.UploadedBy != user.ID {
		return nil, forbiddenError("You can only " + verb + " your own songs")
	}
	return song, nil
}

func (h *APIHandler) updateSong(w http.ResponseWriter, r *http.Request, asAdmin bool) {
	user := userFromContext(r.Context())

	song, err := h.loadSongForWrite(r, asAdmin, "update")
	if err != nil {
		writeError(w, err)
		return
	}

	// Metadata may arrive as multipart (with a replacement cover) or as a
	// plain form body.
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, validationError("Invalid request body"))
		return
	}

	if title := r.FormValue("title"); title != "" {
		if err := validateTitle(title); err != nil {
			writeError(w, err)
			return
		}
		song.Title = title
	}
	if artist := r.FormValue("artist"); artist != "" {
		if err := validateArtist(artist); err != nil {
			writeError(w, err)
			return
		}
		song.Artist = artist
	}
	if albums, ok := r.Form["album"]; ok {
		// Present-but-empty clears the album.
		album := albums[0]
		if err := validateAlbum(album); err != nil {
			writeError(w, err)
			return
		}
		if album == "" {
			song.Album = nil
		} else {
			song.Album = &album
		}
	}
	if genre := r.FormValue("genre"); genre != "" {
		if err := validateGenre(genre); err != nil {
			writeError(w, err)
			return
		}
		song.Genre = genre
	}

	if coverHeader := formFile(r, imageFormField); coverHeader != nil {
		if err := validateImageFile(coverHeader, h.cfg.MaxImageSize); err != nil {
			writeError(w, err)
			return
		}

		// Replacement deletes the previous cover blob before storing the new one.
		if song.CoverFileID != nil {
			if err := h.blobs.Remove(r.Context(), storage.NamespaceImage, *song.CoverFileID); err != nil {
				writeError(w, err)
				return
			}
		}

		coverFile, err := coverHeader.Open()
		if err != nil {
			writeError(w, err)
			return
		}
		defer coverFile.Close()

		id := uuid.NewString()
		err = h.blobs.Put(r.Context(), storage.NamespaceImage, id, coverFile,
			coverHeader.Size, coverHeader.Header.Get("Content-Type"), coverHeader.Filename)
		if err != nil {
			writeError(w, err)
			return
		}
		name := coverHeader.Filename
		song.CoverFileID = &id
		song.CoverFilename = &name
	}

	if err := h.songs.UpdateSong(r.Context(), song); err != nil {
		writeError(w, err)
		return
	}

	logger.Info("song updated", logger.Int64("songId", song.ID), logger.Int64("userId", user.ID))

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Song updated successfully",
		"song":    formatSong(song),
	})
}

func (h *APIHandler) deleteSong(w http.ResponseWriter, r *http.Request, asAdmin bool) {
	user := userFromContext(r.Context())

	song, err := h.loadSongForWrite(r, asAdmin, "delete")
	if err != nil {
		writeError(w, err)
		return
	}

	// Blobs go first, then the row. A failure partway leaves the remainder
	// in place; there is no rollback across the two stores.
	if err := h.blobs.Remove(r.Context(), storage.NamespaceAudio, song.AudioFileID); err != nil {
		writeError(w, err)
		return
	}
	if song.CoverFileID != nil {
		if err := h.blobs.Remove(r.Context(), storage.NamespaceImage, *song.CoverFileID); err != nil {
			writeError(w, err)
			return
		}
	}
	if err := h.songs.DeleteSong(r.Context(), song.ID); err != nil {
		writeError(w, err)
		return
	}

	logger.Info("song deleted", logger.Int64("songId", song.ID), logger.Int64("userId", user.ID))

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Song deleted successfully",
	})
}
