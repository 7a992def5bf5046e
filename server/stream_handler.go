package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"soundvault/logger"
	"soundvault/storage"

	"github.com/gorilla/mux"
)

// StreamAudioHandler streams a song's audio bytes. The play counter is
// incremented before the first byte is written; a failed increment is logged
// and the stream proceeds anyway.
func (h *APIHandler) StreamAudioHandler(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	fileID := mux.Vars(r)["fileId"]

	song, err := h.songs.GetSongByAudioFileID(r.Context(), fileID)
	if err != nil {
		writeError(w, err)
		return
	}
	if song == nil {
		writeError(w, notFoundError("Audio file not found"))
		return
	}
	if !song.VisibleTo(user.ID) {
		writeError(w, forbiddenError("Access denied"))
		return
	}

	if err := h.songs.IncrementPlays(r.Context(), song.ID); err != nil {
		logger.Warn("failed to increment play count",
			logger.Int64("songId", song.ID),
			logger.ErrorField(err))
	}

	info, err := h.blobs.Stat(r.Context(), storage.NamespaceAudio, fileID)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			// Catalog row exists but the blob is gone: data-integrity fault,
			// surfaced the same way as a missing file.
			writeError(w, notFoundError("Audio file not found"))
			return
		}
		writeError(w, err)
		return
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	// Declared for player compatibility; range requests are not honored.
	w.Header().Set("Accept-Ranges", "bytes")

	h.copyBlob(w, r, storage.NamespaceAudio, fileID)
}

// StreamImageHandler streams a song's cover image.
func (h *APIHandler) StreamImageHandler(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	fileID := mux.Vars(r)["fileId"]

	song, err := h.songs.GetSongByCoverFileID(r.Context(), fileID)
	if err != nil {
		writeError(w, err)
		return
	}
	if song == nil {
		writeError(w, notFoundError("Image not found"))
		return
	}
	if !song.VisibleTo(user.ID) {
		writeError(w, forbiddenError("Access denied"))
		return
	}

	info, err := h.blobs.Stat(r.Context(), storage.NamespaceImage, fileID)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeError(w, notFoundError("Image not found"))
			return
		}
		writeError(w, err)
		return
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))

	h.copyBlob(w, r, storage.NamespaceImage, fileID)
}

// copyBlob writes the whole blob in one pass. The read is driven by the
// request context, so a client disconnect aborts it promptly; no partial
// write is retried.
func (h *APIHandler) copyBlob(w http.ResponseWriter, r *http.Request, ns storage.Namespace, fileID string) {
	obj, err := h.blobs.Open(r.Context(), ns, fileID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer obj.Close()

	if _, err := io.Copy(w, obj); err != nil {
		// Headers are already out; nothing to send but a log line.
		logger.Warn("stream aborted",
			logger.String("fileId", fileID),
			logger.String("namespace", string(ns)),
			logger.ErrorField(err))
	}
}
