package server

import (
	"net/http"
	"strconv"

	"soundvault/logger"
	"soundvault/model"
	"soundvault/storage"

	"github.com/gorilla/mux"
)

// AdminUploadSongHandler ingests a song into the default library. Visibility
// is forced global regardless of caller input.
func (h *APIHandler) AdminUploadSongHandler(w http.ResponseWriter, r *http.Request) {
	h.ingestSong(w, r, true)
}

// AdminListSongsHandler lists the default library.
func (h *APIHandler) AdminListSongsHandler(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePagination(r)

	songs, err := h.songs.ListDefaultSongs(r.Context(), limit, (page-1)*limit)
	if err != nil {
		writeError(w, err)
		return
	}
	total, err := h.songs.CountDefaultSongs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writePage(w, formatSongs(songs), total, page, limit)
}

// AdminUpdateSongHandler updates a default song. Personal songs are rejected;
// admins manage only the default library through this path.
func (h *APIHandler) AdminUpdateSongHandler(w http.ResponseWriter, r *http.Request) {
	h.updateSong(w, r, true)
}

// AdminDeleteSongHandler deletes a default song and its blobs.
func (h *APIHandler) AdminDeleteSongHandler(w http.ResponseWriter, r *http.Request) {
	h.deleteSong(w, r, true)
}

// userWithStats augments an account with its personal song count.
type userWithStats struct {
	*model.User
	SongsCount int64 `json:"songsCount"`
}

// ListUsersHandler returns a page of accounts, each with the number of
// personal songs it owns. Password hashes are never serialized.
func (h *APIHandler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePagination(r)

	role := model.Role(r.URL.Query().Get("role"))
	if role != "" && !role.Valid() {
		writeError(w, validationError("Invalid role filter"))
		return
	}

	users, err := h.users.ListUsers(r.Context(), role, limit, (page-1)*limit)
	if err != nil {
		writeError(w, err)
		return
	}
	total, err := h.users.CountUsers(r.Context(), role)
	if err != nil {
		writeError(w, err)
		return
	}

	data := make([]userWithStats, 0, len(users))
	for _, user := range users {
		count, err := h.songs.CountPersonalSongsByUploader(r.Context(), user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		data = append(data, userWithStats{User: user, SongsCount: count})
	}

	writePage(w, data, total, page, limit)
}

// DeleteUserHandler removes a non-admin account and cascades over its
// personal songs: audio blob, cover blob, song row, per song, then the
// account itself. Each step is best-effort; a failed blob or row delete is
// logged and the cascade moves on, with no global rollback.
func (h *APIHandler) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, validationError("Invalid ID format"))
		return
	}

	user, err := h.users.GetUserByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if user == nil {
		writeError(w, notFoundError("User not found"))
		return
	}
	if user.Role.IsAdmin() {
		writeError(w, forbiddenError("Cannot delete admin users"))
		return
	}

	songs, err := h.songs.ListPersonalSongsByUploader(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	for _, song := range songs {
		if err := h.blobs.Remove(r.Context(), storage.NamespaceAudio, song.AudioFileID); err != nil {
			logger.Warn("cascade: failed to remove audio blob",
				logger.Int64("songId", song.ID),
				logger.String("audioFileId", song.AudioFileID),
				logger.ErrorField(err))
		}
		if song.CoverFileID != nil {
			if err := h.blobs.Remove(r.Context(), storage.NamespaceImage, *song.CoverFileID); err != nil {
				logger.Warn("cascade: failed to remove cover blob",
					logger.Int64("songId", song.ID),
					logger.String("coverFileId", *song.CoverFileID),
					logger.ErrorField(err))
			}
		}
		if err := h.songs.DeleteSong(r.Context(), song.ID); err != nil {
			logger.Warn("cascade: failed to delete song row",
				logger.Int64("songId", song.ID),
				logger.ErrorField(err))
		}
	}

	if err := h.users.DeleteUser(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	logger.Info("user deleted",
		logger.Int64("userId", id),
		logger.Int("cascadedSongs", len(songs)))

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "User and all their songs deleted successfully",
	})
}
