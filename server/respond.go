package server

import (
	"encoding/json"
	"net/http"

	"soundvault/logger"
	"soundvault/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", logger.ErrorField(err))
	}
}

// pagination is the envelope describing one page of a result set.
type pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalItems  int64 `json:"totalItems"`
	Limit       int   `json:"limit"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

func paginationFor(total int64, page, limit int) pagination {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  total,
		Limit:       limit,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}

type paginatedResponse struct {
	Success    bool       `json:"success"`
	Data       any        `json:"data"`
	Pagination pagination `json:"pagination"`
}

func writePage(w http.ResponseWriter, data any, total int64, page, limit int) {
	writeJSON(w, http.StatusOK, paginatedResponse{
		Success:    true,
		Data:       data,
		Pagination: paginationFor(total, page, limit),
	})
}

// songResponse augments a song with its derived stream URLs.
type songResponse struct {
	*model.Song
	AudioStreamURL string  `json:"audioStreamUrl"`
	CoverImageURL  *string `json:"coverImageUrl"`
}

func formatSong(s *model.Song) songResponse {
	resp := songResponse{
		Song:           s,
		AudioStreamURL: "/api/songs/stream/audio/" + s.AudioFileID,
	}
	if s.CoverFileID != nil {
		url := "/api/songs/stream/image/" + *s.CoverFileID
		resp.CoverImageURL = &url
	}
	return resp
}

func formatSongs(songs []*model.Song) []songResponse {
	out := make([]songResponse, 0, len(songs))
	for _, s := range songs {
		out = append(out, formatSong(s))
	}
	return out
}
