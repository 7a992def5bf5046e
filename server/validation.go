package server

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"soundvault/model"
)

// File policy: declared content type AND extension must both be on the
// allow-list, and the payload must fit the configured ceiling.
var allowedAudioTypes = map[string]bool{
	"audio/mpeg":  true,
	"audio/wav":   true,
	"audio/ogg":   true,
	"audio/mp4":   true,
	"audio/x-m4a": true,
}

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

var allowedAudioExtensions = map[string]bool{
	".mp3": true,
	".wav": true,
	".ogg": true,
	".m4a": true,
}

var allowedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

const (
	maxTitleLength    = 200
	maxArtistLength   = 100
	maxAlbumLength    = 200
	minUsernameLength = 3
	maxUsernameLength = 30
	minPasswordLength = 6

	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

var usernameRegexp = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
var emailRegexp = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// normalizeEmail trims and lowercases an email address.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateUsername(username string) error {
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return validationError("Username must be between 3 and 30 characters")
	}
	if !usernameRegexp.MatchString(username) {
		return validationError("Username can only contain letters, numbers, and underscores")
	}
	return nil
}

func validateEmail(email string) error {
	if !emailRegexp.MatchString(email) {
		return validationError("Please provide a valid email")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return validationError("Password must be at least 6 characters long")
	}
	return nil
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return validationError("Song title is required")
	}
	if len(title) > maxTitleLength {
		return validationError("Title cannot exceed 200 characters")
	}
	return nil
}

func validateArtist(artist string) error {
	if strings.TrimSpace(artist) == "" {
		return validationError("Artist name is required")
	}
	if len(artist) > maxArtistLength {
		return validationError("Artist name cannot exceed 100 characters")
	}
	return nil
}

func validateAlbum(album string) error {
	if len(album) > maxAlbumLength {
		return validationError("Album name cannot exceed 200 characters")
	}
	return nil
}

func validateGenre(genre string) error {
	if genre == "" {
		return validationError("Genre is required")
	}
	if !model.ValidGenre(genre) {
		return validationError("Invalid genre selected")
	}
	return nil
}

// validateSongMetadata checks the full metadata set for ingestion, reporting
// the first failing field.
func validateSongMetadata(title, artist, album, genre string) error {
	if err := validateTitle(title); err != nil {
		return err
	}
	if err := validateArtist(artist); err != nil {
		return err
	}
	if err := validateAlbum(album); err != nil {
		return err
	}
	return validateGenre(genre)
}

// validateAudioFile applies the audio type/extension/size policy.
func validateAudioFile(fh *multipart.FileHeader, maxSize int64) error {
	if fh == nil {
		return validationError("Audio file is required")
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedAudioExtensions[ext] {
		return validationError("Invalid audio format. Allowed formats: .mp3, .wav, .ogg, .m4a")
	}
	contentType := fh.Header.Get("Content-Type")
	if !allowedAudioTypes[contentType] {
		return validationError(fmt.Sprintf("Invalid audio MIME type. File appears to be: %s", contentType))
	}
	if fh.Size > maxSize {
		return validationError(fmt.Sprintf("Audio file too large. Maximum size: %dMB", maxSize/1024/1024))
	}
	if fh.Size == 0 {
		return validationError("Audio file is empty")
	}
	return nil
}

// validateImageFile applies the image type/extension/size policy. A nil
// header is valid because cover art is optional.
func validateImageFile(fh *multipart.FileHeader, maxSize int64) error {
	if fh == nil {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedImageExtensions[ext] {
		return validationError("Invalid image format. Allowed formats: .jpg, .jpeg, .png, .webp")
	}
	contentType := fh.Header.Get("Content-Type")
	if !allowedImageTypes[contentType] {
		return validationError(fmt.Sprintf("Invalid image MIME type. File appears to be: %s", contentType))
	}
	if fh.Size > maxSize {
		return validationError(fmt.Sprintf("Image file too large. Maximum size: %dMB", maxSize/1024/1024))
	}
	if fh.Size == 0 {
		return validationError("Image file is empty")
	}
	return nil
}

// parsePagination reads page/limit query parameters. Out-of-range values are
// clamped, never rejected.
func parsePagination(r *http.Request) (page, limit int) {
	page = defaultPage
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		page = v
	}
	if page < 1 {
		page = 1
	}

	limit = defaultLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		limit = v
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
