package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"soundvault/model"
)

// SearchParams describes a catalog search. SortBy and Order must already be
// validated against the public whitelist; unknown values fall back to the
// newest-first default.
type SearchParams struct {
	UserID int64  // Visibility scope: default songs OR songs uploaded by this user
	Query  string // Optional full-text match over title/artist/album
	Genre  string // Optional exact genre filter
	SortBy string // createdAt, plays, title or artist
	Order  string // asc or desc
	Limit  int
	Offset int
}

// SongRepository defines the interface for catalog data operations.
type SongRepository interface {
	CreateSong(ctx context.Context, song *model.Song) (int64, error)
	GetSongByID(ctx context.Context, id int64) (*model.Song, error)
	GetSongByAudioFileID(ctx context.Context, fileID string) (*model.Song, error)
	GetSongByCoverFileID(ctx context.Context, fileID string) (*model.Song, error)
	ListVisibleSongs(ctx context.Context, userID int64, limit, offset int) ([]*model.Song, error)
	CountVisibleSongs(ctx context.Context, userID int64) (int64, error)
	ListSongsByUploader(ctx context.Context, userID int64, limit, offset int) ([]*model.Song, error)
	CountSongsByUploader(ctx context.Context, userID int64) (int64, error)
	ListDefaultSongs(ctx context.Context, limit, offset int) ([]*model.Song, error)
	CountDefaultSongs(ctx context.Context) (int64, error)
	SearchSongs(ctx context.Context, p SearchParams) ([]*model.Song, int64, error)
	UpdateSong(ctx context.Context, song *model.Song) error
	IncrementPlays(ctx context.Context, id int64) error
	DeleteSong(ctx context.Context, id int64) error
	ListPersonalSongsByUploader(ctx context.Context, userID int64) ([]*model.Song, error)
	CountPersonalSongsByUploader(ctx context.Context, userID int64) (int64, error)
}

// mysqlSongRepository implements SongRepository for MySQL.
type mysqlSongRepository struct {
	db *sql.DB
}

// NewMySQLSongRepository creates a new mysqlSongRepository.
func NewMySQLSongRepository(db *sql.DB) SongRepository {
	return &mysqlSongRepository{db: db}
}

const songColumns = `id, title, artist, album, genre, duration, audio_file_id, audio_filename,
	cover_file_id, cover_filename, uploaded_by, is_default, plays, created_at, updated_at`

// sortColumns whitelists the sortable fields exposed by the search API.
var sortColumns = map[string]string{
	"createdAt": "created_at",
	"plays":     "plays",
	"title":     "title",
	"artist":    "artist",
}

func scanSong(row interface{ Scan(...any) error }) (*model.Song, error) {
	song := &model.Song{}
	err := row.Scan(&song.ID, &song.Title, &song.Artist, &song.Album, &song.Genre, &song.Duration,
		&song.AudioFileID, &song.AudioFilename, &song.CoverFileID, &song.CoverFilename,
		&song.UploadedBy, &song.IsDefault, &song.Plays, &song.CreatedAt, &song.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return song, nil
}

// CreateSong adds a new song row to the catalog.
func (r *mysqlSongRepository) CreateSong(ctx context.Context, song *model.Song) (int64, error) {
	query := `INSERT INTO songs (title, artist, album, genre, duration, audio_file_id, audio_filename,
		cover_file_id, cover_filename, uploaded_by, is_default, plays, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NOW(), NOW())`
	res, err := r.db.ExecContext(ctx, query, song.Title, song.Artist, song.Album, song.Genre, song.Duration,
		song.AudioFileID, song.AudioFilename, song.CoverFileID, song.CoverFilename, song.UploadedBy, song.IsDefault)
	if err != nil {
		return 0, fmt.Errorf("failed to execute CreateSong: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for CreateSong: %w", err)
	}
	return id, nil
}

// GetSongByID retrieves a song by its ID.
func (r *mysqlSongRepository) GetSongByID(ctx context.Context, id int64) (*model.Song, error) {
	query := "SELECT " + songColumns + " FROM songs WHERE id = ?"
	song, err := scanSong(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Song not found
		}
		return nil, fmt.Errorf("failed to scan song by ID %d: %w", id, err)
	}
	return song, nil
}

// GetSongByAudioFileID retrieves the song referencing an audio blob.
func (r *mysqlSongRepository) GetSongByAudioFileID(ctx context.Context, fileID string) (*model.Song, error) {
	query := "SELECT " + songColumns + " FROM songs WHERE audio_file_id = ?"
	song, err := scanSong(r.db.QueryRowContext(ctx, query, fileID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan song by audio file ID %s: %w", fileID, err)
	}
	return song, nil
}

// GetSongByCoverFileID retrieves the song referencing a cover blob.
func (r *mysqlSongRepository) GetSongByCoverFileID(ctx context.Context, fileID string) (*model.Song, error) {
	query := "SELECT " + songColumns + " FROM songs WHERE cover_file_id = ?"
	song, err := scanSong(r.db.QueryRowContext(ctx, query, fileID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan song by cover file ID %s: %w", fileID, err)
	}
	return song, nil
}

func (r *mysqlSongRepository) listSongs(ctx context.Context, query string, args ...any) ([]*model.Song, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs: %w", err)
	}
	defer rows.Close()

	songs := make([]*model.Song, 0)
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan song row: %w", err)
		}
		songs = append(songs, song)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during song rows iteration: %w", err)
	}
	return songs, nil
}

func (r *mysqlSongRepository) countSongs(ctx context.Context, query string, args ...any) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count songs: %w", err)
	}
	return count, nil
}

// ListVisibleSongs returns a page of songs readable by the user: default
// songs plus the user's own uploads, newest first.
func (r *mysqlSongRepository) ListVisibleSongs(ctx context.Context, userID int64, limit, offset int) ([]*model.Song, error) {
	query := "SELECT " + songColumns + ` FROM songs WHERE (is_default = TRUE OR uploaded_by = ?)
		ORDER BY created_at DESC LIMIT ? OFFSET ?`
	return r.listSongs(ctx, query, userID, limit, offset)
}

// CountVisibleSongs counts the songs readable by the user.
func (r *mysqlSongRepository) CountVisibleSongs(ctx context.Context, userID int64) (int64, error) {
	return r.countSongs(ctx, "SELECT COUNT(*) FROM songs WHERE (is_default = TRUE OR uploaded_by = ?)", userID)
}

// ListSongsByUploader returns a page of the user's own uploads, newest first.
func (r *mysqlSongRepository) ListSongsByUploader(ctx context.Context, userID int64, limit, offset int) ([]*model.Song, error) {
	query := "SELECT " + songColumns + " FROM songs WHERE uploaded_by = ? ORDER BY created_at DESC LIMIT ? OFFSET ?"
	return r.listSongs(ctx, query, userID, limit, offset)
}

// CountSongsByUploader counts the user's own uploads.
func (r *mysqlSongRepository) CountSongsByUploader(ctx context.Context, userID int64) (int64, error) {
	return r.countSongs(ctx, "SELECT COUNT(*) FROM songs WHERE uploaded_by = ?", userID)
}

// ListDefaultSongs returns a page of the admin-curated library, newest first.
func (r *mysqlSongRepository) ListDefaultSongs(ctx context.Context, limit, offset int) ([]*model.Song, error) {
	query := "SELECT " + songColumns + " FROM songs WHERE is_default = TRUE ORDER BY created_at DESC LIMIT ? OFFSET ?"
	return r.listSongs(ctx, query, limit, offset)
}

// CountDefaultSongs counts the admin-curated library.
func (r *mysqlSongRepository) CountDefaultSongs(ctx context.Context) (int64, error) {
	return r.countSongs(ctx, "SELECT COUNT(*) FROM songs WHERE is_default = TRUE")
}

// SearchSongs applies the visibility filter plus optional full-text and genre
// filters, returning one page and the total match count.
func (r *mysqlSongRepository) SearchSongs(ctx context.Context, p SearchParams) ([]*model.Song, int64, error) {
	where := "WHERE (is_default = TRUE OR uploaded_by = ?)"
	args := []any{p.UserID}

	if p.Query != "" {
		where += " AND MATCH(title, artist, album) AGAINST (? IN NATURAL LANGUAGE MODE)"
		args = append(args, p.Query)
	}
	if p.Genre != "" {
		where += " AND genre = ?"
		args = append(args, p.Genre)
	}

	total, err := r.countSongs(ctx, "SELECT COUNT(*) FROM songs "+where, args...)
	if err != nil {
		return nil, 0, err
	}

	sortCol, ok := sortColumns[p.SortBy]
	if !ok {
		sortCol = "created_at"
	}
	dir := "DESC"
	if p.Order == "asc" {
		dir = "ASC"
	}

	query := fmt.Sprintf("SELECT %s FROM songs %s ORDER BY %s %s LIMIT ? OFFSET ?", songColumns, where, sortCol, dir)
	args = append(args, p.Limit, p.Offset)

	songs, err := r.listSongs(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return songs, total, nil
}

// UpdateSong persists mutable song fields (metadata and cover references).
func (r *mysqlSongRepository) UpdateSong(ctx context.Context, song *model.Song) error {
	query := `UPDATE songs SET title = ?, artist = ?, album = ?, genre = ?, duration = ?,
		cover_file_id = ?, cover_filename = ?, updated_at = NOW() WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, song.Title, song.Artist, song.Album, song.Genre,
		song.Duration, song.CoverFileID, song.CoverFilename, song.ID)
	if err != nil {
		return fmt.Errorf("failed to execute UpdateSong for song ID %d: %w", song.ID, err)
	}
	return nil
}

// IncrementPlays bumps the play counter by exactly one.
func (r *mysqlSongRepository) IncrementPlays(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, "UPDATE songs SET plays = plays + 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to increment plays for song ID %d: %w", id, err)
	}
	return nil
}

// DeleteSong removes a song row. The caller is responsible for deleting the
// referenced blobs first.
func (r *mysqlSongRepository) DeleteSong(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM songs WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete song %d: %w", id, err)
	}
	return nil
}

// ListPersonalSongsByUploader returns every non-default song owned by the
// user. Used by the account-deletion cascade, hence no paging.
func (r *mysqlSongRepository) ListPersonalSongsByUploader(ctx context.Context, userID int64) ([]*model.Song, error) {
	query := "SELECT " + songColumns + " FROM songs WHERE uploaded_by = ? AND is_default = FALSE"
	return r.listSongs(ctx, query, userID)
}

// CountPersonalSongsByUploader counts the user's non-default songs.
func (r *mysqlSongRepository) CountPersonalSongsByUploader(ctx context.Context, userID int64) (int64, error) {
	return r.countSongs(ctx, "SELECT COUNT(*) FROM songs WHERE uploaded_by = ? AND is_default = FALSE", userID)
}
