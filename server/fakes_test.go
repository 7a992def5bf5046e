package server

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sort"
	"testing"
	"time"

	"soundvault/config"
	"soundvault/core/auth"
	"soundvault/core/session"
	"soundvault/model"
	"soundvault/repository"
	"soundvault/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// fakeUserRepo is an in-memory UserRepository.
type fakeUserRepo struct {
	users  map[int64]*model.User
	nextID int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int64]*model.User{}, nextID: 1}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *model.User) (int64, error) {
	for _, u := range f.users {
		if u.Username == user.Username || u.Email == user.Email {
			return 0, repository.ErrDuplicateUser
		}
	}
	id := f.nextID
	f.nextID++
	stored := *user
	stored.ID = id
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	f.users[id] = &stored
	return id, nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	return f.users[id], nil
}

func (f *fakeUserRepo) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) ListUsers(_ context.Context, role model.Role, limit, offset int) ([]*model.User, error) {
	var out []*model.User
	for _, u := range f.users {
		if role == "" || u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeUserRepo) CountUsers(_ context.Context, role model.Role) (int64, error) {
	var count int64
	for _, u := range f.users {
		if role == "" || u.Role == role {
			count++
		}
	}
	return count, nil
}

func (f *fakeUserRepo) DeleteUser(_ context.Context, id int64) error {
	delete(f.users, id)
	return nil
}

// fakeSongRepo is an in-memory SongRepository.
type fakeSongRepo struct {
	songs  map[int64]*model.Song
	nextID int64

	incrementErr error // Injected IncrementPlays failure
}

func newFakeSongRepo() *fakeSongRepo {
	return &fakeSongRepo{songs: map[int64]*model.Song{}, nextID: 1}
}

func (f *fakeSongRepo) CreateSong(_ context.Context, song *model.Song) (int64, error) {
	id := f.nextID
	f.nextID++
	stored := *song
	stored.ID = id
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	f.songs[id] = &stored
	return id, nil
}

func (f *fakeSongRepo) GetSongByID(_ context.Context, id int64) (*model.Song, error) {
	return f.songs[id], nil
}

func (f *fakeSongRepo) GetSongByAudioFileID(_ context.Context, fileID string) (*model.Song, error) {
	for _, s := range f.songs {
		if s.AudioFileID == fileID {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeSongRepo) GetSongByCoverFileID(_ context.Context, fileID string) (*model.Song, error) {
	for _, s := range f.songs {
		if s.CoverFileID != nil && *s.CoverFileID == fileID {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeSongRepo) page(songs []*model.Song, limit, offset int) []*model.Song {
	sort.Slice(songs, func(i, j int) bool { return songs[i].ID > songs[j].ID })
	if offset > len(songs) {
		offset = len(songs)
	}
	songs = songs[offset:]
	if limit < len(songs) {
		songs = songs[:limit]
	}
	return songs
}

func (f *fakeSongRepo) visible(userID int64) []*model.Song {
	var out []*model.Song
	for _, s := range f.songs {
		if s.VisibleTo(userID) {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakeSongRepo) ListVisibleSongs(_ context.Context, userID int64, limit, offset int) ([]*model.Song, error) {
	return f.page(f.visible(userID), limit, offset), nil
}

func (f *fakeSongRepo) CountVisibleSongs(_ context.Context, userID int64) (int64, error) {
	return int64(len(f.visible(userID))), nil
}

func (f *fakeSongRepo) byUploader(userID int64) []*model.Song {
	var out []*model.Song
	for _, s := range f.songs {
		if s.UploadedBy == userID {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakeSongRepo) ListSongsByUploader(_ context.Context, userID int64, limit, offset int) ([]*model.Song, error) {
	return f.page(f.byUploader(userID), limit, offset), nil
}

func (f *fakeSongRepo) CountSongsByUploader(_ context.Context, userID int64) (int64, error) {
	return int64(len(f.byUploader(userID))), nil
}

func (f *fakeSongRepo) defaults() []*model.Song {
	var out []*model.Song
	for _, s := range f.songs {
		if s.IsDefault {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakeSongRepo) ListDefaultSongs(_ context.Context, limit, offset int) ([]*model.Song, error) {
	return f.page(f.defaults(), limit, offset), nil
}

func (f *fakeSongRepo) CountDefaultSongs(_ context.Context) (int64, error) {
	return int64(len(f.defaults())), nil
}

func (f *fakeSongRepo) SearchSongs(_ context.Context, p repository.SearchParams) ([]*model.Song, int64, error) {
	var out []*model.Song
	for _, s := range f.visible(p.UserID) {
		if p.Genre != "" && s.Genre != p.Genre {
			continue
		}
		out = append(out, s)
	}
	total := int64(len(out))
	return f.page(out, p.Limit, p.Offset), total, nil
}

func (f *fakeSongRepo) UpdateSong(_ context.Context, song *model.Song) error {
	stored := *song
	f.songs[song.ID] = &stored
	return nil
}

func (f *fakeSongRepo) IncrementPlays(_ context.Context, id int64) error {
	if f.incrementErr != nil {
		return f.incrementErr
	}
	if s, ok := f.songs[id]; ok {
		s.Plays++
	}
	return nil
}

func (f *fakeSongRepo) DeleteSong(_ context.Context, id int64) error {
	delete(f.songs, id)
	return nil
}

func (f *fakeSongRepo) ListPersonalSongsByUploader(_ context.Context, userID int64) ([]*model.Song, error) {
	var out []*model.Song
	for _, s := range f.songs {
		if s.UploadedBy == userID && !s.IsDefault {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSongRepo) CountPersonalSongsByUploader(_ context.Context, userID int64) (int64, error) {
	songs, _ := f.ListPersonalSongsByUploader(context.Background(), userID)
	return int64(len(songs)), nil
}

// fakeBlobStore is an in-memory BlobStore.
type fakeBlobStore struct {
	objects map[string]fakeBlob
}

type fakeBlob struct {
	data         []byte
	contentType  string
	originalName string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string]fakeBlob{}}
}

func blobKey(ns storage.Namespace, id string) string {
	return string(ns) + "/" + id
}

func (f *fakeBlobStore) Put(_ context.Context, ns storage.Namespace, id string, r io.Reader, _ int64, contentType, originalName string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[blobKey(ns, id)] = fakeBlob{data: data, contentType: contentType, originalName: originalName}
	return nil
}

func (f *fakeBlobStore) Open(_ context.Context, ns storage.Namespace, id string) (io.ReadCloser, error) {
	blob, ok := f.objects[blobKey(ns, id)]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(blob.data)), nil
}

func (f *fakeBlobStore) Stat(_ context.Context, ns storage.Namespace, id string) (storage.ObjectInfo, error) {
	blob, ok := f.objects[blobKey(ns, id)]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{
		Size:         int64(len(blob.data)),
		ContentType:  blob.contentType,
		OriginalName: blob.originalName,
	}, nil
}

func (f *fakeBlobStore) Remove(_ context.Context, ns storage.Namespace, id string) error {
	delete(f.objects, blobKey(ns, id))
	return nil
}

func (f *fakeBlobStore) has(ns storage.Namespace, id string) bool {
	_, ok := f.objects[blobKey(ns, id)]
	return ok
}

// testEnv bundles a fully wired handler with direct access to its fakes.
type testEnv struct {
	handler  *APIHandler
	router   http.Handler
	users    *fakeUserRepo
	songs    *fakeSongRepo
	blobs    *fakeBlobStore
	sessions *session.Store
	cfg      *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &config.Config{
		MaxAudioSize:  50 * 1024 * 1024,
		MaxImageSize:  5 * 1024 * 1024,
		SessionTTL:    time.Hour,
		SessionCookie: "sv_session",
	}

	users := newFakeUserRepo()
	songs := newFakeSongRepo()
	blobs := newFakeBlobStore()
	sessions := session.NewStore(client, cfg.SessionTTL)

	handler := NewAPIHandler(cfg, users, songs, blobs, sessions)
	return &testEnv{
		handler:  handler,
		router:   NewRouter(handler),
		users:    users,
		songs:    songs,
		blobs:    blobs,
		sessions: sessions,
		cfg:      cfg,
	}
}

// addUser seeds an account with a bcrypt-hashed password and returns it.
func (e *testEnv) addUser(t *testing.T, username, email, password string, role model.Role) *model.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	id, err := e.users.CreateUser(context.Background(), &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return e.users.users[id]
}

// login creates a session for the user and returns its token.
func (e *testEnv) login(t *testing.T, userID int64) string {
	t.Helper()
	token, err := e.sessions.Create(context.Background(), userID)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return token
}

// addSong seeds a catalog row plus its audio blob (and optional cover blob).
func (e *testEnv) addSong(t *testing.T, uploadedBy int64, isDefault bool, withCover bool) *model.Song {
	t.Helper()
	ctx := context.Background()

	song := &model.Song{
		Title:         "Seeded Track",
		Artist:        "Seeded Artist",
		Genre:         "Rock",
		AudioFileID:   "audio-" + randomSuffix(t),
		AudioFilename: "track.mp3",
		UploadedBy:    uploadedBy,
		IsDefault:     isDefault,
	}
	if err := e.blobs.Put(ctx, storage.NamespaceAudio, song.AudioFileID,
		bytes.NewReader([]byte("fake mp3 bytes")), 14, "audio/mpeg", song.AudioFilename); err != nil {
		t.Fatalf("failed to seed audio blob: %v", err)
	}
	if withCover {
		coverID := "cover-" + randomSuffix(t)
		coverName := "cover.jpg"
		if err := e.blobs.Put(ctx, storage.NamespaceImage, coverID,
			bytes.NewReader([]byte("fake jpeg bytes")), 15, "image/jpeg", coverName); err != nil {
			t.Fatalf("failed to seed cover blob: %v", err)
		}
		song.CoverFileID = &coverID
		song.CoverFilename = &coverName
	}

	id, err := e.songs.CreateSong(ctx, song)
	if err != nil {
		t.Fatalf("failed to seed song: %v", err)
	}
	return e.songs.songs[id]
}

var suffixCounter int

func randomSuffix(t *testing.T) string {
	t.Helper()
	suffixCounter++
	return time.Now().Format("150405.000000") + "-" + string(rune('a'+suffixCounter%26))
}

// do runs a request through the full router with an optional session cookie.
func (e *testEnv) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.AddCookie(&http.Cookie{Name: e.cfg.SessionCookie, Value: token})
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// multipartBody builds a multipart form with string fields and optional files.
type multipartFile struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...multipartFile) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for key, val := range fields {
		if err := writer.WriteField(key, val); err != nil {
			t.Fatalf("failed to write field %s: %v", key, err)
		}
	}
	for _, file := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			`form-data; name="`+file.field+`"; filename="`+file.filename+`"`)
		header.Set("Content-Type", file.contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("failed to create part %s: %v", file.field, err)
		}
		if _, err := part.Write(file.data); err != nil {
			t.Fatalf("failed to write part %s: %v", file.field, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}
