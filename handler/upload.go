package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/quietridge/copilot-core/auth"
	"github.com/quietridge/copilot-core/coreerr"
)

const maxUploadBytes = 5 * 1024 * 1024 // 5 MiB, per §6

// UploadStore is the in-memory pending-document buffer (§5, "The
// UploadStore (pending document buffers) is a keyed map of byte
// payloads"). Entries are removed by ExtractHandler on successful or
// failed extraction. Keys are scoped to the uploading user: a
// content-addressed id alone would let a second user who uploads, or
// merely guesses, identical bytes consume the first user's pending
// document, so the lookup key binds the content hash to the owner's
// user ID.
type UploadStore struct {
	mu    sync.Mutex
	files map[string]storedFile
}

type storedFile struct {
	name string
	data []byte
}

func storeKey(userID, id string) string {
	return userID + ":" + id
}

// Put stores data under a content-addressed id scoped to userID and
// returns the id (not the scoped key — callers address files by id alone
// within their own session).
func (s *UploadStore) Put(userID, name string, data []byte) string {
	sum := sha256.Sum256(data)
	id := hex.EncodeToString(sum[:])[:16]
	s.mu.Lock()
	s.files[storeKey(userID, id)] = storedFile{name: name, data: data}
	s.mu.Unlock()
	return id
}

// Has reports whether id is a pending upload owned by userID, without
// consuming it.
func (s *UploadStore) Has(userID, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[storeKey(userID, id)]
	return ok
}

// Take removes and returns the stored file for id owned by userID, if
// present.
func (s *UploadStore) Take(userID, id string) (string, []byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := storeKey(userID, id)
	f, ok := s.files[key]
	if !ok {
		return "", nil, false
	}
	delete(s.files, key)
	return f.name, f.data, true
}

// NewUploadStore builds an empty UploadStore.
func NewUploadStore() *UploadStore {
	return &UploadStore{files: make(map[string]storedFile)}
}

// UploadHandler serves POST /api/upload.
type UploadHandler struct {
	logger zerolog.Logger
	store  *UploadStore
}

// NewUploadHandler builds an UploadHandler over a shared UploadStore.
func NewUploadHandler(logger zerolog.Logger, store *UploadStore) *UploadHandler {
	return &UploadHandler{logger: logger, store: store}
}

// Upload implements POST /api/upload (multipart, file field ≤ 5 MiB).
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(h.logger, w, coreerr.New(coreerr.Unauthenticated, "missing user context"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+4096)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(h.logger, w, coreerr.New(coreerr.Validation, "file too large or malformed multipart body"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(h.logger, w, coreerr.New(coreerr.Validation, "file field is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		writeError(h.logger, w, coreerr.New(coreerr.Validation, "could not read upload"))
		return
	}
	if len(data) > maxUploadBytes {
		writeError(h.logger, w, coreerr.New(coreerr.Validation, "file exceeds 5 MiB limit"))
		return
	}

	id := h.store.Put(user.ID, header.Filename, data)
	writeJSON(w, http.StatusOK, map[string]any{
		"file_url": "upload://" + id,
		"size":     len(data),
		"name":     header.Filename,
	})
}
