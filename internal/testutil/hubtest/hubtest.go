// Package hubtest runs an in-memory storage hub behind httptest for tests.
// It implements hub_info, store, read, delete and list-files with etag
// guards, checks bearer tokens against the current challenge, and lets
// tests inject failures.
package hubtest

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/PravicaInc/walletify-go/pkg/encryption"
	"github.com/PravicaInc/walletify-go/pkg/hub"
	"github.com/PravicaInc/walletify-go/pkg/keys"
)

// File is a stored object.
type File struct {
	Data        []byte
	ContentType string
	Etag        string
}

type failure struct {
	match  func(path string) bool
	status int
	times  int
}

// Hub is the fake. Its zero value is not usable; call New.
type Hub struct {
	srv *httptest.Server

	mu         sync.Mutex
	files      map[string]*File
	generation int
	challenge  int
	legacy     bool
	maxMB      float64
	pageSize   int
	failures   []*failure
	connects   int
	stores     int
	storeCalls map[string]int
}

// New starts a fake hub and stops it when t finishes.
func New(t testing.TB) *Hub {
	t.Helper()
	h := &Hub{
		files:      map[string]*File{},
		pageSize:   2,
		storeCalls: map[string]int{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /hub_info", h.hubInfo)
	mux.HandleFunc("POST /store/{addr}/{path...}", h.store)
	mux.HandleFunc("GET /read/{addr}/{path...}", h.read)
	mux.HandleFunc("DELETE /delete/{addr}/{path...}", h.delete)
	mux.HandleFunc("POST /list-files/{addr}", h.list)
	h.srv = httptest.NewServer(mux)
	t.Cleanup(h.srv.Close)
	return h
}

// URL is the hub base URL.
func (h *Hub) URL() string { return h.srv.URL }

// ReadPrefix is the read_url_prefix the hub advertises.
func (h *Hub) ReadPrefix() string { return h.srv.URL + "/read/" }

// SetLegacyAuth makes the hub advertise no auth version, so clients send
// legacy tokens.
func (h *Hub) SetLegacyAuth(legacy bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.legacy = legacy
}

// SetMaxUploadMegabytes sets the advertised upload limit.
func (h *Hub) SetMaxUploadMegabytes(mb float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.maxMB = mb
}

// SetPageSize sets the list-files page size.
func (h *Hub) SetPageSize(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pageSize = n
}

// ExpireTokens rotates the challenge; tokens issued before now get 401.
func (h *Hub) ExpireTokens() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.challenge++
}

// FailStores answers the next times store calls whose path satisfies match
// with status. A nil match applies to every path.
func (h *Hub) FailStores(match func(path string) bool, status, times int) {
	if match == nil {
		match = func(string) bool { return true }
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures = append(h.failures, &failure{match: match, status: status, times: times})
}

// Connects counts hub_info requests.
func (h *Hub) Connects() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connects
}

// Stores counts store requests, failed ones included.
func (h *Hub) Stores() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stores
}

// StoreCalls counts store requests for one path.
func (h *Hub) StoreCalls(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.storeCalls[path]
}

// File returns a copy of a stored object.
func (h *Hub) File(address, path string) (File, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.files[address+"/"+path]
	if !ok {
		return File{}, false
	}
	return *f, true
}

// Put seeds a file directly and returns its etag.
func (h *Hub) Put(address, path string, data []byte, contentType string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.putLocked(address+"/"+path, data, contentType)
}

func (h *Hub) putLocked(key string, data []byte, contentType string) string {
	h.generation++
	sum := sha256.Sum256(append([]byte(strconv.Itoa(h.generation)), data...))
	etag := hex.EncodeToString(sum[:8])
	h.files[key] = &File{Data: append([]byte(nil), data...), ContentType: contentType, Etag: etag}
	return etag
}

func (h *Hub) challengeText() string {
	return fmt.Sprintf(`["gaiahub","0","hubtest","challenge-%d"]`, h.challenge)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func (h *Hub) hubInfo(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	h.connects++
	info := hub.Info{
		ChallengeText:              h.challengeText(),
		ReadURLPrefix:              h.ReadPrefix(),
		MaxFileUploadSizeMegabytes: h.maxMB,
	}
	if !h.legacy {
		info.LatestAuthVersion = "v1"
	}
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, info)
}

// authorized reports whether r carries a token for the current challenge
// issued by the owner of addr. Callers hold h.mu.
func (h *Hub) authorized(r *http.Request, addr string) bool {
	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "bearer ")
	if bearer == "" {
		return false
	}
	var publicKey string
	if strings.HasPrefix(bearer, hub.TokenPrefix) {
		claims, err := hub.ParseAuthToken(bearer)
		if err != nil || claims.GaiaChallenge != h.challengeText() {
			return false
		}
		publicKey = claims.Iss
	} else {
		raw, err := base64.StdEncoding.DecodeString(bearer)
		if err != nil {
			return false
		}
		var legacy struct {
			PublicKey string `json:"publickey"`
			Signature string `json:"signature"`
		}
		if json.Unmarshal(raw, &legacy) != nil ||
			!encryption.VerifyECDSA([]byte(h.challengeText()), legacy.PublicKey, legacy.Signature) {
			return false
		}
		publicKey = legacy.PublicKey
	}
	owner, err := keys.PublicKeyToAddress(publicKey)
	return err == nil && owner == addr
}

func (h *Hub) store(w http.ResponseWriter, r *http.Request) {
	addr, path := r.PathValue("addr"), r.PathValue("path")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.stores++
	h.storeCalls[path]++

	for _, f := range h.failures {
		if f.times > 0 && f.match(path) {
			f.times--
			writeError(w, f.status, "injected failure")
			return
		}
	}
	if !h.authorized(r, addr) {
		writeError(w, http.StatusUnauthorized, "bad token")
		return
	}
	if limit := int64(h.maxMB * 1024 * 1024); limit > 0 && int64(len(body)) > limit {
		writeError(w, http.StatusRequestEntityTooLarge, "too big")
		return
	}

	key := addr + "/" + path
	existing, exists := h.files[key]
	if r.Header.Get("If-None-Match") == "*" && exists {
		writeError(w, http.StatusPreconditionFailed, "file exists")
		return
	}
	if match := r.Header.Get("If-Match"); match != "" && (!exists || existing.Etag != match) {
		writeError(w, http.StatusPreconditionFailed, "etag mismatch")
		return
	}

	etag := h.putLocked(key, body, r.Header.Get("Content-Type"))
	writeJSON(w, http.StatusOK, hub.WriteResponse{PublicURL: h.ReadPrefix() + key, Etag: etag})
}

func (h *Hub) read(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	f, ok := h.files[r.PathValue("addr")+"/"+r.PathValue("path")]
	var file File
	if ok {
		file = *f
	}
	h.mu.Unlock()
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if file.ContentType != "" {
		w.Header().Set("Content-Type", file.ContentType)
	}
	w.Header().Set("ETag", file.Etag)
	_, _ = w.Write(file.Data)
}

func (h *Hub) delete(w http.ResponseWriter, r *http.Request) {
	addr, path := r.PathValue("addr"), r.PathValue("path")
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.authorized(r, addr) {
		writeError(w, http.StatusUnauthorized, "bad token")
		return
	}
	key := addr + "/" + path
	f, ok := h.files[key]
	if !ok {
		writeError(w, http.StatusNotFound, "no such file")
		return
	}
	if match := r.Header.Get("If-Match"); match != "" && match != f.Etag {
		writeError(w, http.StatusPreconditionFailed, "etag mismatch")
		return
	}
	delete(h.files, key)
	w.WriteHeader(http.StatusAccepted)
}

func (h *Hub) list(w http.ResponseWriter, r *http.Request) {
	addr := r.PathValue("addr")
	var req struct {
		Page *string `json:"page"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.authorized(r, addr) {
		writeError(w, http.StatusUnauthorized, "bad token")
		return
	}
	var names []string
	for key := range h.files {
		if name, ok := strings.CutPrefix(key, addr+"/"); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	start := 0
	if req.Page != nil {
		start, _ = strconv.Atoi(*req.Page)
	}
	if start > len(names) {
		start = len(names)
	}
	end := min(start+h.pageSize, len(names))
	resp := hub.ListResponse{Entries: names[start:end]}
	if end < len(names) {
		next := strconv.Itoa(end)
		resp.Page = &next
	}
	writeJSON(w, http.StatusOK, resp)
}
