package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/voxelway/forgelink/internal/paths"
)

// The daemon caches query-category results on disk so repeated reads of the
// scene graph do not round-trip to the engine. Entries are keyed by command
// name plus payload and expire after their TTL.

type entry struct {
	Content []byte    `json:"content"`
	Created time.Time `json:"created"`
	Expires time.Time `json:"expires"`
}

// Get looks up a cached result. Returns false if not found or expired.
func Get(command string, args json.RawMessage) ([]byte, bool) {
	e, _, ok := getEntry(command, args)
	if !ok {
		return nil, false
	}
	return e.Content, true
}

// GetMetadata returns cache age and ttl when a valid entry exists.
func GetMetadata(command string, args json.RawMessage) (time.Duration, time.Duration, bool) {
	e, path, ok := getEntry(command, args)
	if !ok {
		return 0, 0, false
	}

	created := e.Created
	if created.IsZero() {
		if st, err := os.Stat(path); err == nil {
			created = st.ModTime()
		}
	}
	if created.IsZero() {
		created = e.Expires
	}

	ttl := e.Expires.Sub(created)
	if ttl < 0 {
		ttl = 0
	}

	age := time.Since(created)
	if age < 0 {
		age = 0
	}

	return age, ttl, true
}

// Put stores a result in the cache.
func Put(command string, args json.RawMessage, content []byte, ttl time.Duration) error {
	dir := cacheDir()
	if err := paths.EnsureDir(dir); err != nil {
		return err
	}

	now := time.Now()
	e := entry{
		Content: content,
		Created: now,
		Expires: now.Add(ttl),
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	return os.WriteFile(entryPath(command, args), data, 0600)
}

func getEntry(command string, args json.RawMessage) (entry, string, bool) {
	path := entryPath(command, args)
	data, err := os.ReadFile(path)
	if err != nil {
		return entry{}, path, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		_ = os.Remove(path)
		return entry{}, path, false
	}

	if time.Now().After(e.Expires) {
		_ = os.Remove(path)
		return entry{}, path, false
	}

	return e, path, true
}

func entryPath(command string, args json.RawMessage) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s", command, string(args))
	key := hex.EncodeToString(h.Sum(nil))[:32]
	return filepath.Join(cacheDir(), key+".json")
}

func cacheDir() string {
	return filepath.Join(paths.CacheDir(), "results")
}
