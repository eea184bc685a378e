// Package modelcache manages locally-cached whisper.cpp ggml model files
// under ~/.cache/scribe/models, grounded on the model-download routine in
// other_examples' ent0n29/samantha (internal/voice/local.go's
// downloadWhisperModelIfMissing): same atomic download-to-temp-then-rename
// and HuggingFace source URL, generalized into list/download/set/info/remove
// operations for spec.md §6's `scribe model` CLI surface. Size arguments are
// not checked against Sizes; any string maps to a ggml-<size>.bin file name.
package modelcache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/scribehq/scribe/internal/errs"
)

// Sizes are the recognized model sizes, per spec.md §6.
var Sizes = []string{"tiny", "base", "small", "medium", "large"}

// Descriptor reports what's known about one cached (or cacheable) model
// size, mirroring spec.md §3's ModelDescriptor.
type Descriptor struct {
	Size      string
	Cached    bool
	Path      string
	SizeBytes int64
}

// Cache manages the on-disk model directory.
type Cache struct {
	Dir    string
	client *http.Client
}

// DefaultDir returns ~/.cache/scribe/models.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errs.Wrap(errs.KindConfigMissing, "resolving home directory", err)
	}
	return filepath.Join(home, ".cache", "scribe", "models"), nil
}

// New constructs a Cache rooted at dir, creating it if necessary.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(errs.KindConfigInvalid, "creating model cache directory", err)
	}
	return &Cache{Dir: dir, client: &http.Client{Timeout: 4 * time.Minute}}, nil
}

func filename(size string) string {
	return "ggml-" + size + ".bin"
}

// Path returns the on-disk path a given model size would occupy, whether or
// not it has been downloaded yet.
func (c *Cache) Path(size string) string {
	return filepath.Join(c.Dir, filename(size))
}

// List reports the cache status of every recognized model size.
func (c *Cache) List() []Descriptor {
	out := make([]Descriptor, 0, len(Sizes))
	for _, size := range Sizes {
		out = append(out, c.Info(size))
	}
	return out
}

// Info reports the cache status of one model size.
func (c *Cache) Info(size string) Descriptor {
	path := c.Path(size)
	fi, err := os.Stat(path)
	if err != nil {
		return Descriptor{Size: size, Path: path}
	}
	return Descriptor{Size: size, Cached: true, Path: path, SizeBytes: fi.Size()}
}

// Remove deletes a cached model file, if present.
func (c *Cache) Remove(size string) error {
	err := os.Remove(c.Path(size))
	if err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.KindConfigInvalid, "removing model", err)
	}
	return nil
}

// Download fetches a model size from the upstream whisper.cpp ggml release
// bucket if not already cached, reporting progress via onProgress (may be
// nil). The download goes to a temp file and is renamed into place only on
// success, so a failed or cancelled download never leaves a corrupt model
// behind.
func (c *Cache) Download(ctx context.Context, size string, onProgress func(string)) error {
	dest := c.Path(size)
	if _, err := os.Stat(dest); err == nil {
		return nil
	}

	url := "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/" + filename(size)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errs.Wrap(errs.KindModelLoadFailed, "building download request", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errs.Wrap(errs.KindNetworkError, "downloading model", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errs.New(errs.KindModelNotFound, fmt.Sprintf("download failed: HTTP %d", resp.StatusCode))
	}

	tmp := dest + ".download"
	_ = os.Remove(tmp)
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.Wrap(errs.KindModelLoadFailed, "creating temp model file", err)
	}

	if onProgress != nil {
		onProgress(fmt.Sprintf("downloading %s model...", size))
	}

	written, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.KindNetworkError, "writing model data", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.KindModelLoadFailed, "closing temp model file", closeErr)
	}
	if written == 0 {
		os.Remove(tmp)
		return errs.New(errs.KindModelNotFound, "downloaded empty model payload")
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.KindModelLoadFailed, "finalizing downloaded model", err)
	}
	if onProgress != nil {
		onProgress(fmt.Sprintf("%s model ready", size))
	}
	return nil
}
