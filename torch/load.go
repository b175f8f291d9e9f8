package torch

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"
	"lukechampine.com/blake3"

	"github.com/kisielk/ogpeek"
)

// DefaultCacheSize is the number of storage members Load keeps looked up.
const DefaultCacheSize = 64

// Options configure Load.
type Options struct {
	// MaxDepth bounds reference resolution in data.pkl. 0 selects
	// ogpeek.DefaultMaxDepth.
	MaxDepth int

	// Digest requests BLAKE3-256 digest of every storage member.
	Digest bool

	// CacheSize is the number of storage members kept looked up, together
	// with their digests. 0 selects DefaultCacheSize.
	CacheSize int

	// Logger, if !nil, receives the evaluation trace of data.pkl.
	Logger *zap.Logger
}

var (
	// ErrNoPickle is returned when an archive has no data.pkl member.
	ErrNoPickle = errors.New("torch: could not find data.pkl in archive")
	// ErrCompressed is returned for storage members that are not stored as is.
	ErrCompressed = errors.New("torch: can't handle compressed storage")
)

// FindPickle returns the data.pkl member of a checkpoint archive together
// with the directory prefix of the checkpoint, e.g. "archive".
func FindPickle(zr *zip.Reader) (*zip.File, string, error) {
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/data.pkl") {
			return f, path.Dir(f.Name), nil
		}
	}
	return nil, "", ErrNoPickle
}

// ReadPickle returns the contents of data.pkl.
func ReadPickle(zr *zip.Reader) ([]byte, string, error) {
	f, pfx, err := FindPickle(zr)
	if err != nil {
		return nil, "", err
	}
	data, err := readFile(f)
	if err != nil {
		return nil, "", fmt.Errorf("torch: %s: %w", f.Name, err)
	}
	return data, pfx, nil
}

func readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Open loads tensor metadata from the checkpoint file name.
func Open(ctx context.Context, name string, opts Options) ([]Tensor, error) {
	zrc, err := zip.OpenReader(name)
	if err != nil {
		return nil, err
	}
	defer zrc.Close()
	return Load(ctx, &zrc.Reader, opts)
}

// Load evaluates data.pkl of a checkpoint archive and returns its tensors
// with their storage located in the archive.
func Load(ctx context.Context, zr *zip.Reader, opts Options) ([]Tensor, error) {
	data, pfx, err := ReadPickle(zr)
	if err != nil {
		return nil, err
	}
	dec := ogpeek.NewDecoder(data, true, &ogpeek.Config{MaxDepth: opts.MaxDepth, Logger: opts.Logger})
	vals, _, err := dec.Decode()
	if err != nil {
		return nil, fmt.Errorf("torch: %s/data.pkl: %w", pfx, err)
	}
	if n := len(data) - dec.Offset(); n != 0 {
		logctx.Warnf(ctx, "%d bytes after STOP in %s/data.pkl", n, pfx)
	}

	tensors, err := Extract(vals)
	if err != nil {
		return nil, err
	}

	s, err := newStorages(zr, opts)
	if err != nil {
		return nil, err
	}
	for i := range tensors {
		t := &tensors[i]
		t.Storage = pfx + "/data/" + t.StorageKey
		st, err := s.get(t.Storage)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", t.Name, err)
		}
		t.StorageOffset = t.Offset * int64(t.Type.Size())
		t.AbsoluteOffset = st.dataOffset + t.StorageOffset
		t.Digest = st.digest
		logctx.Debug(ctx, "tensor",
			zap.String("name", t.Name),
			zap.String("type", string(t.Type)),
			zap.String("storage", t.Storage),
			zap.Int64("offset", t.AbsoluteOffset))
	}
	logctx.Infof(ctx, "found %d tensors in %s", len(tensors), pfx)
	return tensors, nil
}

// storage is a located storage member.
type storage struct {
	dataOffset int64
	digest     []byte
}

// storages looks up storage members of an archive.
type storages struct {
	zr     *zip.Reader
	digest bool
	cache  *simplelru.LRU[string, storage]
}

func newStorages(zr *zip.Reader, opts Options) (*storages, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := simplelru.NewLRU[string, storage](size, nil)
	if err != nil {
		return nil, err
	}
	return &storages{zr: zr, digest: opts.Digest, cache: cache}, nil
}

func (s *storages) get(name string) (storage, error) {
	if st, ok := s.cache.Get(name); ok {
		return st, nil
	}
	var f *zip.File
	for _, zf := range s.zr.File {
		if zf.Name == name {
			f = zf
			break
		}
	}
	if f == nil {
		return storage{}, fmt.Errorf("torch: no storage member %s", name)
	}
	if f.Method != zip.Store {
		return storage{}, fmt.Errorf("%w: %s", ErrCompressed, name)
	}
	off, err := f.DataOffset()
	if err != nil {
		return storage{}, fmt.Errorf("torch: %s: %w", name, err)
	}
	st := storage{dataOffset: off}
	if s.digest {
		if st.digest, err = digestFile(f); err != nil {
			return storage{}, fmt.Errorf("torch: %s: %w", name, err)
		}
	}
	s.cache.Add(name, st)
	return st, nil
}

func digestFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	h := blake3.New(32, nil)
	if _, err := io.Copy(h, rc); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}
