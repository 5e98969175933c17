package rasterio

import(
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// A Locator says where a raster lives: a local path, or an http(s) URL.
type Locator struct {
	Raw     string
	Remote  bool
	Path    string // the local filename, or the full URL
}

// ParseLocator understands plain paths, file:// URLs, http(s) URLs, and
// GDAL style /vsicurl/ prefixed URLs.
func ParseLocator(s string) (Locator, error) {
	l := Locator{Raw: s}
	s = strings.TrimPrefix(s, "/vsicurl/")

	if s == "" {
		return l, fmt.Errorf("empty locator")
	}

	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 { // "C:" is a drive, not a scheme
		l.Path = s
		return l, nil
	}

	switch u.Scheme {
	case "http", "https":
		l.Remote = true
		l.Path = u.String()
	case "file":
		l.Path = u.Path
	default:
		return l, fmt.Errorf("locator '%s': unsupported scheme '%s'", l.Raw, u.Scheme)
	}
	return l, nil
}

func (l Locator)String() string { return l.Path }

// Ext is the lowercased file extension.
func (l Locator)Ext() string {
	p := l.Path
	if l.Remote {
		if u, err := url.Parse(p); err == nil {
			p = u.Path
		}
	}
	return strings.ToLower(filepath.Ext(p))
}

// Fetcher opens remote rasters for random access. Nothing is downloaded
// up front: every read is a ranged GET, so only the header, the IFD and
// the blocks that are actually read cross the wire.
type Fetcher struct {
	Client   *http.Client
	MinRead  int // reads are rounded up to this many bytes; 0 means 64KB
}

func DefaultFetcher() Fetcher {
	return Fetcher{Client: &http.Client{Timeout: 5 * time.Minute}}
}

// Open checks the server can do range requests, and finds the size.
func (f Fetcher)Open(ctx context.Context, l Locator) (*RemoteFile, error) {
	if !l.Remote {
		return nil, fmt.Errorf("%s is not remote", l.Path)
	}
	if f.MinRead <= 0 {
		f.MinRead = 64 * 1024
	}

	rf := RemoteFile{ctx: ctx, client: f.Client, url: l.Path, minRead: f.MinRead}

	resp, err := rf.get(0, 0)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()

	// "bytes 0-0/12345"
	cr := resp.Header.Get("Content-Range")
	i := strings.LastIndex(cr, "/")
	if i < 0 {
		return nil, fmt.Errorf("GET %s: no size in Content-Range '%s'", l.Path, cr)
	}
	if rf.size, err = strconv.ParseInt(cr[i+1:], 10, 64); err != nil {
		return nil, fmt.Errorf("GET %s: Content-Range '%s': %w", l.Path, cr, err)
	}
	return &rf, nil
}

// RemoteFile is an io.ReaderAt over a URL. It keeps the last chunk it
// fetched, since tag parsing makes lots of small reads close together.
type RemoteFile struct {
	ctx      context.Context
	client   *http.Client
	url      string
	size     int64
	minRead  int

	sync.Mutex
	lastOff  int64
	last     []byte
}

func (rf *RemoteFile)Size() int64  { return rf.size }
func (rf *RemoteFile)Close() error { rf.Lock(); rf.last = nil; rf.Unlock(); return nil }

// get fetches bytes [from, to], which must come back as a partial response.
func (rf *RemoteFile)get(from, to int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(rf.ctx, http.MethodGet, rf.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", from, to))

	resp, err := rf.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return nil, fmt.Errorf("GET %s: server does not support range requests", rf.url)
		}
		return nil, fmt.Errorf("GET %s: %s", rf.url, resp.Status)
	}
	return resp, nil
}

func (rf *RemoteFile)ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("GET %s: negative offset %d", rf.url, off)
	}
	if off >= rf.size {
		return 0, io.EOF
	}
	want := int64(len(p))
	if off + want > rf.size {
		want = rf.size - off
	}

	rf.Lock()
	if off >= rf.lastOff && off + want <= rf.lastOff + int64(len(rf.last)) {
		n := copy(p, rf.last[off-rf.lastOff:])
		rf.Unlock()
		return eofIfShort(n, len(p))
	}
	rf.Unlock()

	fetch := want
	if fetch < int64(rf.minRead) {
		fetch = min(int64(rf.minRead), rf.size-off)
	}
	resp, err := rf.get(off, off+fetch-1)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	buf := make([]byte, fetch)
	if _, err := io.ReadFull(resp.Body, buf); err != nil {
		return 0, fmt.Errorf("GET %s bytes %d-%d: %w", rf.url, off, off+fetch-1, err)
	}

	rf.Lock()
	rf.lastOff, rf.last = off, buf
	rf.Unlock()

	return eofIfShort(copy(p, buf), len(p))
}

func eofIfShort(n, want int) (int, error) {
	if n < want {
		return n, io.EOF
	}
	return n, nil
}

// tempName is where an output is built before being renamed into place.
func tempName(filename string) string {
	return filepath.Join(filepath.Dir(filename), fmt.Sprintf(".%s.%s.tmp", filepath.Base(filename), uuid.NewString()))
}

// writeViaTemp runs write against a temp file, then renames it onto
// filename. On any error the temp file is removed and filename untouched.
func writeViaTemp(filename string, write func(tmpname string) error) error {
	tmpname := tempName(filename)
	if err := write(tmpname); err != nil {
		os.Remove(tmpname)
		return err
	}
	if err := os.Rename(tmpname, filename); err != nil {
		os.Remove(tmpname)
		return err
	}
	return nil
}
