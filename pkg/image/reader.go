package image

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

// FileReader is a byte-addressable source for an image payload. Every
// variant supports a full sequential read from offset 0 and a bounded
// random-access read of a byte range (§4.3).
type FileReader interface {
	// Reader returns a sequential reader starting at offset 0.
	Reader(ctx context.Context) (io.ReadCloser, error)
	// SectionReader returns a reader yielding exactly size bytes starting
	// at offset.
	SectionReader(ctx context.Context, offset, size int64) (io.ReadCloser, error)
	// Size returns the total byte length of the underlying payload.
	Size() int64
}

// OpenFileReader constructs the FileReader variant matching url's scheme:
// file://, http(s)://, or oci://.
func OpenFileReader(ctx context.Context, rawURL string) (FileReader, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing image url %q: %w", rawURL, err)
	}
	switch u.Scheme {
	case "file":
		return newFileReaderFile(u.Path)
	case "http", "https":
		return NewFileReaderHTTP(ctx, rawURL, nil)
	case "oci":
		return NewFileReaderOCI(ctx, u, OCIOptions{})
	default:
		return nil, fmt.Errorf("unsupported image url scheme %q", u.Scheme)
	}
}

// FileReaderFile reads an image payload from a local path.
type FileReaderFile struct {
	path string
	size int64
}

func newFileReaderFile(path string) (*FileReaderFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat image file %q: %w", path, err)
	}
	return &FileReaderFile{path: path, size: info.Size()}, nil
}

func (f *FileReaderFile) Size() int64 { return f.size }

func (f *FileReaderFile) Reader(ctx context.Context) (io.ReadCloser, error) {
	return os.Open(f.path)
}

func (f *FileReaderFile) SectionReader(ctx context.Context, offset, size int64) (io.ReadCloser, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, err
	}
	if _, err := fh.Seek(offset, io.SeekStart); err != nil {
		fh.Close()
		return nil, fmt.Errorf("seeking image file %q to %d: %w", f.path, offset, err)
	}
	return &limitedReadCloser{r: io.LimitReader(fh, size), c: fh}, nil
}

type limitedReadCloser struct {
	r io.Reader
	c io.Closer
}

func (l *limitedReadCloser) Read(p []byte) (int, error) { return l.r.Read(p) }
func (l *limitedReadCloser) Close() error                { return l.c.Close() }

// HTTP tuning constants (§4.3: bounded retry, per-request timeout).
const (
	httpMaxRetries    = 4
	httpRetryBaseWait = 200 * time.Millisecond
	httpRequestTimeout = 30 * time.Second
)

// FileReaderHTTP reads an image payload over HTTP(S) using Range requests.
// Constructed with a HEAD probe that learns Content-Length and confirms
// range-request support.
type FileReaderHTTP struct {
	client *http.Client
	url    string
	size   int64
	header http.Header
}

// NewFileReaderHTTP performs the construction-time HEAD probe described in
// §4.3. extraHeader, when non-nil, is attached to the HEAD probe and to
// every later range request.
func NewFileReaderHTTP(ctx context.Context, rawURL string, extraHeader http.Header) (*FileReaderHTTP, error) {
	client := &http.Client{Timeout: httpRequestTimeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building HEAD request for %q: %w", rawURL, err)
	}
	for k, vs := range extraHeader {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := doWithRetry(client, req)
	if err != nil {
		return nil, fmt.Errorf("HEAD %q: %w", rawURL, err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HEAD %q: unexpected status %d", rawURL, resp.StatusCode)
	}
	if ar := resp.Header.Get("Accept-Ranges"); ar == "" || ar == "none" {
		return nil, fmt.Errorf("HEAD %q: server does not advertise range-request support", rawURL)
	}
	cl := resp.Header.Get("Content-Length")
	if cl == "" {
		return nil, fmt.Errorf("HEAD %q: server did not report Content-Length", rawURL)
	}
	size, err := strconv.ParseInt(cl, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("HEAD %q: invalid Content-Length %q: %w", rawURL, cl, err)
	}

	return &FileReaderHTTP{client: client, url: rawURL, size: size, header: extraHeader}, nil
}

func (h *FileReaderHTTP) Size() int64 { return h.size }

func (h *FileReaderHTTP) Reader(ctx context.Context) (io.ReadCloser, error) {
	return h.SectionReader(ctx, 0, h.size)
}

// SectionReader issues a Range: bytes=start-end GET and tolerates short
// responses by issuing follow-on Range requests for the unsatisfied
// remainder, per §4.3 and the "HTTP multi-chunk" law of §8.
func (h *FileReaderHTTP) SectionReader(ctx context.Context, offset, size int64) (io.ReadCloser, error) {
	if offset < 0 || offset > h.size {
		return nil, fmt.Errorf("section read offset %d out of bounds [0,%d]", offset, h.size)
	}
	if offset+size > h.size {
		size = h.size - offset
	}
	return &httpSubfileReader{ctx: ctx, h: h, start: offset, remaining: size}, nil
}

// httpSubfileReader implements the "keep issuing follow-on Range requests"
// requirement: each Read drains the current upstream body, and once it is
// exhausted short of the requested window, a fresh Range GET is issued for
// whatever remains.
type httpSubfileReader struct {
	ctx       context.Context
	h         *FileReaderHTTP
	start     int64
	remaining int64
	body      io.ReadCloser
}

func (s *httpSubfileReader) Read(p []byte) (int, error) {
	if s.remaining <= 0 {
		return 0, io.EOF
	}
	if s.body == nil {
		if err := s.openNext(); err != nil {
			return 0, err
		}
	}
	if int64(len(p)) > s.remaining {
		p = p[:s.remaining]
	}
	n, err := s.body.Read(p)
	s.start += int64(n)
	s.remaining -= int64(n)
	if err == io.EOF {
		s.body.Close()
		s.body = nil
		if s.remaining > 0 {
			// Upstream ended its response short of the requested window;
			// the next Read opens a follow-on request for the rest.
			return n, nil
		}
	}
	return n, err
}

func (s *httpSubfileReader) Close() error {
	if s.body != nil {
		return s.body.Close()
	}
	return nil
}

func (s *httpSubfileReader) openNext() error {
	end := s.start + s.remaining - 1
	req, err := http.NewRequestWithContext(s.ctx, http.MethodGet, s.h.url, nil)
	if err != nil {
		return err
	}
	for k, vs := range s.h.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", s.start, end))

	resp, err := doWithRetry(s.h.client, req)
	if err != nil {
		return fmt.Errorf("GET %q range %d-%d: %w", s.h.url, s.start, end, err)
	}
	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("GET %q range %d-%d: unexpected status %d", s.h.url, s.start, end, resp.StatusCode)
	}
	s.body = resp.Body
	return nil
}

// doWithRetry retries transport-level failures and 5xx responses with a
// bounded linear backoff (§4.3: "bounded-retry policy applies to failed
// HEAD/GET attempts").
func doWithRetry(client *http.Client, req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < httpMaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(httpRetryBaseWait * time.Duration(attempt))
		}
		resp, err := client.Do(req.Clone(req.Context()))
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error status %d", resp.StatusCode)
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

// HTTPSeeker adapts a FileReaderHTTP into an io.ReadSeeker over the whole
// payload, implementing the seek semantics of §4.3/§8: only positions in
// [0,size) are accepted, SeekFrom::Current/End adjust from the stored
// position, and a target outside that range returns an error and leaves
// the position unchanged.
type HTTPSeeker struct {
	h   *FileReaderHTTP
	ctx context.Context
	pos int64
	cur io.ReadCloser
}

// NewHTTPSeeker wraps h for Seek-based consumption.
func NewHTTPSeeker(ctx context.Context, h *FileReaderHTTP) *HTTPSeeker {
	return &HTTPSeeker{h: h, ctx: ctx}
}

func (s *HTTPSeeker) Read(p []byte) (int, error) {
	if s.cur == nil {
		rc, err := s.h.SectionReader(s.ctx, s.pos, s.h.size-s.pos)
		if err != nil {
			return 0, err
		}
		s.cur = rc
	}
	n, err := s.cur.Read(p)
	s.pos += int64(n)
	return n, err
}

func (s *HTTPSeeker) Close() error {
	if s.cur != nil {
		return s.cur.Close()
	}
	return nil
}

func (s *HTTPSeeker) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = s.pos + offset
	case io.SeekEnd:
		target = s.h.size + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if target < 0 || target >= s.h.size {
		// Matches the §8 scenario: seek(Start(size)) and seek(End(0))
		// (target == size) both error; only [0,size) is valid.
		if target == 0 && s.h.size == 0 {
			// Degenerate empty file: position 0 is valid.
		} else {
			return s.pos, fmt.Errorf("seek target %d out of bounds [0,%d)", target, s.h.size)
		}
	}
	if target != s.pos && s.cur != nil {
		s.cur.Close()
		s.cur = nil
	}
	s.pos = target
	return s.pos, nil
}

var _ io.ReadSeekCloser = (*HTTPSeeker)(nil)
