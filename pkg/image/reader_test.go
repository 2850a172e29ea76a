package image

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileReaderFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.bin")
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))

	r, err := newFileReaderFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), r.Size())

	full, err := r.Reader(context.Background())
	require.NoError(t, err)
	defer full.Close()
	got, err := io.ReadAll(full)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	section, err := r.SectionReader(context.Background(), 1000, 500)
	require.NoError(t, err)
	defer section.Close()
	gotSection, err := io.ReadAll(section)
	require.NoError(t, err)
	assert.Equal(t, data[1000:1500], gotSection)
}

func rangeServer(t *testing.T, data []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		if req.Method == http.MethodHead {
			w.Header().Set("Content-Length", itoa(len(data)))
			w.WriteHeader(http.StatusOK)
			return
		}
		rng := req.Header.Get("Range")
		if rng == "" {
			w.Header().Set("Content-Length", itoa(len(data)))
			w.WriteHeader(http.StatusOK)
			w.Write(data)
			return
		}
		start, end := parseTestRange(t, rng, len(data))
		w.Header().Set("Content-Range", "bytes "+itoa(start)+"-"+itoa(end)+"/"+itoa(len(data)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[start : end+1])
	}))
}

func TestFileReaderHTTP_RoundTrip(t *testing.T) {
	data := make([]byte, 8192)
	for i := range data {
		data[i] = byte(i % 197)
	}
	srv := rangeServer(t, data)
	defer srv.Close()

	r, err := NewFileReaderHTTP(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), r.Size())

	rc, err := r.SectionReader(context.Background(), 100, 200)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data[100:300], got)
}

func TestFileReaderHTTP_RejectsNoRangeSupport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "10")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := NewFileReaderHTTP(context.Background(), srv.URL, nil)
	assert.Error(t, err)
}

// Scenario 4 (§8): HTTP seek boundaries over a virtual 100-byte file.
func TestHTTPSeeker_Boundaries(t *testing.T) {
	data := make([]byte, 100)
	srv := rangeServer(t, data)
	defer srv.Close()

	h, err := NewFileReaderHTTP(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	s := NewHTTPSeeker(context.Background(), h)

	pos, err := s.Seek(50, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(50), pos)

	pos, err = s.Seek(-1, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(99), pos)

	_, err = s.Seek(0, io.SeekEnd)
	assert.Error(t, err)

	pos, err = s.Seek(-50, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(49), pos)

	_, err = s.Seek(100, io.SeekStart)
	assert.Error(t, err)
}

// TestFileReaderHTTP_ShortResponseFollowsUp exercises the "HTTP
// multi-chunk" law of §8: when upstream returns fewer bytes than the
// requested range, the subfile reader issues follow-on Range requests for
// the remainder until the window is filled.
func TestFileReaderHTTP_ShortResponseFollowsUp(t *testing.T) {
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i % 255)
	}
	const maxChunk = 100

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		if req.Method == http.MethodHead {
			w.Header().Set("Content-Length", itoa(len(data)))
			w.WriteHeader(http.StatusOK)
			return
		}
		start, end := parseTestRange(t, req.Header.Get("Range"), len(data))
		if end-start+1 > maxChunk {
			end = start + maxChunk - 1
		}
		w.Header().Set("Content-Range", "bytes "+itoa(start)+"-"+itoa(end)+"/"+itoa(len(data)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[start : end+1])
	}))
	defer srv.Close()

	r, err := NewFileReaderHTTP(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	rc, err := r.SectionReader(context.Background(), 50, 600)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data[50:650], got)
}

func TestHTTPSeeker_Idempotent(t *testing.T) {
	data := make([]byte, 100)
	srv := rangeServer(t, data)
	defer srv.Close()

	h, err := NewFileReaderHTTP(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	s := NewHTTPSeeker(context.Background(), h)

	pos1, err := s.Seek(40, io.SeekStart)
	require.NoError(t, err)
	pos2, err := s.Seek(40, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, pos1, pos2)
}
