package biz

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const libraryPage = `<html><head><title>Library</title></head><body><main>
<h1>Campus Library</h1>
<p>The library offers study rooms, printing and research help for every student on campus.</p>
<p>Read the <a href="/files/guide.pdf">Library Guide</a> and the <a href="/files/broken.pdf">Old Policy</a>.</p>
</main></body></html>`

func newTestFetcher(allowed ...string) *Fetcher {
	return NewFetcher(&FetcherConfig{
		AllowedDomains: allowed,
		UserAgent:      "campus-qa-test",
		PageTimeout:    5 * time.Second,
		PDFTimeout:     5 * time.Second,
		FollowPDFs:     true,
	})
}

func TestFetcher_CheckDomain(t *testing.T) {
	f := newTestFetcher("example.edu")

	assert.NoError(t, f.CheckDomain("https://example.edu/a"))
	assert.NoError(t, f.CheckDomain("https://www.example.edu/a"))
	assert.NoError(t, f.CheckDomain("http://LIBRARY.Example.edu:8080/a"))

	var de *DomainError
	assert.True(t, errors.As(f.CheckDomain("https://notexample.edu/a"), &de))
	assert.True(t, errors.As(f.CheckDomain("https://example.edu.evil.com/a"), &de))
	assert.Equal(t, "example.edu.evil.com", de.Host)

	var fe *FetchError
	assert.True(t, errors.As(f.CheckDomain("ftp://example.edu/a"), &fe))
	assert.True(t, errors.As(f.CheckDomain("not a url"), &fe))
}

func TestFetcher_DomainCheckedBeforeRequest(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
	}))
	defer srv.Close()

	f := newTestFetcher("example.edu")
	_, err := f.FetchDocument(context.Background(), srv.URL+"/page")

	var de *DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, int32(0), requests.Load())
}

func TestFetcher_RedirectOffDomainIsDomainError(t *testing.T) {
	var offsite atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/offsite", func(w http.ResponseWriter, _ *http.Request) {
		offsite.Add(1)
		_, _ = w.Write([]byte("<html><body><main><p>OFFSITE CONTENT</p></main></body></html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		// same listener, reached through a host name outside the allowed list
		http.Redirect(w, r, strings.Replace(srv.URL, "127.0.0.1", "localhost", 1)+"/offsite", http.StatusFound)
	})

	f := NewFetcher(&FetcherConfig{
		AllowedDomains: []string{"127.0.0.1"},
		PageTimeout:    5 * time.Second,
		MaxRetries:     2,
	})
	doc, err := f.FetchDocument(context.Background(), srv.URL+"/moved")

	assert.Nil(t, doc)
	var de *DomainError
	require.True(t, errors.As(err, &de), "got %v", err)
	assert.Equal(t, "localhost", de.Host)
	assert.Zero(t, offsite.Load())
}

func TestFetcher_RedirectWithinDomainIsFollowed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><head><title>New</title></head><body><main><p>Moved page</p></main></body></html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	doc, err := newTestFetcher("127.0.0.1").FetchDocument(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	assert.Equal(t, "New", doc.Title)
	assert.Contains(t, doc.Text, "Moved page")
}

func TestFetcher_Non2xxIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := newTestFetcher()
	_, err := f.FetchDocument(context.Background(), srv.URL+"/missing")

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Equal(t, srv.URL+"/missing", fe.URL)
}

func TestFetcher_TimeoutIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f := NewFetcher(&FetcherConfig{PageTimeout: 50 * time.Millisecond, PDFTimeout: 50 * time.Millisecond})
	_, err := f.FetchDocument(context.Background(), srv.URL+"/slow")

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Zero(t, fe.StatusCode)
}

func TestFetcher_FetchAll_PDFFailureKeepsParentPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/library", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(libraryPage))
	})
	mux.HandleFunc("/files/guide.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("this is not a pdf"))
	})
	mux.HandleFunc("/files/broken.pdf", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := newTestFetcher("127.0.0.1")
	docs, err := f.FetchAll(context.Background(), srv.URL+"/library")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, KindHTML, docs[0].Kind)
	assert.Equal(t, "Library", docs[0].Title)
	assert.Contains(t, docs[0].Text, "study rooms")
}

func TestFetcher_PDFExtractionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 garbage"))
	}))
	defer srv.Close()

	f := newTestFetcher()
	_, err := f.FetchDocument(context.Background(), srv.URL+"/catalog.pdf")

	var ee *ExtractionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, srv.URL+"/catalog.pdf", ee.URL)
}

func TestFetcher_PDFSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	f := NewFetcher(&FetcherConfig{PDFTimeout: time.Second, PageTimeout: time.Second, MaxPDFBytes: 1024})
	_, err := f.FetchDocument(context.Background(), srv.URL+"/big.pdf")

	var ee *ExtractionError
	require.True(t, errors.As(err, &ee))
	assert.Contains(t, ee.Error(), "exceeds limit")
}

func TestFetcher_PolitenessDelay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>ok</p></body></html>"))
	}))
	defer srv.Close()

	f := NewFetcher(&FetcherConfig{PageTimeout: time.Second, Delay: 100 * time.Millisecond})
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := f.FetchDocument(context.Background(), srv.URL)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 190*time.Millisecond)
}

func TestFetcher_SendsUserAgent(t *testing.T) {
	var ua atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua.Store(r.UserAgent())
		_, _ = w.Write([]byte("<html><body></body></html>"))
	}))
	defer srv.Close()

	doc, err := newTestFetcher().FetchDocument(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "campus-qa-test", ua.Load())
	assert.Empty(t, doc.Text)
}
