package e621

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"e621dl/pkg/config"
	errs "e621dl/pkg/errors"
	"e621dl/pkg/logger"
	"e621dl/pkg/ratelimit"
	"e621dl/pkg/retry"
)

func newTestClient(t *testing.T, handler http.Handler, mutate ...func(*Options)) (*Client, *logger.TestLogger) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	log := logger.NewTestLogger()
	opts := Options{
		BaseURL:     server.URL,
		SafeBaseURL: server.URL + "/safe",
		UserAgent:   "e621dl-test/1.0",
		Logger:      log,
		Limiter:     ratelimit.Unlimited{},
		Retry: &retry.Config{
			MaxAttempts: 3,
			Backoff:     &retry.ConstantBackoff{Delay: time.Millisecond},
			RetryIf:     retry.DefaultRetryIf,
		},
	}
	for _, m := range mutate {
		m(&opts)
	}
	return NewClient(opts), log
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func samplePost(id int64) Post {
	return Post{
		ID:     id,
		File:   File{URL: "https://static1.e621.net/data/ab/cd/abcd.png", MD5: "abcd", Ext: "png", Size: 4},
		Tags:   Tags{General: []string{"solo"}, Species: []string{"wolf"}},
		Rating: "s",
	}
}

func TestSearchPosts(t *testing.T) {
	var gotUA string
	mux := http.NewServeMux()
	mux.HandleFunc("/posts.json", func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		assert.Equal(t, "wolf solo", r.URL.Query().Get("tags"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		writeJSON(w, map[string]interface{}{"posts": []Post{samplePost(1), samplePost(2)}})
	})

	client, _ := newTestClient(t, mux)
	posts, err := client.SearchPosts(context.Background(), "wolf solo", 2, 50)

	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, int64(1), posts[0].ID)
	assert.Equal(t, "png", posts[0].File.Ext)
	assert.Equal(t, "e621dl-test/1.0", gotUA)
}

func TestFetchPostAndPool(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/posts/42.json", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"post": samplePost(42)})
	})
	mux.HandleFunc("/pools/7.json", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, Pool{ID: 7, Name: "Some_Comic", PostIDs: []int64{1, 2, 3}, PostCount: 3})
	})

	client, _ := newTestClient(t, mux)

	post, err := client.FetchPost(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), post.ID)

	pool, err := client.FetchPool(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Some_Comic", pool.Name)
	assert.Equal(t, []int64{1, 2, 3}, pool.PostIDs)
}

func TestBasicAuthOnlyOnAPIRequests(t *testing.T) {
	var apiUser, imageAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/posts.json", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "secret", pass)
		apiUser = user
		writeJSON(w, map[string]interface{}{"posts": []Post{}})
	})
	mux.HandleFunc("/data/a.png", func(w http.ResponseWriter, r *http.Request) {
		imageAuth = r.Header.Get("Authorization")
		w.Write([]byte("data"))
	})

	client, _ := newTestClient(t, mux, func(o *Options) {
		o.Login = "fox"
		o.APIKey = "secret"
	})

	_, err := client.SearchPosts(context.Background(), "fox", 1, 10)
	require.NoError(t, err)
	_, err = client.DownloadImage(context.Background(), client.opts.BaseURL+"/data/a.png", 4)
	require.NoError(t, err)

	assert.Equal(t, "fox", apiUser)
	assert.Empty(t, imageAuth)
}

func TestUpdateToSafe(t *testing.T) {
	var paths []string
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		writeJSON(w, map[string]interface{}{"posts": []Post{}})
	})

	client, _ := newTestClient(t, mux)
	assert.False(t, client.IsSafe())

	_, err := client.SearchPosts(context.Background(), "fox", 1, 1)
	require.NoError(t, err)

	client.UpdateToSafe()
	client.UpdateToSafe()
	assert.True(t, client.IsSafe())

	_, err = client.SearchPosts(context.Background(), "fox", 1, 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"/posts.json", "/safe/posts.json"}, paths)
}

func TestStatusCodesMapToErrorTypes(t *testing.T) {
	tests := []struct {
		status int
		want   errs.ErrorType
	}{
		{http.StatusUnauthorized, errs.ErrorTypeAuth},
		{http.StatusForbidden, errs.ErrorTypeAuth},
		{http.StatusNotFound, errs.ErrorTypeNotFound},
		{http.StatusTooManyRequests, errs.ErrorTypeRateLimit},
		{http.StatusBadGateway, errs.ErrorTypeServerError},
		{http.StatusTeapot, errs.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			_, err := client.FetchPost(context.Background(), 1)
			require.Error(t, err)
			assert.True(t, errs.IsType(err, tt.want), "got %v", err)
		})
	}
}

func TestRetriesTransientFailures(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]interface{}{"post": samplePost(5)})
	}))

	post, err := client.FetchPost(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), post.ID)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestDoesNotRetryNotFound(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.FetchPool(context.Background(), 9)
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestMalformedJSON(t *testing.T) {
	client, log := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))

	_, err := client.SearchPosts(context.Background(), "fox", 1, 1)
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeParsing))
	assert.True(t, log.HasMessage("ERROR", "failed to parse JSON response"))
}

func TestDownloadImageSizeMismatchOnlyWarns(t *testing.T) {
	client, log := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("12345"))
	}))

	data, err := client.DownloadImage(context.Background(), client.opts.BaseURL+"/x.png", 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("12345"), data)
	assert.True(t, log.HasMessage("WARN", "downloaded size differs from reported size"))
}

func TestCancelledContextStopsRequest(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"posts": []Post{}})
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.SearchPosts(ctx, "fox", 1, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(OptionsFromSettings(config.DefaultSettings(), logger.NewNopLogger()))

	assert.Equal(t, BaseURL, client.opts.BaseURL)
	assert.Equal(t, SafeBaseURL, client.opts.SafeBaseURL)
	assert.NotEmpty(t, client.opts.UserAgent)
	assert.Equal(t, 4, client.retry.MaxAttempts)
	assert.IsType(t, &ratelimit.SlidingWindow{}, client.limiter)
}

func TestTagsAll(t *testing.T) {
	tags := Tags{General: []string{"solo"}, Species: []string{"wolf"}, Artist: []string{"anon"}}
	assert.Equal(t, []string{"anon", "solo", "wolf"}, tags.All())
}
