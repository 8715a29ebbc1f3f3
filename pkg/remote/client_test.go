package remote_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/loft/pkg/core"
	"github.com/aretw0/loft/pkg/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observation struct {
	endpoint string
	status   int
	success  bool
}

type recorder struct{ seen []observation }

func (r *recorder) ObserveRemote(_, endpoint string, status int, success bool, _ time.Duration) {
	r.seen = append(r.seen, observation{endpoint, status, success})
}

func TestGetJSON_DecodesAndSendsParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/search.php", r.URL.Path)
		assert.Equal(t, "soup", r.URL.Query().Get("s"))
		_, _ = w.Write([]byte(`{"meals":[{"idMeal":"55"}]}`))
	}))
	defer server.Close()

	rec := &recorder{}
	client := remote.NewClient(server.URL+"/api/", remote.WithRecorder(rec))
	defer client.Close()

	var out struct {
		Meals []struct {
			ID string `json:"idMeal"`
		} `json:"meals"`
	}
	require.NoError(t, client.GetJSON(context.Background(), "search.php", url.Values{"s": {"soup"}}, &out))
	require.Len(t, out.Meals, 1)
	assert.Equal(t, "55", out.Meals[0].ID)
	assert.Equal(t, []observation{{"search.php", 200, true}}, rec.seen)
}

func TestGetJSON_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", http.StatusUnauthorized)
			},
			check: func(t *testing.T, err error) {
				var sErr *remote.StatusError
				require.True(t, errors.As(err, &sErr))
				assert.Equal(t, http.StatusUnauthorized, sErr.Code)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"meals": [`))
			},
		},
		{
			name: "oversized body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"pad":"` + strings.Repeat("x", 2<<20) + `"}`))
			},
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, context.DeadlineExceeded)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := remote.NewClient(server.URL, remote.WithTimeout(100*time.Millisecond))
			var out map[string]any
			err := client.GetJSON(context.Background(), "x", nil, &out)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrRemote)
			if tt.check != nil {
				tt.check(t, err)
			}
		})
	}
}

func TestGetJSON_ErrorHidesQuery(t *testing.T) {
	client := remote.NewClient("http://127.0.0.1:1", remote.WithTimeout(time.Second))
	var out map[string]any
	err := client.GetJSON(context.Background(), "weather", url.Values{"appid": {"secret"}}, &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrRemote)
	assert.NotContains(t, err.Error(), "secret")
}

func TestClient_Close(t *testing.T) {
	client := remote.NewClient("http://example.invalid")
	client.Close()
	client.Close()

	var nilClient *remote.Client
	nilClient.Close()
}
