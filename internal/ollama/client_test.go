package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newGenerateServer serves NDJSON generation responses the way Ollama does
func newGenerateServer(t *testing.T, chunks []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		for i, c := range chunks {
			done := i == len(chunks)-1
			fmt.Fprintf(w, `{"model":"m","response":%q,"done":%v}`+"\n", c, done)
		}
	}))
}

func TestGenerateJoinsChunks(t *testing.T) {
	srv := newGenerateServer(t, []string{"Hello", ", ", "reader."})
	defer srv.Close()

	client := NewClient(srv.URL)
	got, err := client.Generate(context.Background(), &GenerateRequest{Model: "m", Prompt: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "Hello, reader.", got)
}

func TestGenerateStreamDeliversChunksInOrder(t *testing.T) {
	srv := newGenerateServer(t, []string{"one ", "two ", "three"})
	defer srv.Close()

	client := NewClient(srv.URL)
	var got []string
	err := client.GenerateStream(context.Background(), &GenerateRequest{Model: "m", Prompt: "hi"}, func(chunk string) {
		got = append(got, chunk)
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"one ", "two ", "three"}, got)
}

func TestStreamingCallerForwardsChunksAndReturnsFullText(t *testing.T) {
	srv := newGenerateServer(t, []string{"The ", "lamp ", "was lit."})
	defer srv.Close()

	var preview []string
	caller := NewStreamingCaller(NewClient(srv.URL), "m", func(chunk string) {
		preview = append(preview, chunk)
	})

	got, err := caller.Invoke(context.Background(), "prompt")

	require.NoError(t, err)
	assert.Equal(t, "The lamp was lit.", got)
	assert.Equal(t, []string{"The ", "lamp ", "was lit."}, preview)
}

func TestCallerWithoutStreamingStillWorks(t *testing.T) {
	srv := newGenerateServer(t, []string{"full text"})
	defer srv.Close()

	caller := NewCaller(NewClient(srv.URL), "m")
	got, err := caller.Invoke(context.Background(), "prompt")

	require.NoError(t, err)
	assert.Equal(t, "full text", got)
}

func TestGenerateSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.Generate(context.Background(), &GenerateRequest{Model: "m", Prompt: "hi"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
