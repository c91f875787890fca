package translate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/metamate-app/metamate/internal/config"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient(&config.Translate{Endpoint: server.URL, TimeoutS: 5})
	return client, server
}

func TestDetect(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "auto", r.URL.Query().Get("sl"))
		assert.Equal(t, "gtx", r.URL.Query().Get("client"))
		w.Write([]byte(`[[["Hello","Hola",null,null,10]],null,"es"]`))
	})
	defer server.Close()

	lang := client.Detect(context.Background(), "Hola")
	assert.Equal(t, "es", lang)
}

func TestDetectFailureAssumesEnglish(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	defer server.Close()

	assert.Equal(t, "en", client.Detect(context.Background(), "Hola"))
}

func TestDetectEmptyText(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("empty text must not hit the network")
	})
	defer server.Close()

	assert.Equal(t, "en", client.Detect(context.Background(), "   "))
}

func TestTranslate(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "es", r.URL.Query().Get("sl"))
		assert.Equal(t, "en", r.URL.Query().Get("tl"))
		assert.Equal(t, "t", r.URL.Query().Get("dt"))
		w.Write([]byte(`[[["Hello, how are you? ","Hola, como estas? ",null,null,10],["I am fine.","Estoy bien.",null,null,10]],null,"es"]`))
	})
	defer server.Close()

	got := client.Translate(context.Background(), "Hola, como estas? Estoy bien.", "es", "en")
	assert.Equal(t, "Hello, how are you? I am fine.", got)
}

func TestTranslateSameLanguageShortCircuits(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("same-language translation must not hit the network")
	})
	defer server.Close()

	got := client.Translate(context.Background(), "hello there", "en", "en")
	assert.Equal(t, "hello there", got)
}

func TestTranslateFailureReturnsOriginal(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})
	defer server.Close()

	got := client.Translate(context.Background(), "Hola", "es", "en")
	assert.Equal(t, "Hola", got)
}

func TestTranslateRestoresMangledURL(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[["Check https://github.com/ejemplo/repositorio please","",null,null,10]],null,"es"]`))
	})
	defer server.Close()

	got := client.Translate(context.Background(), "Mira https://github.com/example/repo por favor", "es", "en")
	assert.Contains(t, got, "https://github.com/example/repo")
	assert.NotContains(t, got, "repositorio")
}

func TestTranslateAppendsDroppedURL(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[["Check the link please","",null,null,10]],null,"es"]`))
	})
	defer server.Close()

	got := client.Translate(context.Background(), "Mira https://github.com/example/repo por favor", "es", "en")
	assert.Contains(t, got, "https://github.com/example/repo")
}
