package aipipe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "openai/gpt-4o-mini", req.Model)
		assert.Equal(t, "What is 2+2?", req.Prompt)

		json.NewEncoder(w).Encode(GenerateResponse{Answer: "4"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	resp, err := client.Generate(context.Background(), GenerateRequest{Prompt: "What is 2+2?"})
	require.NoError(t, err)
	assert.Equal(t, "4", resp.Text())
}

func TestGenerate_WithModelOption(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "mistral-small", req.Model)
		json.NewEncoder(w).Encode(GenerateResponse{GeneratedText: "ok"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", WithModel("mistral-small"))
	resp, err := client.Generate(context.Background(), GenerateRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text())
}

func TestGenerate_RequestModelOverridesDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "explicit-model", req.Model)
		json.NewEncoder(w).Encode(GenerateResponse{Answer: "a"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.Generate(context.Background(), GenerateRequest{Model: "explicit-model", Prompt: "p"})
	require.NoError(t, err)
}

func TestGenerate_NoAuthHeaderWithoutKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(GenerateResponse{Answer: "a"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.Generate(context.Background(), GenerateRequest{Prompt: "p"})
	require.NoError(t, err)
}

func TestGenerate_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limited"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k")
	_, err := client.Generate(context.Background(), GenerateRequest{Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestGenerateResponse_TextPrefersAnswer(t *testing.T) {
	r := &GenerateResponse{Answer: "a", GeneratedText: "g"}
	assert.Equal(t, "a", r.Text())

	r = &GenerateResponse{GeneratedText: "g"}
	assert.Equal(t, "g", r.Text())
}
