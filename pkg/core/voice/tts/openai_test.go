package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAISynthesize(t *testing.T) {
	var gotReq openAISpeechRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/audio/speech" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte("RIFFfakewav"))
	}))
	defer srv.Close()

	p := NewOpenAIWithClient("sk-test", srv.Client()).WithBaseURL(srv.URL)
	syn, err := p.Synthesize(context.Background(), "hello there", SynthesizeOptions{Voice: "nova"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(syn.Audio) != "RIFFfakewav" {
		t.Fatalf("Audio=%q, want fake wav bytes", syn.Audio)
	}
	if syn.MIMEType != "audio/wav" {
		t.Fatalf("MIMEType=%q, want audio/wav", syn.MIMEType)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("Authorization=%q", gotAuth)
	}
	if gotReq.Model != "tts-1" || gotReq.Voice != "nova" || gotReq.Input != "hello there" {
		t.Fatalf("request=%+v", gotReq)
	}
	if gotReq.ResponseFormat != "wav" {
		t.Fatalf("ResponseFormat=%q, want wav", gotReq.ResponseFormat)
	}
}

func TestOpenAISynthesizeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad voice"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewOpenAIWithClient("sk-test", srv.Client()).WithBaseURL(srv.URL)
	if _, err := p.Synthesize(context.Background(), "hello", SynthesizeOptions{}); err == nil {
		t.Fatal("Synthesize err=nil, want status error")
	}
}

func TestOpenAISynthesizeValidation(t *testing.T) {
	p := NewOpenAI("")
	if _, err := p.Synthesize(context.Background(), "hello", SynthesizeOptions{}); err == nil {
		t.Fatal("Synthesize err=nil, want missing key error")
	}
	p = NewOpenAI("sk-test")
	if _, err := p.Synthesize(context.Background(), "   ", SynthesizeOptions{}); err == nil {
		t.Fatal("Synthesize err=nil, want empty text error")
	}
}
