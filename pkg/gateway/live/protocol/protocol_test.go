package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecodeClientMessage_Init(t *testing.T) {
	raw := []byte(`{"type":"init","personaId":"tutor","responseMode":"text"}`)

	msg, err := DecodeClientMessage(raw)
	if err != nil {
		t.Fatalf("DecodeClientMessage() error = %v", err)
	}
	init, ok := msg.(ClientInit)
	if !ok {
		t.Fatalf("decoded type = %T, want ClientInit", msg)
	}
	if init.PersonaID != "tutor" {
		t.Fatalf("personaId=%q", init.PersonaID)
	}
	if init.ResponseMode != ResponseModeText {
		t.Fatalf("responseMode=%q", init.ResponseMode)
	}
}

func TestDecodeClientMessage_InitDefaultMode(t *testing.T) {
	raw := []byte(`{"type":"init","personaId":"companion"}`)

	msg, err := DecodeClientMessage(raw)
	if err != nil {
		t.Fatalf("DecodeClientMessage() error = %v", err)
	}
	if init := msg.(ClientInit); init.ResponseMode != "" {
		t.Fatalf("responseMode=%q, want empty", init.ResponseMode)
	}
}

func TestDecodeClientMessage_InitUnsupportedMode(t *testing.T) {
	raw := []byte(`{"type":"init","personaId":"companion","responseMode":"video"}`)
	_, err := DecodeClientMessage(raw)
	if err == nil {
		t.Fatal("expected error")
	}
	decErr, ok := err.(*DecodeError)
	if !ok {
		t.Fatalf("err type = %T", err)
	}
	if decErr.Code != "unsupported" {
		t.Fatalf("code=%q", decErr.Code)
	}
}

func TestDecodeClientMessage_AudioChunk(t *testing.T) {
	raw := []byte(`{"type":"audio_chunk","data":"AAAA"}`)
	msg, err := DecodeClientMessage(raw)
	if err != nil {
		t.Fatalf("DecodeClientMessage() error = %v", err)
	}
	chunk, ok := msg.(ClientAudioChunk)
	if !ok {
		t.Fatalf("decoded type = %T, want ClientAudioChunk", msg)
	}
	if chunk.Data != "AAAA" {
		t.Fatalf("data=%q", chunk.Data)
	}
}

func TestDecodeClientMessage_AudioChunkMissingData(t *testing.T) {
	raw := []byte(`{"type":"audio_chunk"}`)
	_, err := DecodeClientMessage(raw)
	if err == nil {
		t.Fatal("expected error")
	}
	if decErr := err.(*DecodeError); decErr.Code != "bad_request" || decErr.Param != "data" {
		t.Fatalf("err=%+v", decErr)
	}
}

func TestDecodeClientMessage_ForceCommit(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"force_commit"}`))
	if err != nil {
		t.Fatalf("DecodeClientMessage() error = %v", err)
	}
	if _, ok := msg.(ClientForceCommit); !ok {
		t.Fatalf("decoded type = %T, want ClientForceCommit", msg)
	}
}

func TestDecodeClientMessage_QuizAnswer(t *testing.T) {
	raw := []byte(`{"type":"quiz_answer","sessionId":"s1","questionId":"q1","answerIndex":2}`)
	msg, err := DecodeClientMessage(raw)
	if err != nil {
		t.Fatalf("DecodeClientMessage() error = %v", err)
	}
	answer, ok := msg.(ClientQuizAnswer)
	if !ok {
		t.Fatalf("decoded type = %T, want ClientQuizAnswer", msg)
	}
	if answer.QuestionID != "q1" || answer.AnswerIndex != 2 {
		t.Fatalf("answer=%+v", answer)
	}
}

func TestDecodeClientMessage_QuizAnswerInvalid(t *testing.T) {
	for _, raw := range []string{
		`{"type":"quiz_answer","sessionId":"s1","answerIndex":0}`,
		`{"type":"quiz_answer","sessionId":"s1","questionId":"q1","answerIndex":-1}`,
	} {
		if _, err := DecodeClientMessage([]byte(raw)); err == nil {
			t.Fatalf("DecodeClientMessage(%s) error = nil, want bad_request", raw)
		}
	}
}

func TestDecodeClientMessage_UnknownType(t *testing.T) {
	_, err := DecodeClientMessage([]byte(`{"type":"reboot"}`))
	if err == nil {
		t.Fatal("expected error")
	}
	if decErr := err.(*DecodeError); decErr.Code != "bad_request" {
		t.Fatalf("code=%q", decErr.Code)
	}
}

func TestDecodeClientMessage_InvalidJSON(t *testing.T) {
	if _, err := DecodeClientMessage([]byte(`{`)); err == nil {
		t.Fatal("expected error")
	}
	if _, err := DecodeClientMessage([]byte(`{"nope":1}`)); err == nil {
		t.Fatal("expected error for missing type")
	}
}

func TestServerMessageWireShape(t *testing.T) {
	blob, err := json.Marshal(NewAIAudio("QUJD", "audio/pcm;rate=24000", true))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"type":"ai_audio","data":"QUJD","mimeType":"audio/pcm;rate=24000","done":true}`
	if string(blob) != want {
		t.Fatalf("wire=%s, want %s", blob, want)
	}

	blob, err = json.Marshal(NewAvatarState(AvatarListening))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(blob) != `{"type":"avatar_state","state":"listening"}` {
		t.Fatalf("wire=%s", blob)
	}
}
