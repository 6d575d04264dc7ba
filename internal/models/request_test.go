package models

import (
	"errors"
	"testing"
)

func TestSearchRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     SearchRequest
		wantErr bool
		wantK   int
	}{
		{"empty query", SearchRequest{}, true, 0},
		{"default k", SearchRequest{Query: "x"}, false, DefaultSearchK},
		{"negative k", SearchRequest{Query: "x", K: -1}, false, DefaultSearchK},
		{"keeps k", SearchRequest{Query: "x", K: 7}, false, 7},
		{"caps k", SearchRequest{Query: "x", K: 1000}, false, MaxK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.req.K != tt.wantK {
				t.Errorf("K = %d, want %d", tt.req.K, tt.wantK)
			}
		})
	}
}

func TestChatPDFRequest_Validate(t *testing.T) {
	r := ChatPDFRequest{SessionID: "s", Query: "what?"}
	if err := r.Validate(); err != nil {
		t.Fatal(err)
	}
	if r.TopK != DefaultTopK {
		t.Errorf("TopK = %d, want %d", r.TopK, DefaultTopK)
	}
	if err := (&ChatPDFRequest{SessionID: "s"}).Validate(); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("empty query err = %v", err)
	}
	if err := (&ChatPDFRequest{Query: "q"}).Validate(); err == nil {
		t.Error("expected error without session_id")
	}
}

func TestChatMessagesRequest_Validate(t *testing.T) {
	ok := ChatMessagesRequest{Messages: []ChatMessage{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}}}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid request: %v", err)
	}
	if err := (&ChatMessagesRequest{}).Validate(); err == nil {
		t.Error("expected error for no messages")
	}
	bad := ChatMessagesRequest{Messages: []ChatMessage{{Role: "robot", Content: "beep"}}}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestChatRequest_Validate(t *testing.T) {
	if err := (&ChatRequest{DeveloperMessage: "be nice"}).Validate(); err == nil {
		t.Error("expected error without user_message")
	}
	if err := (&ChatRequest{UserMessage: "hi"}).Validate(); err != nil {
		t.Error(err)
	}
}
