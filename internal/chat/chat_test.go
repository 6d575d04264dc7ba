package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestGroundedPrompt(t *testing.T) {
	got := GroundedPrompt([]string{"first chunk", "second chunk"}, "What is it?")
	want := "You are a helpful assistant. Use the following PDF context to answer the user's question.\n" +
		"Context:\nfirst chunk\n---\nsecond chunk\n\nQuestion: What is it?\nAnswer:"
	if got != want {
		t.Errorf("GroundedPrompt =\n%q\nwant\n%q", got, want)
	}
}

func TestGroundedPrompt_NoContext(t *testing.T) {
	got := GroundedPrompt(nil, "q")
	if !strings.Contains(got, "Context:\n\n\nQuestion: q") {
		t.Errorf("GroundedPrompt = %q", got)
	}
}

func TestWithSystemPrompt(t *testing.T) {
	in := []Message{{Role: RoleUser, Content: "hi"}}
	out := WithSystemPrompt(in)
	if len(out) != 2 || out[0].Role != RoleSystem || out[0].Content != DefaultSystemPrompt || out[1] != in[0] {
		t.Errorf("WithSystemPrompt = %+v", out)
	}
	if len(in) != 1 {
		t.Error("input slice modified")
	}
}

type staticCompleter struct {
	deltas []string
	err    error
}

func (c staticCompleter) Stream(_ context.Context, _ []Message, _ string, fn func(string) error) error {
	for _, d := range c.deltas {
		if err := fn(d); err != nil {
			return err
		}
	}
	return c.err
}

func TestCollect(t *testing.T) {
	got, err := Collect(context.Background(), staticCompleter{deltas: []string{"Hel", "lo"}}, nil, "")
	if err != nil || got != "Hello" {
		t.Errorf("Collect = %q, %v", got, err)
	}
	cause := errors.New("cut off")
	got, err = Collect(context.Background(), staticCompleter{deltas: []string{"Hel"}, err: cause}, nil, "")
	if !errors.Is(err, cause) || got != "Hel" {
		t.Errorf("Collect = %q, %v", got, err)
	}
}
