package agent

import (
	"context"
	"testing"

	"github.com/araval/sahayak-go/internal/config"
	"github.com/araval/sahayak-go/pkg/tools"
)

func TestAgentProcess_LLMError(t *testing.T) {
	useTempHistory(t)
	a := New(&mockLLM{err: context.DeadlineExceeded}, config.Config{LLM: config.LLMConfig{Model: "gpt"}}, tools.NewToolManager())
	if _, err := a.Process(context.Background(), "session-1", "hi"); err == nil {
		t.Fatalf("expected error")
	}
}
