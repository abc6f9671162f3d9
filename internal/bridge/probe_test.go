package bridge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func TestProber_ListTools(t *testing.T) {
	p := NewProber(NewServer(testDeps(&fakeBackend{})))

	tools, err := p.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools) != len(ToolNames) {
		t.Fatalf("got %d tools, want %d", len(tools), len(ToolNames))
	}
	names := make(map[string]bool, len(tools))
	for _, tool := range tools {
		names[tool.Name] = true
	}
	for _, name := range ToolNames {
		if !names[name] {
			t.Errorf("tool %s not listed", name)
		}
	}
}

func TestProber_CallTool(t *testing.T) {
	p := NewProber(NewServer(testDeps(&fakeBackend{})))

	out, err := p.CallTool(context.Background(), "list_agent_modes", nil)
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if out.IsError {
		t.Fatalf("unexpected tool error: %s", out.Text)
	}
	if !strings.Contains(out.Text, "Available AI Agent Modes") {
		t.Errorf("unexpected text: %s", out.Text)
	}
}

func TestProber_CallTool_ErrorResult(t *testing.T) {
	p := NewProber(NewServer(testDeps(&fakeBackend{err: errors.New("refused")})))

	out, err := p.CallTool(context.Background(), "chat_with_agent", map[string]any{"message": "hi"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !out.IsError {
		t.Error("expected IsError")
	}
}

func TestProber_UnknownTool(t *testing.T) {
	p := NewProber(NewServer(testDeps(&fakeBackend{})))

	_, err := p.CallTool(context.Background(), "no_such_tool", nil)
	if !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("err = %v, want ErrToolNotFound", err)
	}
}

func TestProber_NoServer(t *testing.T) {
	_, err := NewProber(nil).ListTools(context.Background())
	if !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("err = %v, want ErrToolNotFound", err)
	}
}

func TestProber_CallToolTimeout(t *testing.T) {
	srv := server.NewMCPServer("slow", "test", server.WithToolCapabilities(true))
	srv.AddTool(mcp.NewTool("stall"), func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
		return nil, errors.New("stalled")
	})
	p := NewProber(srv).WithTimeouts(time.Second, 50*time.Millisecond)

	start := time.Now()
	_, err := p.CallTool(context.Background(), "stall", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("CallTool took %v", elapsed)
	}
}
