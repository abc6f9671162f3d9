package bridge

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	ListTimeout = 10 * time.Second
	CallTimeout = 15 * time.Second
)

var (
	// ErrToolNotFound is returned when the bridge has no tool of that name.
	ErrToolNotFound = errors.New("tool not found")
	// ErrMalformedReply is returned when a reply carries no usable content.
	ErrMalformedReply = errors.New("malformed reply")
)

// Tool describes a registered tool.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ToolOutput is the text a tool call rendered.
type ToolOutput struct {
	Text    string `json:"text"`
	IsError bool   `json:"is_error"`
}

// Prober talks to an MCP server through an in-process client so the facade
// can check the bridge without a subprocess.
type Prober struct {
	srv         *server.MCPServer
	listTimeout time.Duration
	callTimeout time.Duration
}

func NewProber(srv *server.MCPServer) *Prober {
	return &Prober{srv: srv, listTimeout: ListTimeout, callTimeout: CallTimeout}
}

// WithTimeouts overrides the list and call timeouts.
func (p *Prober) WithTimeouts(list, call time.Duration) *Prober {
	p.listTimeout = list
	p.callTimeout = call
	return p
}

// ListTools runs initialize and tools/list.
func (p *Prober) ListTools(ctx context.Context) ([]Tool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.listTimeout)
	defer cancel()

	c, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	return listTools(ctx, c)
}

// CallTool runs initialize, checks name is registered and calls it.
func (p *Prober) CallTool(ctx context.Context, name string, args map[string]any) (ToolOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	c, err := p.connect(ctx)
	if err != nil {
		return ToolOutput{}, err
	}
	defer c.Close()

	tools, err := listTools(ctx, c)
	if err != nil {
		return ToolOutput{}, err
	}
	if !slices.ContainsFunc(tools, func(t Tool) bool { return t.Name == name }) {
		return ToolOutput{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	if args == nil {
		args = map[string]any{}
	}
	req.Params.Arguments = args

	res, err := c.CallTool(ctx, req)
	if err != nil {
		return ToolOutput{}, fmt.Errorf("calling %s: %w", name, deadline(ctx, err))
	}
	if res == nil {
		return ToolOutput{}, fmt.Errorf("%w: empty result from %s", ErrMalformedReply, name)
	}

	var texts []string
	for _, content := range res.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	if len(texts) == 0 {
		return ToolOutput{}, fmt.Errorf("%w: %s returned no text content", ErrMalformedReply, name)
	}
	return ToolOutput{Text: strings.Join(texts, "\n"), IsError: res.IsError}, nil
}

func (p *Prober) connect(ctx context.Context) (*client.Client, error) {
	if p.srv == nil {
		return nil, fmt.Errorf("%w: no bridge server configured", ErrToolNotFound)
	}
	c, err := client.NewInProcessClient(p.srv)
	if err != nil {
		return nil, fmt.Errorf("creating in-process client: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("starting in-process client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "kbagent-diagnostics", Version: ServerVersion}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return nil, fmt.Errorf("initializing: %w", deadline(ctx, err))
	}
	return c, nil
}

func listTools(ctx context.Context, c *client.Client) ([]Tool, error) {
	resp, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("listing tools: %w", deadline(ctx, err))
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: empty tools/list result", ErrMalformedReply)
	}
	tools := make([]Tool, len(resp.Tools))
	for i, t := range resp.Tools {
		tools[i] = Tool{Name: t.Name, Description: t.Description}
	}
	return tools, nil
}

// deadline attaches the context error to err when the context ran out, since
// a server-side failure caused by an expired context arrives as plain text.
func deadline(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return err
}
