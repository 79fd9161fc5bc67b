package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/standardbeagle/symgraph/internal/config"
	"github.com/standardbeagle/symgraph/internal/debug"
	sgerrors "github.com/standardbeagle/symgraph/internal/errors"
)

// Client is one language-server connection. Requests are safe for
// concurrent use; the pool hands a client to one borrower at a time but
// notifications may interleave.
type Client struct {
	language string
	rootDir  string
	tr       *transport
	cmd      *exec.Cmd
	policy   *TimeoutPolicy

	caps      ServerCapabilities
	capsKnown bool

	nextID  atomic.Int64
	mu      sync.Mutex
	pending map[int64]chan *response

	healthy  atomic.Bool
	closed   chan struct{}
	closeOne sync.Once

	lastUsed atomic.Int64 // unix nanos, maintained by the pool
}

// spawn launches the adapter's executable (falling back to the alt
// command) and wires a client to its stdio. The server's stderr goes to
// this process's stderr when verbose debug output is enabled, otherwise
// it is discarded.
func spawn(adapter config.Adapter, rootDir string, policy *TimeoutPolicy) (*Client, error) {
	command, args := adapter.Command, adapter.Args
	if _, err := exec.LookPath(command); err != nil {
		if adapter.AltCommand == "" {
			return nil, fmt.Errorf("language server %q not found on PATH", command)
		}
		if _, altErr := exec.LookPath(adapter.AltCommand); altErr != nil {
			return nil, fmt.Errorf("language servers %q and %q not found on PATH", command, adapter.AltCommand)
		}
		command, args = adapter.AltCommand, adapter.AltArgs
	}

	cmd := exec.Command(command, args...)
	cmd.Dir = rootDir
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if debug.Enabled(debug.LevelVerbose) {
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", command, err)
	}

	c := newClient(adapter.ID, rootDir, stdout, stdin, stdin, policy)
	c.cmd = cmd
	return c, nil
}

// newClient builds a client over explicit streams. Tests use this with
// in-process pipes instead of a child process.
func newClient(language, rootDir string, r io.Reader, w io.Writer, closer io.Closer, policy *TimeoutPolicy) *Client {
	if policy == nil {
		policy = NewTimeoutPolicy()
	}
	c := &Client{
		language: language,
		rootDir:  rootDir,
		tr:       newTransport(r, w, closer),
		policy:   policy,
		pending:  make(map[int64]chan *response),
		closed:   make(chan struct{}),
	}
	c.healthy.Store(true)
	c.touch()
	go c.readLoop()
	return c
}

func (c *Client) touch() {
	c.lastUsed.Store(time.Now().UnixNano())
}

// Language returns the language id this client serves.
func (c *Client) Language() string {
	return c.language
}

// Healthy reports whether the transport is still believed usable.
func (c *Client) Healthy() bool {
	return c.healthy.Load()
}

// readLoop dispatches framed responses to their waiters. Server
// notifications are dropped; server-to-client requests get a null reply
// so servers that insist on configuration round-trips keep going.
func (c *Client) readLoop() {
	for {
		body, err := c.tr.readMessage()
		if err != nil {
			c.fail()
			return
		}
		var msg response
		if err := json.Unmarshal(body, &msg); err != nil {
			debug.Verbosef("LSP", "%s: undecodable message: %v", c.language, err)
			continue
		}
		if msg.ID == nil {
			continue // notification
		}
		if msg.Method != "" {
			// A request from the server; answer with null.
			_ = c.tr.writeMessage(&response{JSONRPC: "2.0", ID: msg.ID})
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[*msg.ID]
		if ok {
			delete(c.pending, *msg.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- &msg
		}
	}
}

// fail marks the client unhealthy and wakes every waiter with a
// transport-closed signal.
func (c *Client) fail() {
	c.healthy.Store(false)
	c.closeOne.Do(func() { close(c.closed) })
	c.mu.Lock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
	c.mu.Unlock()
}

func (c *Client) lspError(method string, cause sgerrors.LspFailureCause, code int, err error) error {
	return &sgerrors.LspRequestError{
		Language:   c.language,
		Method:     method,
		Cause:      cause,
		Code:       code,
		Underlying: err,
	}
}

// call performs one request with the adaptive timeout for op, records
// the outcome, and decodes a non-null result into out (which may be nil).
func (c *Client) call(ctx context.Context, op, method string, params, out interface{}) error {
	timeout := c.policy.TimeoutFor(c.language, op)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	id := c.nextID.Add(1)
	ch := make(chan *response, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	start := time.Now()
	req := &request{JSONRPC: "2.0", ID: &id, Method: method, Params: params}
	if err := c.tr.writeMessage(req); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		c.fail()
		c.policy.Record(c.language, op, time.Since(start), false)
		return c.lspError(method, sgerrors.CauseTransportClosed, 0, err)
	}
	c.touch()

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		c.policy.Record(c.language, op, time.Since(start), false)
		if ctx.Err() == context.DeadlineExceeded {
			return c.lspError(method, sgerrors.CauseTimeout, 0, ctx.Err())
		}
		return fmt.Errorf("%w: %v", sgerrors.ErrCancelled, ctx.Err())
	case <-c.closed:
		c.policy.Record(c.language, op, time.Since(start), false)
		return c.lspError(method, sgerrors.CauseTransportClosed, 0, io.ErrClosedPipe)
	case resp, ok := <-ch:
		latency := time.Since(start)
		if !ok {
			c.policy.Record(c.language, op, latency, false)
			return c.lspError(method, sgerrors.CauseTransportClosed, 0, io.ErrClosedPipe)
		}
		if resp.Error != nil {
			c.policy.Record(c.language, op, latency, false)
			return c.lspError(method, sgerrors.CauseServerError, resp.Error.Code,
				fmt.Errorf("%s", resp.Error.Message))
		}
		c.policy.Record(c.language, op, latency, true)
		if out != nil && len(resp.Result) > 0 && string(resp.Result) != "null" {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return c.lspError(method, sgerrors.CauseServerError, 0, err)
			}
		}
		return nil
	}
}

func (c *Client) notify(method string, params interface{}) error {
	err := c.tr.writeMessage(&request{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		c.fail()
	}
	return err
}

// Initialize runs the initialize/initialized handshake and records
// server capabilities. cachedCaps, when non-nil, is a previously
// negotiated capability set for this language (the pool caches it);
// the handshake still runs but capability gating starts immediately.
func (c *Client) Initialize(ctx context.Context, cachedCaps *ServerCapabilities) error {
	if cachedCaps != nil {
		c.caps = *cachedCaps
		c.capsKnown = true
	}
	params := &InitializeParams{
		ProcessID: os.Getpid(),
		RootURI:   FileURI(c.rootDir),
		Capabilities: ClientCapabilities{
			TextDocument: &TextDocumentClientCapabilities{
				DocumentSymbol: &DocumentSymbolClientCapabilities{
					HierarchicalDocumentSymbolSupport: true,
				},
			},
		},
	}
	var result InitializeResult
	if err := c.call(ctx, OpInitialize, "initialize", params, &result); err != nil {
		return err
	}
	c.caps = result.Capabilities
	c.capsKnown = true
	return c.notify("initialized", struct{}{})
}

// Capabilities returns the negotiated server capabilities.
func (c *Client) Capabilities() (ServerCapabilities, bool) {
	return c.caps, c.capsKnown
}

// requireCapability gates a request on the advertised capability so
// unsupported methods fail fast without a round-trip.
func (c *Client) requireCapability(method string, raw json.RawMessage) error {
	if c.capsKnown && !providerEnabled(raw) {
		return c.lspError(method, sgerrors.CauseUnsupported, 0,
			fmt.Errorf("server did not advertise capability"))
	}
	return nil
}

// DidOpen announces a file's content to the server.
func (c *Client) DidOpen(path, text string) error {
	return c.notify("textDocument/didOpen", &DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{
			URI:        FileURI(path),
			LanguageID: c.language,
			Version:    1,
			Text:       text,
		},
	})
}

// DocumentSymbols requests the symbol tree for one file. Servers return
// either hierarchical DocumentSymbols or flat SymbolInformation; both
// forms are surfaced.
func (c *Client) DocumentSymbols(ctx context.Context, path string) ([]DocumentSymbol, []SymbolInformation, error) {
	if err := c.requireCapability("textDocument/documentSymbol", c.caps.DocumentSymbolProvider); err != nil {
		return nil, nil, err
	}
	var raw json.RawMessage
	err := c.call(ctx, OpDocumentSymbol, "textDocument/documentSymbol",
		&DocumentSymbolParams{TextDocument: TextDocumentIdentifier{URI: FileURI(path)}}, &raw)
	if err != nil {
		return nil, nil, err
	}
	if len(raw) == 0 || string(raw) == "null" || string(raw) == "[]" {
		return nil, nil, nil
	}
	// Hierarchical nodes carry a selectionRange; SymbolInformation
	// carries a location. Probe the first element to pick the decoding.
	var probe []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, nil, c.lspError("textDocument/documentSymbol", sgerrors.CauseServerError, 0, err)
	}
	if len(probe) > 0 {
		if _, hierarchical := probe[0]["selectionRange"]; hierarchical {
			var tree []DocumentSymbol
			if err := json.Unmarshal(raw, &tree); err != nil {
				return nil, nil, c.lspError("textDocument/documentSymbol", sgerrors.CauseServerError, 0, err)
			}
			return tree, nil, nil
		}
	}
	var flat []SymbolInformation
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, nil, c.lspError("textDocument/documentSymbol", sgerrors.CauseServerError, 0, err)
	}
	return nil, flat, nil
}

// WorkspaceSymbols issues a whole-project symbol query.
func (c *Client) WorkspaceSymbols(ctx context.Context, query string) ([]SymbolInformation, error) {
	if err := c.requireCapability("workspace/symbol", c.caps.WorkspaceSymbolProvider); err != nil {
		return nil, err
	}
	var out []SymbolInformation
	err := c.call(ctx, OpWorkspaceSymbol, "workspace/symbol", &WorkspaceSymbolParams{Query: query}, &out)
	return out, err
}

// Definition resolves the definition locations for a position.
func (c *Client) Definition(ctx context.Context, path string, pos Position) ([]Location, error) {
	if err := c.requireCapability("textDocument/definition", c.caps.DefinitionProvider); err != nil {
		return nil, err
	}
	return c.locationsCall(ctx, OpDefinition, "textDocument/definition", &TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: FileURI(path)},
		Position:     pos,
	})
}

// TypeDefinition resolves the type-definition locations for a position.
func (c *Client) TypeDefinition(ctx context.Context, path string, pos Position) ([]Location, error) {
	if err := c.requireCapability("textDocument/typeDefinition", c.caps.TypeDefinitionProvider); err != nil {
		return nil, err
	}
	return c.locationsCall(ctx, OpDefinition, "textDocument/typeDefinition", &TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: FileURI(path)},
		Position:     pos,
	})
}

// Implementation resolves implementation locations for a position.
func (c *Client) Implementation(ctx context.Context, path string, pos Position) ([]Location, error) {
	if err := c.requireCapability("textDocument/implementation", c.caps.ImplementationProvider); err != nil {
		return nil, err
	}
	return c.locationsCall(ctx, OpDefinition, "textDocument/implementation", &TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: FileURI(path)},
		Position:     pos,
	})
}

// References lists every reference to the symbol at a position.
func (c *Client) References(ctx context.Context, path string, pos Position, includeDecl bool) ([]Location, error) {
	if err := c.requireCapability("textDocument/references", c.caps.ReferencesProvider); err != nil {
		return nil, err
	}
	var out []Location
	err := c.call(ctx, OpReferences, "textDocument/references", &ReferenceParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: FileURI(path)},
			Position:     pos,
		},
		Context: ReferenceContext{IncludeDeclaration: includeDecl},
	}, &out)
	return out, err
}

// PrepareCallHierarchy resolves call-hierarchy items at a position.
func (c *Client) PrepareCallHierarchy(ctx context.Context, path string, pos Position) ([]CallHierarchyItem, error) {
	if err := c.requireCapability("textDocument/prepareCallHierarchy", c.caps.CallHierarchyProvider); err != nil {
		return nil, err
	}
	var out []CallHierarchyItem
	err := c.call(ctx, OpCallHierarchy, "textDocument/prepareCallHierarchy", &CallHierarchyPrepareParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: FileURI(path)},
			Position:     pos,
		},
	}, &out)
	return out, err
}

// IncomingCalls lists callers of a call-hierarchy item.
func (c *Client) IncomingCalls(ctx context.Context, item CallHierarchyItem) ([]CallHierarchyIncomingCall, error) {
	var out []CallHierarchyIncomingCall
	err := c.call(ctx, OpCallHierarchy, "callHierarchy/incomingCalls",
		&CallHierarchyIncomingCallsParams{Item: item}, &out)
	return out, err
}

// OutgoingCalls lists callees of a call-hierarchy item.
func (c *Client) OutgoingCalls(ctx context.Context, item CallHierarchyItem) ([]CallHierarchyOutgoingCall, error) {
	var out []CallHierarchyOutgoingCall
	err := c.call(ctx, OpCallHierarchy, "callHierarchy/outgoingCalls",
		&CallHierarchyOutgoingCallsParams{Item: item}, &out)
	return out, err
}

// HoverText fetches hover documentation at a position, flattened to a
// plain string.
func (c *Client) HoverText(ctx context.Context, path string, pos Position) (string, error) {
	if err := c.requireCapability("textDocument/hover", c.caps.HoverProvider); err != nil {
		return "", err
	}
	var hover Hover
	err := c.call(ctx, OpHover, "textDocument/hover", &TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: FileURI(path)},
		Position:     pos,
	}, &hover)
	if err != nil {
		return "", err
	}
	return flattenHover(hover.Contents), nil
}

// locationsCall handles methods whose result may be Location, []Location
// or []LocationLink depending on the server.
func (c *Client) locationsCall(ctx context.Context, op, method string, params interface{}) ([]Location, error) {
	var raw json.RawMessage
	if err := c.call(ctx, op, method, params, &raw); err != nil {
		return nil, err
	}
	return decodeLocations(raw)
}

func decodeLocations(raw json.RawMessage) ([]Location, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var many []Location
	if err := json.Unmarshal(raw, &many); err == nil && (len(many) == 0 || many[0].URI != "") {
		return many, nil
	}
	var one Location
	if err := json.Unmarshal(raw, &one); err == nil && one.URI != "" {
		return []Location{one}, nil
	}
	var links []struct {
		TargetURI            string `json:"targetUri"`
		TargetRange          Range  `json:"targetRange"`
		TargetSelectionRange Range  `json:"targetSelectionRange"`
	}
	if err := json.Unmarshal(raw, &links); err != nil {
		return nil, fmt.Errorf("undecodable location result: %v", err)
	}
	out := make([]Location, 0, len(links))
	for _, link := range links {
		out = append(out, Location{URI: link.TargetURI, Range: link.TargetSelectionRange})
	}
	return out, nil
}

// flattenHover extracts readable text from the three wire shapes of
// hover contents (MarkupContent, MarkedString, or arrays of either).
func flattenHover(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var markup struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &markup); err == nil && markup.Value != "" {
		return markup.Value
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err == nil {
		var joined []string
		for _, part := range parts {
			if text := flattenHover(part); text != "" {
				joined = append(joined, text)
			}
		}
		return strings.Join(joined, "\n")
	}
	return ""
}

// Shutdown performs the polite shutdown/exit sequence and reaps the
// child process, killing it if it lingers.
func (c *Client) Shutdown(ctx context.Context) error {
	_ = c.call(ctx, OpInitialize, "shutdown", nil, nil)
	_ = c.notify("exit", nil)
	c.fail()
	err := c.tr.close()
	if c.cmd != nil {
		done := make(chan struct{})
		go func() {
			_ = c.cmd.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			_ = c.cmd.Process.Kill()
			<-done
		}
	}
	return err
}

// FileURI converts an absolute path to a file:// URI.
func FileURI(path string) string {
	path = filepath.ToSlash(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path // windows drive paths
	}
	return "file://" + path
}

// URIToPath converts a file:// URI back to an OS path.
func URIToPath(uri string) string {
	trimmed := strings.TrimPrefix(uri, "file://")
	if decoded, err := url.PathUnescape(trimmed); err == nil {
		trimmed = decoded
	}
	// Re-attach windows drive letters: /C:/x -> C:/x
	if len(trimmed) >= 3 && trimmed[0] == '/' && trimmed[2] == ':' {
		trimmed = trimmed[1:]
	}
	return filepath.FromSlash(trimmed)
}
