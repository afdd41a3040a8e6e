package hostbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vehicle-extractor/extension/internal/dispatcher"
	"github.com/vehicle-extractor/extension/internal/util"
)

var (
	mu         sync.RWMutex
	version    = "No version set"
	dispatch   *dispatcher.Dispatcher
	commandCtx = context.Background()
)

// SetVersion sets the string returned by RVExtensionVersion and :VERSION:.
func SetVersion(v string) {
	mu.Lock()
	defer mu.Unlock()
	version = v
}

// Version returns the configured version string.
func Version() string {
	mu.RLock()
	defer mu.RUnlock()
	return version
}

// SetDispatcher sets the dispatcher that handles host commands.
func SetDispatcher(d *dispatcher.Dispatcher) {
	mu.Lock()
	defer mu.Unlock()
	dispatch = d
}

// SetContext sets the context passed to command handlers.
func SetContext(ctx context.Context) {
	mu.Lock()
	defer mu.Unlock()
	commandCtx = ctx
}

func current() (*dispatcher.Dispatcher, context.Context) {
	mu.RLock()
	defer mu.RUnlock()
	return dispatch, commandCtx
}

// splitCommand separates "cmd|a|b" into the command and its arguments.
func splitCommand(input string) (string, []string) {
	parts := strings.Split(input, "|")
	if len(parts) == 1 {
		return parts[0], nil
	}
	return parts[0], parts[1:]
}

// handleCommand routes one host command and formats the reply. Quoted
// arguments are unquoted first.
func handleCommand(command string, args []string) string {
	for i, a := range args {
		args[i] = util.Unquote(a)
	}
	d, ctx := current()
	if d == nil || !d.HasHandler(command) {
		return formatDispatchResponse(nil, fmt.Errorf("no handler registered for %s", command))
	}
	result, err := d.Dispatch(ctx, dispatcher.Event{
		Command:   command,
		Args:      args,
		Timestamp: time.Now(),
	})
	return formatDispatchResponse(result, err)
}

// formatDispatchResponse renders a result as a host array literal:
// ["ok"], ["ok", value] or ["error", message]. Strings are quoted with
// embedded quotes doubled; everything else is encoded as JSON, which the
// host parses as array and number literals.
func formatDispatchResponse(result any, err error) string {
	if err != nil {
		return fmt.Sprintf(`["error", %s]`, quote(err.Error()))
	}
	if result == nil {
		return `["ok"]`
	}
	if s, ok := result.(string); ok {
		return fmt.Sprintf(`["ok", %s]`, quote(s))
	}
	b, jerr := json.Marshal(result)
	if jerr != nil {
		return fmt.Sprintf(`["error", %s]`, quote(jerr.Error()))
	}
	return fmt.Sprintf(`["ok", %s]`, b)
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
