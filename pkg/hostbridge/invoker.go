package hostbridge

/*
#include <stdlib.h>
#include "hostbridge.h"

static int vx_call(vx_invoke_fn fn, const char* name, const char* args, char* out, int outsize) {
	return fn(name, args, out, outsize);
}
*/
import "C"

import (
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/vehicle-extractor/extension/internal/natives"
)

var (
	registered atomic.Pointer[cInvoker]
	onRegister atomic.Pointer[func()]
)

type cInvoker struct {
	fn C.vx_invoke_fn
}

func setInvoker(fn C.vx_invoke_fn) {
	if fn == nil {
		registered.Store(nil)
		return
	}
	registered.Store(&cInvoker{fn: fn})
	if cb := onRegister.Load(); cb != nil {
		go (*cb)()
	}
}

// OnRegister sets a function run in its own goroutine each time the host
// registers a native-call function.
func OnRegister(fn func()) {
	if fn == nil {
		onRegister.Store(nil)
		return
	}
	onRegister.Store(&fn)
}

// HostInvoker forwards native calls to whatever function the host has
// registered. It can be created before registration happens.
type HostInvoker struct{}

var _ natives.Invoker = HostInvoker{}

// Registered reports whether the host has registered its native-call function.
func Registered() bool {
	return registered.Load() != nil
}

// Invoke calls the registered host function. The output buffer is handed to
// the host for the duration of the call only.
func (HostInvoker) Invoke(name, args string, out []byte) (int, error) {
	inv := registered.Load()
	if inv == nil {
		return 0, natives.ErrNoInvoker
	}
	if len(out) > math.MaxInt32 {
		return 0, fmt.Errorf("output buffer too large: %d", len(out))
	}

	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	cArgs := C.CString(args)
	defer C.free(unsafe.Pointer(cArgs))

	var outPtr *C.char
	if len(out) > 0 {
		outPtr = (*C.char)(unsafe.Pointer(&out[0]))
	}

	n := int(C.vx_call(inv.fn, cName, cArgs, outPtr, C.int(len(out))))
	if n < 0 {
		return 0, fmt.Errorf("host returned status %d", n)
	}
	return n, nil
}
