package hostbridge

import (
	"sync"
	"sync/atomic"
)

var (
	loadOnce sync.Once
	onLoad   atomic.Pointer[func()]
)

// OnLoad sets the function run once, before the host's first call into the
// library is handled. It must be set before the host can call in, which in
// practice means from a package init.
func OnLoad(fn func()) {
	if fn == nil {
		onLoad.Store(nil)
		return
	}
	onLoad.Store(&fn)
}

func loaded() {
	loadOnce.Do(func() {
		if fn := onLoad.Load(); fn != nil {
			(*fn)()
		}
	})
}
