package hostbridge

/*
#cgo windows LDFLAGS: -lpsapi
#cgo linux LDFLAGS: -ldl

#ifdef _WIN32
#define WIN32_LEAN_AND_MEAN
#include <windows.h>
#include <stdlib.h>

static char* vx_module_path() {
    HMODULE module = NULL;
    if (!GetModuleHandleExA(GET_MODULE_HANDLE_EX_FLAG_FROM_ADDRESS |
                            GET_MODULE_HANDLE_EX_FLAG_UNCHANGED_REFCOUNT,
                            (LPCSTR)vx_module_path, &module)) {
        return NULL;
    }
    DWORD size = MAX_PATH;
    char* buf = NULL;
    for (;;) {
        char* grown = (char*)realloc(buf, size);
        if (!grown) {
            free(buf);
            return NULL;
        }
        buf = grown;
        DWORD n = GetModuleFileNameA(module, buf, size);
        if (n == 0) {
            free(buf);
            return NULL;
        }
        if (n < size) {
            return buf;
        }
        size *= 2;
    }
}

#elif defined(__linux__)

#define _GNU_SOURCE
#include <dlfcn.h>
#include <stdlib.h>
#include <string.h>

static char* vx_module_path() {
    Dl_info info;
    if (dladdr((void*)vx_module_path, &info) == 0 || info.dli_fname == NULL) {
        return NULL;
    }
    return strdup(info.dli_fname);
}

#else

#include <stdlib.h>

static char* vx_module_path() { return NULL; }

#endif
*/
import "C"

import (
	"errors"
	"path/filepath"
	"unsafe"
)

// ModulePath returns the absolute path of the shared library this runtime
// was loaded from.
func ModulePath() (string, error) {
	p := C.vx_module_path()
	if p == nil {
		return "", errors.New("unable to resolve module path")
	}
	defer C.free(unsafe.Pointer(p))
	return C.GoString(p), nil
}

// ModuleDir returns the directory holding the shared library, falling back
// to the working directory when it cannot be resolved.
func ModuleDir() string {
	p, err := ModulePath()
	if err != nil {
		return "."
	}
	return filepath.Dir(p)
}
