// Package hostbridge is the C ABI surface loaded by the host runtime.
//
// The host calls RVExtension/RVExtensionArgs with command strings which are
// routed through a dispatcher, and registers its native-call function through
// RVExtensionRegisterInvoker.
package hostbridge

/*
#include <stdlib.h>
#include <string.h>
#include "hostbridge.h"
*/
import "C"

import (
	"unsafe"
)

// called by the host to get the version of the extension
//
//export RVExtensionVersion
func RVExtensionVersion(output *C.char, outputsize C.size_t) {
	loaded()
	replyToSyncCall(Version(), output, outputsize)
}

// called by the host as: "extensionName" callExtension "command|arg|arg"
//
//export RVExtension
func RVExtension(output *C.char, outputsize C.size_t, input *C.char) {
	loaded()
	command, args := splitCommand(C.GoString(input))
	replyToSyncCall(handleCommand(command, args), output, outputsize)
}

// called by the host as: "extensionName" callExtension ["command", ["data"]]
//
//export RVExtensionArgs
func RVExtensionArgs(output *C.char, outputsize C.size_t, input *C.char, argv **C.char, argc C.int) {
	loaded()
	command := C.GoString(input)
	replyToSyncCall(handleCommand(command, parseArgsFromC(argv, argc)), output, outputsize)
}

// called once by the host to hand over its native-call function
//
//export RVExtensionRegisterInvoker
func RVExtensionRegisterInvoker(fn C.vx_invoke_fn) {
	loaded()
	setInvoker(fn)
}

// parseArgsFromC converts C argv array to Go string slice
func parseArgsFromC(argv **C.char, argc C.int) []string {
	if argc <= 0 || argv == nil {
		return nil
	}
	ptrs := unsafe.Slice(argv, int(argc))
	data := make([]string, 0, len(ptrs))
	for _, p := range ptrs {
		data = append(data, C.GoString(p))
	}
	return data
}

// replyToSyncCall copies response into the host's output buffer, truncating
// to fit and always NUL-terminating.
func replyToSyncCall(response string, output *C.char, outputsize C.size_t) {
	if output == nil || outputsize == 0 {
		return
	}
	result := C.CString(response)
	defer C.free(unsafe.Pointer(result))

	size := C.strlen(result)
	if size >= outputsize {
		size = outputsize - 1
	}
	C.memmove(unsafe.Pointer(output), unsafe.Pointer(result), size)
	*(*C.char)(unsafe.Add(unsafe.Pointer(output), size)) = 0
}
