package hostabi

/*
#cgo windows LDFLAGS: -lpsapi
#cgo linux LDFLAGS: -ldl

#include <stdlib.h>

#ifdef _WIN32
#define WIN32_LEAN_AND_MEAN
#include <windows.h>

static char* killcam_module_path() {
	HMODULE mod = NULL;
	DWORD flags = GET_MODULE_HANDLE_EX_FLAG_FROM_ADDRESS | GET_MODULE_HANDLE_EX_FLAG_UNCHANGED_REFCOUNT;
	if (!GetModuleHandleExA(flags, (LPCSTR)killcam_module_path, &mod)) {
		return NULL;
	}
	for (DWORD size = MAX_PATH; size <= 32768; size *= 2) {
		char* buf = (char*)malloc(size);
		if (!buf) {
			return NULL;
		}
		DWORD n = GetModuleFileNameA(mod, buf, size);
		if (n > 0 && n < size) {
			return buf;
		}
		free(buf);
		if (n == 0) {
			return NULL;
		}
	}
	return NULL;
}

#elif defined(__linux__)
#define _GNU_SOURCE
#include <dlfcn.h>
#include <string.h>

static char* killcam_module_path() {
	Dl_info info;
	if (!dladdr((void*)killcam_module_path, &info) || !info.dli_fname) {
		return NULL;
	}
	return strdup(info.dli_fname);
}

#else
static char* killcam_module_path() { return NULL; }
#endif
*/
import "C"

import (
	"errors"
	"unsafe"
)

// ErrNoModulePath is returned when the loader cannot name this library.
var ErrNoModulePath = errors.New("module path unavailable")

// ModulePath returns the absolute path of the DLL or SO this runtime was
// loaded from. The addon folder is its parent.
func ModulePath() (string, error) {
	p := C.killcam_module_path()
	if p == nil {
		return "", ErrNoModulePath
	}
	defer C.free(unsafe.Pointer(p))
	return C.GoString(p), nil
}
