package hostabi

/*
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"

	"github.com/OCAP2/killcam/internal/host"
)

// called by the host to get the version of the extension
//
//export KillCamVersion
func KillCamVersion(output *C.char, outputsize C.size_t) {
	replyToSyncCall(Config.getVersion(), output, outputsize)
}

// called by the host with a bare command, optionally "command|arg|arg"
//
//export KillCam
func KillCam(output *C.char, outputsize C.size_t, input *C.char) {
	command := C.GoString(input)
	replyToSyncCall(respond(GetDispatcher(), command, nil), output, outputsize)
}

// called by the host with a command and its string arguments
//
//export KillCamArgs
func KillCamArgs(output *C.char, outputsize C.size_t, input *C.char, argv **C.char, argc C.int) {
	command := C.GoString(input)
	args := parseArgsFromC(argv, argc)
	if args == nil {
		args = []string{}
	}
	replyToSyncCall(respond(GetDispatcher(), command, args), output, outputsize)
}

// called by the host to install its occlusion raycast. fn has the C type
// int (*)(const double* origin, const double* dir, double max_distance, double* hit)
// and must return non-zero and fill hit when something solid was hit. A null
// fn disables occlusion. Returns 1 when the probe was installed.
//
//export KillCamRegisterRaycast
func KillCamRegisterRaycast(fn unsafe.Pointer) C.int {
	var p host.Physics = host.NoPhysics{}
	if fn != nil {
		p = RaycastPhysics{Cast: cRaycast(fn)}
	}
	if !Config.installPhysics(p) {
		return 0
	}
	return 1
}

// parseArgsFromC converts C argv array to Go string slice
func parseArgsFromC(argv **C.char, argc C.int) []string {
	if argv == nil || argc <= 0 {
		return nil
	}
	ptrs := unsafe.Slice(argv, int(argc))
	data := make([]string, len(ptrs))
	for i, p := range ptrs {
		data[i] = C.GoString(p)
	}
	return data
}

// replyToSyncCall copies response into the host's buffer of outputsize bytes.
func replyToSyncCall(response string, output *C.char, outputsize C.size_t) {
	if output == nil || outputsize == 0 {
		return
	}
	fillReply(unsafe.Slice((*byte)(unsafe.Pointer(output)), int(outputsize)), response)
}
