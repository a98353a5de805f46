package hostabi

/*
typedef int (*killcam_raycast_fn)(const double* origin, const double* dir, double max_distance, double* hit);

static int killcam_call_raycast(killcam_raycast_fn fn, const double* origin, const double* dir, double max_distance, double* hit) {
	return fn(origin, dir, max_distance, hit);
}
*/
import "C"

import (
	"unsafe"

	"github.com/OCAP2/killcam/internal/host"
	"github.com/OCAP2/killcam/pkg/core"
)

// RaycastFunc is an occlusion query answered by the host: the first solid hit
// along dir within maxDistance.
type RaycastFunc func(origin, dir [3]float64, maxDistance float64) ([3]float64, bool)

// RaycastPhysics adapts a RaycastFunc to host.Physics.
type RaycastPhysics struct {
	Cast RaycastFunc
}

// RaycastOcclusion implements host.Physics.
func (p RaycastPhysics) RaycastOcclusion(origin, dir core.Vec3, maxDistance float64) (core.Vec3, bool) {
	if p.Cast == nil || maxDistance <= 0 {
		return core.Vec3{}, false
	}
	hit, ok := p.Cast(origin, dir, maxDistance)
	if !ok {
		return core.Vec3{}, false
	}
	v := core.Vec3(hit)
	if !core.IsFinite(v) {
		return core.Vec3{}, false
	}
	return v, true
}

var _ host.Physics = RaycastPhysics{}

// cRaycast wraps a C callback registered by the host.
func cRaycast(fn unsafe.Pointer) RaycastFunc {
	cfn := C.killcam_raycast_fn(fn)
	return func(origin, dir [3]float64, maxDistance float64) ([3]float64, bool) {
		o := [3]C.double{C.double(origin[0]), C.double(origin[1]), C.double(origin[2])}
		d := [3]C.double{C.double(dir[0]), C.double(dir[1]), C.double(dir[2])}
		var h [3]C.double
		if C.killcam_call_raycast(cfn, &o[0], &d[0], C.double(maxDistance), &h[0]) == 0 {
			return [3]float64{}, false
		}
		return [3]float64{float64(h[0]), float64(h[1]), float64(h[2])}, true
	}
}
