// Package backend defines the graphics context contract that the ember
// engine is written against, and a registry of named context
// implementations.
//
// Two backends ship with the engine:
//
//   - webgpu: wgpu-native via cogentcore/webgpu, presenting to a native
//     window surface or the browser canvas.
//   - headless: a CPU recording backend that executes the same contract
//     without a device, used by tests and CI.
//
// Backends self-register on import:
//
//	import _ "github.com/gogpu/ember/backend/webgpu"
//	import _ "github.com/gogpu/ember/backend/headless"
//
// and are selected by name or priority via Get, Default, or Select.
package backend
