// Package process provides the default runtime: executables are started
// directly with os/exec and terminated either through the retained handle or
// by image name.
//
// Console suppression and reaping differ per platform. On Windows children
// are created with CREATE_NO_WINDOW and, when the spec asks for it, inside a
// job object that kills them once tether exits. On Linux children get their
// own process group and a parent-death signal. Other Unix systems get the
// process group only, so a child may outlive a host that crashed.
//
// Kill-by-image matches every process on the system with the same executable
// name, not only children started by this runtime. Callers that need precise
// termination should use the handle returned by Spawn instead.
package process
