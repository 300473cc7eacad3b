package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"assetprep/internal/stage"
)

// Access is the permission a directory check requires.
type Access int

const (
	ReadOnly Access = iota
	ReadWrite
)

func (a Access) mode() uint32 {
	if a == ReadWrite {
		return unix.R_OK | unix.W_OK | unix.X_OK
	}
	return unix.R_OK | unix.X_OK
}

func (a Access) String() string {
	if a == ReadWrite {
		return "read/write"
	}
	return "read"
}

// CheckDirectoryAccess verifies that the directory exists and grants access.
func CheckDirectoryAccess(name, path string, access Access) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, access.mode()); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s ok)", path, access)}
}

// FromHealth converts a collaborator health record.
func FromHealth(h stage.Health) Result {
	detail := h.Detail
	if h.Ready && detail == "" {
		detail = "Ready"
	}
	return Result{Name: h.Name, Passed: h.Ready, Detail: detail}
}
