//go:build unix

package siad

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// sysProcAttr runs the child as the caller's effective user and group, in its
// own process group so a terminal interrupt reaches the supervisor first.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid: true,
		Credential: &syscall.Credential{
			Uid:         uint32(unix.Geteuid()),
			Gid:         uint32(unix.Getegid()),
			NoSetGroups: true,
		},
	}
}
