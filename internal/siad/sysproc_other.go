//go:build !unix

package siad

import "syscall"

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}
