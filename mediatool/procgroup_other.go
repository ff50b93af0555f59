//go:build !unix

package mediatool

import "os/exec"

func killGroupOnCancel(cmd *exec.Cmd) {}
