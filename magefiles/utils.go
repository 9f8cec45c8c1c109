//go:build mage

package main

import (
	"os"
	"os/exec"
	"strings"
)

type cmdOption func(*exec.Cmd)

func withArgs(args ...string) cmdOption {
	return func(c *exec.Cmd) {
		c.Args = append(c.Args, args...)
	}
}

func withStream() cmdOption {
	return func(c *exec.Cmd) {
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
	}
}

func executeCmd(name string, opts ...cmdOption) (string, error) {
	cmd := exec.Command(name)
	for _, opt := range opts {
		opt(cmd)
	}
	if cmd.Stdout != nil {
		return "", cmd.Run()
	}
	out, err := cmd.Output()
	return strings.TrimSpace(string(out)), err
}
