//go:build !linux

package main

import (
	"os"
	"runtime"
)

const audioBackend = "miniaudio"

func init() {
	runtime.LockOSThread()
}

func main() {
	os.Exit(run())
}
