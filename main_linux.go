//go:build linux

package main

import "os"

const audioBackend = "pulseaudio"

func main() {
	os.Exit(run())
}
