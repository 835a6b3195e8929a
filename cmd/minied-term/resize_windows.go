//go:build windows

package main

import "os"

// Windows consoles have no resize signal.
func notifyResize(c chan<- os.Signal) {}
