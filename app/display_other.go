//go:build !windows

package app

func enableDPIAwareness() {}

func screenSize() (cx, cy int) { return 0, 0 }
