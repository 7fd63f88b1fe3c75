//go:build !gui

package main

func initGUI() {
	panic("melodeus: built without GUI support (rebuild with -tags gui)")
}
