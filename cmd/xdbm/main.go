// Package main provides the xdbm command, a tool for inspecting attribute
// index files.
package main

func main() {
	execute()
}
