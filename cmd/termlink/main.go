// Command termlink opens terminal sessions over SSH or a local PTY.
package main

import "os"

func main() {
	os.Exit(Execute())
}
