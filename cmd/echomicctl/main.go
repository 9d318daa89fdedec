// Command echomicctl inspects shortcuts, recordings and session history
// without starting the desktop app.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
