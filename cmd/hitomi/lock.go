package cli

import (
	"fmt"
	"os"
)

// writePID records the owner in a freshly locked file.
func writePID(file *os.File) {
	file.Truncate(0)
	file.Seek(0, 0)
	fmt.Fprintf(file, "%d\n", os.Getpid())
	file.Sync()
}
