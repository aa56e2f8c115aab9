// The main package for the blog-engine executable.
package main

import (
	"github.com/backlinkoo/blog-engine/cmd"
)

func main() {
	cmd.Execute()
}
