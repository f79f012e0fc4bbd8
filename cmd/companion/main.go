// Command companion runs the realtime voice and screen assistant.
package main

import "github.com/teslashibe/go-companion/internal/cli"

func main() {
	cli.Execute()
}
