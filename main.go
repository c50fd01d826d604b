// Command memrhythm allocates memory in a rhythm.
package main

import "github.com/sarchlab/memrhythm/cmd"

func main() {
	cmd.Execute()
}
