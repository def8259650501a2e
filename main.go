package main

import "github.com/zlnvch/layerdeck/cmd"

func main() {
	cmd.Execute()
}
