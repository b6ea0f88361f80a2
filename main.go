package main

import "github.com/markb/authlite/cmd"

func main() {
	cmd.Execute()
}
