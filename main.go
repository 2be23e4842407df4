package main

import "github.com/jake-scott/reolink/cmd"

func main() {
	cmd.Execute()
}
