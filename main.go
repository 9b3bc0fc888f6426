package main

import "tnepic-backend/cmd"

func main() {
	cmd.Run()
}
