package main

import "github.com/bassamadnan/xmail/cmd"

func main() {
	cmd.Execute()
}
