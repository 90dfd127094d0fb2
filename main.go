package main

import "carte-manager/cmd"

func main() {
	cmd.Execute()
}
