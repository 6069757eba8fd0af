package main

import "github.com/webhookx-io/mpack/cmd"

func main() {
	cmd.Execute()
}
