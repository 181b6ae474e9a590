package main

import "github.com/frahmantamala/innovation-portal/cmd"

func main() {
	cmd.Execute()
}
