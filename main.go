package main

import "github.com/timvw/plan-relay/cmd"

func main() {
	cmd.Execute()
}
