// gwlbtunctl is a CLI client for inspecting a running gwlbtund daemon's
// tracked flows and liveness over its debug HTTP server.
package main

import "github.com/netplane-oss/gwlbtun/cmd/gwlbtunctl/commands"

func main() {
	commands.Execute()
}
