package main

import "github.com/whatnick/frontend-deployment/deployctl/cmd"

func main() {
	cmd.Execute()
}
