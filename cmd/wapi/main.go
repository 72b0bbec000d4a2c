package main

import "github.com/ambiyansyah-risyal/wapi/internal/cli"

func main() {
	cli.Execute()
}
