// Package main is the entry point for the admin token command.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/campus-qa/cmd/qa-token/app"
)

func main() {
	app.NewApp().Run()
}
