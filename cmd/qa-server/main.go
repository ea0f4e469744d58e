// Package main is the entry point for the campus QA HTTP service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/campus-qa/cmd/qa-server/app"
)

func main() {
	app.NewApp().Run()
}
