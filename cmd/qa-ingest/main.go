// Package main is the entry point for the campus site ingestion command.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/campus-qa/cmd/qa-ingest/app"
)

func main() {
	app.NewApp().Run()
}
