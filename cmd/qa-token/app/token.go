// Package app provides the admin token command.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/kart-io/campus-qa/cmd/qa-token/app/options"
	"github.com/kart-io/campus-qa/pkg/auth/jwt"
	"github.com/kart-io/campus-qa/pkg/infra/app"
	"github.com/kart-io/campus-qa/pkg/utils/json"
)

const (
	// Name is the name of the application.
	Name = "qa-token"

	commandDesc = `Admin token issuer

Signs a bearer token for the ingestion and cache clearing endpoints of
qa-server. Use the same --jwt.key (and issuer/audience) the server runs with.`
)

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewTokenOptions()
	return app.NewApp(
		app.WithName(Name),
		app.WithShortDescription("Issue an admin bearer token"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

func run(opts *options.TokenOptions) app.RunFunc {
	return func(_ []string) error {
		signer, err := jwt.New(jwt.WithOptions(opts.JWTOptions))
		if err != nil {
			return err
		}
		token, err := signer.Sign(context.Background(), opts.Subject)
		if err != nil {
			return err
		}
		data, err := json.Marshal(token)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(os.Stdout, string(data))
		return err
	}
}
