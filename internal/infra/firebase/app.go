// Package firebase bootstraps the Firebase app shared by the identity,
// document store and object storage adapters.
package firebase

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// Settings selects the project and credentials of the Firebase app.
type Settings struct {
	ProjectID       string
	CredentialsFile string
	StorageBucket   string
}

// NewApp initializes a Firebase app. Without a credentials file the
// application default credentials are used.
func NewApp(ctx context.Context, s Settings) (*firebase.App, error) {
	conf := &firebase.Config{
		ProjectID:     s.ProjectID,
		StorageBucket: s.StorageBucket,
	}

	var opts []option.ClientOption
	if s.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(s.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	return app, nil
}

// NewAuthClient returns the Admin SDK auth client of app.
func NewAuthClient(ctx context.Context, app *firebase.App) (*auth.Client, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase auth client: %w", err)
	}
	return client, nil
}
