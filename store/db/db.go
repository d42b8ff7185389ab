package db

import (
	"github.com/pkg/errors"

	"github.com/svllm/svllm/internal/profile"
	"github.com/svllm/svllm/store"
	"github.com/svllm/svllm/store/db/postgres"
	"github.com/svllm/svllm/store/db/sqlite"
)

// NewDBDriver creates a new storage driver based on the profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown storage driver %q", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
