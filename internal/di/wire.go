//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/ARamos00/nursery-tracker/internal/app"
)

func InitializeApp() (*app.App, error) {
	panic(wire.Build(
		ConfigSet,
		ObservabilitySet,
		DatabaseSet,
		RepositorySet,
		ServiceSet,
		HTTPSet,
		AppSet,
	))
}

func InitializeWorker() (*Worker, error) {
	panic(wire.Build(
		ConfigSet,
		ObservabilitySet,
		DatabaseSet,
		RepositorySet,
		ServiceSet,
		NewWorker,
	))
}
