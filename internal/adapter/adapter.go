package adapter

import (
	"fmt"
	"log/slog"

	"github.com/ReedRawlings/AIJobs/internal/fetch"
	"github.com/ReedRawlings/AIJobs/internal/model"
)

// constructor builds one platform's adapter from a company's board
// config. The board locator is derived from the URL; a URL that does
// not match the platform's pattern fails here, at construction time.
type constructor func(company, displayName, boardURL string, client *fetch.Client, logger *slog.Logger) (model.Adapter, error)

var constructors = map[model.Source]constructor{
	model.SourceGreenhouse: func(company, displayName, boardURL string, client *fetch.Client, logger *slog.Logger) (model.Adapter, error) {
		return NewGreenhouseAdapter(company, displayName, boardURL, client, logger)
	},
	model.SourceLever: func(company, displayName, boardURL string, client *fetch.Client, logger *slog.Logger) (model.Adapter, error) {
		return NewLeverAdapter(company, displayName, boardURL, client, logger)
	},
	model.SourceAshby: func(company, displayName, boardURL string, client *fetch.Client, logger *slog.Logger) (model.Adapter, error) {
		return NewAshbyAdapter(company, displayName, boardURL, client, logger)
	},
	model.SourceWorkday: func(company, displayName, boardURL string, client *fetch.Client, logger *slog.Logger) (model.Adapter, error) {
		return NewWorkdayAdapter(company, displayName, boardURL, client, logger)
	},
}

// New builds the adapter for one configured company, dispatching on the
// source tag. The constructor map is fixed at startup.
func New(source model.Source, company, displayName, boardURL string, client *fetch.Client, logger *slog.Logger) (model.Adapter, error) {
	ctor, ok := constructors[source]
	if !ok {
		return nil, fmt.Errorf("no adapter for source %q", source)
	}
	return ctor(company, displayName, boardURL, client, logger)
}
