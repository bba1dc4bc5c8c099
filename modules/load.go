package modules

import (
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/application"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/configuration"
)

// BuiltInModules returns the modules every host loads.
func BuiltInModules(cfg *configuration.Configuration, opts intune.ModuleOptions) []application.Module {
	opts.Config = cfg
	return []application.Module{
		intune.NewModule(&opts),
	}
}

func Load(app application.Application, externalModules ...application.Module) error {
	return application.LoadModules(app, externalModules...)
}
