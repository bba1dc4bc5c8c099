package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain/entities/tenant"
	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/services"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/application"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/auth"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/configuration"
)

// runtime is the state shared by every command of one invocation.
type runtime struct {
	envFiles []string
	tenant   string
	jsonOut  bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	conf *configuration.Configuration
	app  application.Application

	// catalog and factory replace the tenants file and the Graph directory in tests.
	catalog *tenant.Catalog
	factory services.DirectoryFactory
}

func newRuntime() *runtime {
	return &runtime{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}
}

func newRootCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "intune-bulk",
		Short:         "Bulk assignment of Intune mobile apps",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.init(cmd.Name() == "serve")
		},
	}
	cmd.SetIn(rt.in)
	cmd.SetOut(rt.out)
	cmd.SetErr(rt.errOut)

	flags := cmd.PersistentFlags()
	flags.StringSliceVar(&rt.envFiles, "env-file", []string{".env", ".env.local"}, "Env files to load before reading the environment")
	flags.StringVar(&rt.tenant, "tenant", "", "Tenant name or identifier (defaults to DEFAULT_TENANT)")
	flags.BoolVar(&rt.jsonOut, "json", false, "Print JSON lines instead of tables")

	cmd.AddCommand(
		newTenantsCmd(rt),
		newAppsCmd(rt),
		newBulkCmd(rt, services.OperationAssign),
		newBulkCmd(rt, services.OperationRemove),
		newRemoveAssignmentCmd(rt),
		newSuggestCmd(rt),
		newExportCmd(rt),
		newServeCmd(rt),
	)
	return cmd
}

// init loads the configuration and the modules. A server has no terminal, so its
// device-code prompts go to the log.
func (rt *runtime) init(serving bool) error {
	if rt.conf == nil {
		conf, err := configuration.New(rt.envFiles...)
		if err != nil {
			return withCode(exitUsage, fmt.Errorf("configuration: %w", err))
		}
		rt.conf = conf
	}
	rt.app = application.New(&application.ApplicationOptions{Logger: rt.conf.Logger()})
	opts := intune.ModuleOptions{
		Catalog:         rt.catalog,
		Factory:         rt.factory,
		Prompter:        rt.devicePrompter(),
		WithControllers: serving,
	}
	if serving {
		opts.Prompter = intune.LogPrompter(rt.app.Logger().WithField("component", "auth"))
	}
	if err := modules.Load(rt.app, modules.BuiltInModules(rt.conf, opts)...); err != nil {
		return withCode(exitUsage, err)
	}
	return nil
}

func (rt *runtime) devicePrompter() auth.Prompter {
	return func(_ context.Context, userCode, verificationURI string) error {
		_, err := fmt.Fprintf(rt.errOut, "To sign in, open %s and enter the code %s\n", verificationURI, userCode)
		return err
	}
}

func (rt *runtime) tenants() *services.TenantService {
	return rt.app.Service(services.TenantService{}).(*services.TenantService)
}

func (rt *runtime) sessions() *services.SessionManager {
	return rt.app.Service(services.SessionManager{}).(*services.SessionManager)
}

func (rt *runtime) bulk() *services.BulkService {
	return rt.app.Service(services.BulkService{}).(*services.BulkService)
}

func (rt *runtime) suggestions() *services.SuggestionService {
	return rt.app.Service(services.SuggestionService{}).(*services.SuggestionService)
}

func (rt *runtime) exporter() *services.ExportService {
	return rt.app.Service(services.ExportService{}).(*services.ExportService)
}

// confirm asks a yes/no question on the terminal. Anything but y/yes declines.
func (rt *runtime) confirm(question string) (bool, error) {
	if _, err := fmt.Fprintf(rt.errOut, "%s [y/N]: ", question); err != nil {
		return false, err
	}
	line, err := bufio.NewReader(rt.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func Execute() {
	rt := newRuntime()
	err := newRootCmd(rt).Execute()
	if rt.conf != nil {
		rt.conf.Unload()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(exitCode(err))
	}
}
