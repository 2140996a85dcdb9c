package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"carcheck/internal/lookup"
	"carcheck/internal/vehicle"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	flagAll           = "all"
	flagJson          = "json"
	flagFields        = "fields"
	flagImage         = "image"
	flagImageShow     = "image-show"
	flagImageFilename = "image-filename"
	flagHttpProxy     = "http-proxy"
	flagHttpsProxy    = "https-proxy"
	flagVerbose       = "verbose"
	flagDestination   = "destination"
	flagConfig        = "config"
	flagTimeout       = "timeout"
	flagDumpHttp      = "dump-http"
)

type rootFlags struct {
	all       bool
	json      bool
	image     bool
	imageShow bool
	verbose   bool
	config    string
	timeout   time.Duration

	imageFilename string
	httpProxy     string
	httpsProxy    string
	destination   string
	dumpHttp      string

	// attribute flags and --fields entries in command line order
	fields fieldOrder
}

func NewRootCmd() *cobra.Command {
	cmd, _ := newRootCmd()
	return cmd
}

func newRootCmd() (*cobra.Command, *rootFlags) {
	f := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "carcheck <registration>[,<registration>...]",
		Short: "carcheck looks up UK vehicle registrations.",
		Long: `carcheck looks up UK vehicle registrations on a public vehicle check site.

For every registration it can print all attributes of the vehicle, print a
subset of them in the order the flags were given, export them to JSON, and
download (and open) the vehicle's image.

Images are compared against the site's "no image" placeholder to skip them.
The bundled reference is only a stand-in: set placeholder_path in
carcheck.json5 to a copy of the site's placeholder, otherwise placeholder
images are saved like genuine ones.`,
		Example: `  carcheck AB12CDE --all
  carcheck AB12CDE,XY99ZZZ --model --make --image
  carcheck AB12CDE --fields colour,year --json -d exports/`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// a missing .env is fine
			_ = godotenv.Load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildRequest(f)
			if err != nil {
				if errors.Is(err, lookup.ErrNoOperation) {
					_ = cmd.Usage()
				}
				return err
			}

			var registrations []string
			for _, arg := range args {
				registrations = append(registrations, lookup.ParseRegistrations(arg)...)
			}
			if len(registrations) == 0 {
				_ = cmd.Usage()
				return fmt.Errorf("no registration given")
			}

			cfg, err := resolveConfig(f.config, os.LookupEnv, configFromFlags(cmd.Flags(), f))
			if err != nil {
				return err
			}
			return run(cmd.Context(), runOptions{
				Registrations: registrations,
				Request:       req,
				Config:        cfg,
				Verbose:       f.verbose,
				Out:           cmd.OutOrStdout(),
				Log:           cmd.ErrOrStderr(),
			})
		},
	}

	flags := cmd.Flags()
	flags.SortFlags = false

	flags.BoolVarP(&f.all, flagAll, "a", false, "Print every attribute of the vehicle.")
	flags.BoolVarP(&f.json, flagJson, "j", false, "Export every attribute to <destination>/<registration>.json.")

	for _, field := range vehicle.Fields {
		shorthand := ""
		if field == vehicle.FieldMake {
			shorthand = "m"
		}
		flag := flags.VarPF(
			&fieldFlag{field: field, order: &f.fields},
			field.FlagName(), shorthand,
			fmt.Sprintf("Print the %s of the vehicle.", field),
		)
		flag.NoOptDefVal = "true"
	}
	flags.VarP(&fieldsFlag{order: &f.fields}, flagFields, "f", fmt.Sprintf(
		"Print these attributes in order, can be repeated (any of: %s).", strings.Join(fieldFlagNames(), ", "),
	))

	flags.BoolVarP(&f.image, flagImage, "i", false, "Download the vehicle image if there is a genuine one.")
	flags.BoolVarP(&f.imageShow, flagImageShow, "s", false, "Download the vehicle image and open it, implies --image.")
	flags.StringVar(&f.imageFilename, flagImageFilename, "", `Filename of the downloaded image, "{reg}" is replaced with the registration.`)

	flags.StringVar(&f.httpProxy, flagHttpProxy, "", "Proxy for http requests, ex. http://host:port.")
	flags.StringVar(&f.httpsProxy, flagHttpsProxy, "", "Proxy for https requests, ex. http://host:port.")
	flags.StringVarP(&f.destination, flagDestination, "d", "", `Directory images and exports are written to (default "output/").`)
	flags.DurationVar(&f.timeout, flagTimeout, 0, "Give up on a request after this long, 0 waits indefinitely.")
	flags.StringVar(&f.dumpHttp, flagDumpHttp, "", "Write every HTTP request and response to this directory.")
	flags.StringVar(&f.config, flagConfig, "", "Path to a json5 config file (default: nearest carcheck.json5).")
	flags.BoolVarP(&f.verbose, flagVerbose, "v", false, "Print status messages and debug logs.")

	return cmd, f
}

func fieldFlagNames() []string {
	names := make([]string, len(vehicle.Fields))
	for i, field := range vehicle.Fields {
		names[i] = field.FlagName()
	}
	return names
}

// configFromFlags is the configuration given on the command line, fields of flags
// that weren't set stay empty.
func configFromFlags(flags *pflag.FlagSet, f *rootFlags) Config {
	var out Config
	if flags.Changed(flagHttpProxy) {
		out.HttpProxy = f.httpProxy
	}
	if flags.Changed(flagHttpsProxy) {
		out.HttpsProxy = f.httpsProxy
	}
	if flags.Changed(flagDestination) {
		out.Destination = f.destination
	}
	if flags.Changed(flagImageFilename) {
		out.ImageFilename = f.imageFilename
	}
	if flags.Changed(flagDumpHttp) {
		out.DumpHttp = f.dumpHttp
	}
	if flags.Changed(flagTimeout) {
		out.Timeout = f.timeout.String()
	}
	return out
}
