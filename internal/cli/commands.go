package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	icontrol "github.com/lexfrei/go-icontrol"
	"github.com/lexfrei/go-icontrol/observability"
)

const configFlag = "config"

var errInvalidBody = errors.New("request body is not valid JSON")

// NewRootCommand creates the icontrol root command with all subcommands.
func NewRootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "icontrol",
		Short: "Talk to the F5 BIG-IP iControl REST API",
		Long: `icontrol sends requests to the /mgmt/tm/ namespace of an F5 BIG-IP device.

Operations are named by verb and resource path, so "get_sys_dns" performs
GET /mgmt/tm/sys/dns. Settings come from defaults, an optional YAML file,
ICONTROL_* environment variables and flags, in increasing priority.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String(configFlag, "", "Path to a YAML config file")
	flags.String("host", "", "Device address without scheme")
	flags.String("username", "", "Basic auth username")
	flags.String("password", "", "Basic auth password")
	flags.Bool("insecure", false, "Skip TLS certificate verification")
	flags.Duration("timeout", icontrol.DefaultTimeout, "Per-request timeout")
	flags.Duration("post-request-delay", 0, "Pause after every request")
	flags.Int("max-attempts", icontrol.DefaultMaxAttempts, "Total attempts for transient failures")
	flags.Duration("not-ready-wait", icontrol.DefaultNotReadyWait, "Wait before retrying a malformed JSON response")
	flags.Duration("max-retry-wait", icontrol.DefaultMaxRetryWait, "Upper bound of the backoff between retries")
	flags.Int("rate-limit", 0, "Maximum requests per minute (0 = unlimited)")
	flags.Bool("verbose", false, "Debug logging to stderr")

	root.AddCommand(
		newCallCommand(),
		newRequestCommand(),
		newVersionCommand(version),
	)

	return root
}

func newCallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "call <operation> [json-body]",
		Short: "Perform an operation named like get_sys_dns",
		Example: `  # GET /mgmt/tm/sys/dns
  icontrol call get_sys_dns

  # POST /mgmt/tm/ltm/pool
  icontrol call post_ltm_pool '{"name":"web","monitor":"http"}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := bodyOptions(args[1:])
			if err != nil {
				return err
			}

			client, err := newClient(cmd)
			if err != nil {
				return err
			}

			result, err := client.Call(cmd.Context(), args[0], opts...)
			if err != nil {
				return errors.Wrapf(err, "call %s", args[0])
			}

			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
}

func newRequestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "request <METHOD> <path> [json-body]",
		Short: "Perform a request with an explicit method and path",
		Example: `  icontrol request GET /mgmt/tm/sys/version
  icontrol request PATCH /mgmt/tm/sys/dns '{"nameServers":["10.0.0.53"]}'`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			method := strings.ToUpper(args[0])
			switch method {
			case http.MethodGet, http.MethodDelete, http.MethodPost, http.MethodPut, http.MethodPatch:
			default:
				return errors.Wrapf(icontrol.ErrUnsupportedOperation, "method %q", args[0])
			}

			opts, err := bodyOptions(args[2:])
			if err != nil {
				return err
			}

			client, err := newClient(cmd)
			if err != nil {
				return err
			}

			resp, err := client.Do(cmd.Context(), method, args[1], opts...)
			if err != nil {
				return errors.Wrap(err, "request")
			}

			return writeJSON(cmd.OutOrStdout(), resp.Body)
		},
	}
}

func newVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "icontrol %s\n", version)
		},
	}
}

func newClient(cmd *cobra.Command) (*icontrol.Client, error) {
	path, err := cmd.Flags().GetString(configFlag)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config flag")
	}

	cfg, err := LoadConfig(path, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.LogLevel()}))

	client, err := icontrol.NewWithConfig(cfg.ClientConfig(logger, observability.NoopMetricsRecorder()))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create client")
	}

	return client, nil
}

func bodyOptions(args []string) ([]icontrol.RequestOption, error) {
	if len(args) == 0 {
		return nil, nil
	}

	raw := json.RawMessage(args[0])
	if !json.Valid(raw) {
		return nil, errInvalidBody
	}

	return []icontrol.RequestOption{icontrol.WithBody(raw)}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "failed to write output")
	}
	return nil
}
