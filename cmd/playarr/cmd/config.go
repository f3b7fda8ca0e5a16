package cmd

import (
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/playarr/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing playarr configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the configuration",
	Long: `Dump the default configuration values in YAML format.

With --effective the configuration actually in use is printed instead,
after the config file and environment have been applied. Secrets are
masked in that mode.

  playarr config dump > config.yaml

Environment variables use the PLAYARR_ prefix and underscores for nesting.
Example: playback.quality -> PLAYARR_PLAYBACK_QUALITY`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)

	configDumpCmd.Flags().Bool("effective", false, "print the loaded configuration instead of the defaults")
}

// secretKeys are masked when the effective configuration is printed.
var secretKeys = map[string]bool{
	"oauth_token":     true,
	"integrity_token": true,
	"password":        true,
}

// toMap converts a struct to a map keyed by mapstructure tags, formatting
// durations for humans. When mask is set, non-empty secrets are hidden.
func toMap(v any, mask bool) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		if !fieldType.IsExported() {
			continue
		}

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = fieldType.Name
		}

		switch fv := field.Interface().(type) {
		case time.Duration:
			result[key] = fv.String()
		case string:
			if mask && fv != "" && secretKeys[key] {
				result[key] = "********"
			} else {
				result[key] = fv
			}
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(field.Interface(), mask)
			} else {
				result[key] = field.Interface()
			}
		}
	}
	return result
}

func writeConfig(w io.Writer, c *config.Config, effective bool) error {
	yamlData, err := yaml.Marshal(toMap(c, effective))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Fprintln(w, "# playarr Configuration File")
	fmt.Fprintln(w, "# ==========================")
	fmt.Fprintln(w, "#")
	if effective {
		fmt.Fprintln(w, "# Effective values after file and environment overrides.")
	} else {
		fmt.Fprintln(w, "# All values shown below are defaults.")
	}
	fmt.Fprintln(w, "# Duration format: 30s, 5m, 1h")
	fmt.Fprintln(w, "#")
	fmt.Fprintln(w, "# Environment variable overrides:")
	fmt.Fprintln(w, "#   PLAYARR_SERVER_HOST, PLAYARR_SERVER_PORT")
	fmt.Fprintln(w, "#   PLAYARR_PLATFORM_OAUTH_TOKEN, PLAYARR_PLATFORM_INTEGRITY_TOKEN")
	fmt.Fprintln(w, "#   PLAYARR_PLAYBACK_QUALITY, PLAYARR_PLAYBACK_REMOVE_ADS")
	fmt.Fprintln(w, "#   PLAYARR_LOGGING_LEVEL, PLAYARR_LOGGING_FORMAT")
	fmt.Fprintln(w, "#   etc.")
	fmt.Fprintln(w, "#")
	fmt.Fprintln(w, "")
	_, err = w.Write(yamlData)
	return err
}

func runConfigDump(cmd *cobra.Command, _ []string) error {
	effective, _ := cmd.Flags().GetBool("effective")

	c := cfg
	if !effective {
		defaults, err := config.Default()
		if err != nil {
			return err
		}
		c = defaults
	}
	return writeConfig(cmd.OutOrStdout(), c, effective)
}
