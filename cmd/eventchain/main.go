package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hrygo/eventchain/internal/profile"
)

var (
	v               = profile.NewViper()
	instanceProfile = &profile.Profile{}

	rootCmd = &cobra.Command{
		Use:               "eventchain",
		Short:             "Turn free-text calendar requests into structured events and a confirmation.",
		SilenceUsage:      true,
		PersistentPreRunE: loadProfile,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (yaml, toml or json)")
	flags.String("mode", "dev", `mode of the process, "prod", "dev" or "demo"`)
	flags.String("llm-provider", "openai", "LLM provider: openai, deepseek, siliconflow or ollama")
	flags.String("llm-model", "gpt-4o", "LLM model name")
	flags.String("llm-base-url", "", "OpenAI-compatible base URL, defaults per provider")
	flags.Duration("llm-timeout", 30*time.Second, "timeout of a single model call")
	flags.Float64("confidence-threshold", 0.7, "minimum extraction confidence admitted by the gate")
	flags.String("signer", "nozaki", "name the confirmation is signed with")
	flags.String("timezone", "Local", "IANA timezone relative dates are resolved in")
	flags.Bool("template-confirm", false, "render confirmations from a template instead of the model")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("log-format", "text", "log format: text or json")

	for key, flag := range map[string]string{
		"mode":                 "mode",
		"llm.provider":         "llm-provider",
		"llm.model":            "llm-model",
		"llm.base_url":         "llm-base-url",
		"llm.timeout":          "llm-timeout",
		"confidence_threshold": "confidence-threshold",
		"signer":               "signer",
		"timezone":             "timezone",
		"template_confirm":     "template-confirm",
		"log.level":            "log-level",
		"log.format":           "log-format",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(processCmd, batchCmd, quickCmd, serveCmd)
}

// loadProfile reads .env, the optional config file, the environment and flags into instanceProfile.
func loadProfile(cmd *cobra.Command, _ []string) error {
	profile.LoadDotEnv()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	instanceProfile.FromViper(v)
	if err := instanceProfile.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	slog.SetDefault(instanceProfile.NewLogger())
	slog.Debug("configuration loaded",
		"mode", instanceProfile.Mode,
		"provider", instanceProfile.LLMProvider,
		"model", instanceProfile.LLMModel,
		"config_file", v.ConfigFileUsed())
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
