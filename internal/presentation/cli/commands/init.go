package commands

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/monetalabs/moneta/internal/infrastructure/config"
	"github.com/monetalabs/moneta/internal/infrastructure/crypto"
	"github.com/monetalabs/moneta/internal/presentation/cli/output"
)

// InitResult holds the result of the init command for JSON output.
type InitResult struct {
	ConfigDir    string `json:"config_dir"`
	ConfigFile   string `json:"config_file"`
	DatabaseFile string `json:"database_file"`
	Initialized  bool   `json:"initialized"`
}

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize moneta configuration",
		Long: `Initialize moneta configuration interactively.

This command creates the ~/.moneta/ directory and generates a
config.yaml file with your sync and assistant settings.

The initialization process will:
  • Create ~/.moneta/ directory
  • Generate ~/.moneta/config.yaml
  • Prompt for the cloud store endpoint and optional assistant API keys`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing configuration")

	return cmd
}

// prompter handles interactive user input.
type prompter struct {
	reader    *bufio.Reader
	formatter *output.Formatter
}

// newPrompter creates a new prompter.
func newPrompter(formatter *output.Formatter) *prompter {
	return &prompter{
		reader:    bufio.NewReader(os.Stdin),
		formatter: formatter,
	}
}

// prompt asks a question and returns the answer (or default if empty).
func (p *prompter) prompt(question, defaultValue string) (string, error) {
	if defaultValue != "" {
		p.formatter.Print("%s [%s]: ", question, defaultValue)
	} else {
		p.formatter.Print("%s: ", question)
	}

	answer, err := p.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return defaultValue, nil
	}
	return answer, nil
}

// promptSecret asks for sensitive input.
func (p *prompter) promptSecret(question string) (string, error) {
	p.formatter.Print("%s: ", question)

	answer, err := p.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	return strings.TrimSpace(answer), nil
}

// promptYesNo asks a yes/no question and returns true for yes.
func (p *prompter) promptYesNo(question string, defaultYes bool) (bool, error) {
	defaultStr := "[y/N]"
	if defaultYes {
		defaultStr = "[Y/n]"
	}

	p.formatter.Print("%s %s: ", question, defaultStr)

	answer, err := p.reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read input: %w", err)
	}

	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer == "" {
		return defaultYes, nil
	}

	return answer == "y" || answer == "yes", nil
}

func runInit(force bool) error {
	// Create formatter - don't use colors for prompts to keep it clean
	format := output.FormatText
	if globalFlags.Output == "json" {
		format = output.FormatJSON
	}

	formatter := output.NewFormatter(
		output.WithFormat(format),
		output.WithColor(format != output.FormatJSON),
	)

	configDir, err := config.DefaultConfigDir()
	if err != nil {
		return fmt.Errorf("could not determine config directory: %w", err)
	}
	configFile := filepath.Join(configDir, "config.yaml")
	databaseFile := filepath.Join(configDir, config.DefaultDatabaseFile)

	// Check if already initialized
	if _, err := os.Stat(configFile); err == nil && !force {
		if format == output.FormatJSON {
			return formatter.JSON(InitResult{
				ConfigDir:    configDir,
				ConfigFile:   configFile,
				DatabaseFile: databaseFile,
				Initialized:  false,
			})
		}
		formatter.Warning("Configuration already exists at %s", configFile)
		formatter.Info("Use --force to overwrite existing configuration")
		return nil
	}

	// For JSON output, skip interactive prompts and use defaults
	if format == output.FormatJSON {
		cfg := config.NewDefaultConfig()
		if err := writeConfig(configDir, configFile, cfg); err != nil {
			return err
		}
		return formatter.JSON(InitResult{
			ConfigDir:    configDir,
			ConfigFile:   configFile,
			DatabaseFile: databaseFile,
			Initialized:  true,
		})
	}

	// Interactive setup
	formatter.Header("Moneta Configuration")
	formatter.Println("")
	formatter.Info("This wizard will help you set up moneta.")
	formatter.Println("")

	p := newPrompter(formatter)

	// Create default config
	cfg := config.NewDefaultConfig()

	// Cloud store configuration
	formatter.SubHeader("Cloud Store")
	formatter.Println("")

	remoteURL, err := p.prompt("Cloud store URL", config.DefaultRemoteBaseURL)
	if err != nil {
		return err
	}
	cfg.Remote.BaseURL = remoteURL

	formatter.Println("")

	// Assistant providers
	formatter.SubHeader("AI Assistant (Optional)")
	formatter.Println("")
	formatter.Println("%s", formatter.Dim("API keys will be stored encrypted in config.yaml"))
	formatter.Println("")

	// Initialize encryptor for API keys
	encryptor, err := crypto.NewEncryptor()
	if err != nil {
		return fmt.Errorf("failed to initialize encryption: %w", err)
	}

	// Gemini
	configureGemini, err := p.promptYesNo("Configure Gemini", false)
	if err != nil {
		return err
	}
	cfg.Chat.Primary.Enabled = false
	if configureGemini {
		apiKey, err := p.promptSecret("Gemini API key")
		if err != nil {
			return err
		}
		if apiKey != "" {
			encryptedKey, err := encryptor.Encrypt(apiKey)
			if err != nil {
				return fmt.Errorf("failed to encrypt Gemini API key: %w", err)
			}
			cfg.Chat.Primary.APIKeyEncrypted = encryptedKey
			cfg.Chat.Primary.Enabled = true
		}
	}

	// OpenRouter
	configureOpenRouter, err := p.promptYesNo("Configure OpenRouter (fallback)", false)
	if err != nil {
		return err
	}
	cfg.Chat.Fallback.Enabled = false
	if configureOpenRouter {
		apiKey, err := p.promptSecret("OpenRouter API key")
		if err != nil {
			return err
		}
		if apiKey != "" {
			encryptedKey, err := encryptor.Encrypt(apiKey)
			if err != nil {
				return fmt.Errorf("failed to encrypt OpenRouter API key: %w", err)
			}
			cfg.Chat.Fallback.APIKeyEncrypted = encryptedKey
			cfg.Chat.Fallback.Enabled = true
		}
	}

	formatter.Println("")

	// Write configuration
	if err := writeConfig(configDir, configFile, cfg); err != nil {
		return err
	}

	formatter.Println("")
	formatter.Success("Configuration initialized successfully!")
	formatter.Println("")
	formatter.Item("Config directory", configDir)
	formatter.Item("Config file", configFile)
	formatter.Item("Database file", databaseFile)
	formatter.Println("")
	formatter.Info("Run 'moneta tx add' to record your first transaction")
	formatter.Info("Run 'moneta login <user-id>' to enable cloud sync")

	return nil
}

// writeConfig creates the config directory and writes the configuration file.
func writeConfig(configDir, configFile string, cfg *config.Config) error {
	loader, err := config.NewLoader(configDir)
	if err != nil {
		return fmt.Errorf("failed to create config loader: %w", err)
	}
	return loader.Save(cfg, configFile)
}
