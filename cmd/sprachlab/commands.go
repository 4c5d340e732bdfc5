package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sprachlab/sprachlab/internal/config"
	"github.com/sprachlab/sprachlab/internal/content"
	"github.com/sprachlab/sprachlab/internal/storage"
	"github.com/sprachlab/sprachlab/internal/vocab"
)

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import learner data and content",
}

var importVocabCmd = &cobra.Command{
	Use:   "vocab <file>",
	Short: "Import vocabulary from a CSV or Excel workbook",
	Long: `Import vocabulary from a CSV or Excel workbook.

Columns: word, translation, language (language optional).

Examples:
  sprachlab import vocab wortschatz.xlsx --user user_123
  sprachlab import vocab words.csv --user user_123 --language de`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		language, _ := cmd.Flags().GetString("language")
		if userID == "" {
			return fmt.Errorf("--user is required")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		result, err := vocab.ImportFile(args[0], userID, language, store)
		if err != nil {
			return err
		}

		printSuccess("Imported %d of %d rows", result.Imported, result.Processed)
		for _, reason := range result.Skipped {
			printWarning("skipped: %s", reason)
		}
		return nil
	},
}

var importPassageCmd = &cobra.Command{
	Use:   "passage",
	Short: "Import a reading or listening passage via the running server",
	Long: `Import a reading or listening passage via the running server.

Examples:
  sprachlab import passage --file lesetext.pdf --title "Stadtleben" --skill reading --section 2
  sprachlab import passage --url https://example.de/artikel --skill reading --section 2
  sprachlab import passage --text "Der Zug nach Hamburg..." --skill listening --section 3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		url, _ := cmd.Flags().GetString("url")
		file, _ := cmd.Flags().GetString("file")
		title, _ := cmd.Flags().GetString("title")
		skill, _ := cmd.Flags().GetString("skill")
		section, _ := cmd.Flags().GetInt("section")
		language, _ := cmd.Flags().GetString("language")
		level, _ := cmd.Flags().GetString("level")

		if text == "" && url == "" && file == "" {
			return fmt.Errorf("one of --text, --url, or --file is required")
		}

		req := map[string]any{
			"title":    title,
			"skill":    skill,
			"section":  section,
			"language": language,
			"level":    level,
		}
		switch {
		case url != "":
			req["type"] = "url"
			req["url"] = url
		case file != "":
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			req["type"] = "file"
			req["content"] = base64.StdEncoding.EncodeToString(data)
			req["filename"] = filepath.Base(file)
			if title == "" {
				req["title"] = filepath.Base(file)
			}
		default:
			req["type"] = "text"
			req["content"] = text
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var result map[string]any
		if err := client.postJSON(cmd.Context(), "/api/content/passages", req, &result); err != nil {
			return err
		}

		printSuccess("Imported passage as test %v", result["test_id"])
		return nil
	},
}

func init() {
	importVocabCmd.Flags().String("user", "", "learner id the vocabulary belongs to")
	importVocabCmd.Flags().String("language", "de", "default language for rows without one")

	importPassageCmd.Flags().String("text", "", "passage text")
	importPassageCmd.Flags().String("url", "", "URL to fetch and strip to text")
	importPassageCmd.Flags().String("file", "", "PDF, HTML or text file")
	importPassageCmd.Flags().String("title", "", "title for the test")
	importPassageCmd.Flags().String("skill", "reading", "skill: reading or listening")
	importPassageCmd.Flags().Int("section", 2, "exam section number")
	importPassageCmd.Flags().String("language", "de", "passage language")
	importPassageCmd.Flags().String("level", "B1", "CEFR level")

	importCmd.AddCommand(importVocabCmd)
	importCmd.AddCommand(importPassageCmd)
}

// --- content ---

var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Manage content packs",
}

var contentLoadCmd = &cobra.Command{
	Use:   "load [dir]",
	Short: "Load YAML content packs into storage",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		dir := cfg.Content.Dir
		if len(args) == 1 {
			dir = args[0]
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		printStep("Loading packs from %s...", dir)
		loaded, err := content.LoadDir(dir, store, nil)
		if err != nil {
			return err
		}

		printSuccess("Loaded %d items", loaded)
		return nil
	},
}

func init() {
	contentCmd.AddCommand(contentLoadCmd)
}

// --- join codes ---

var joinCodeCmd = &cobra.Command{
	Use:   "join-code",
	Short: "Manage teacher join codes",
}

var joinCodeCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a join code students redeem at signup",
	RunE: func(cmd *cobra.Command, args []string) error {
		teacherID, _ := cmd.Flags().GetString("teacher")
		role, _ := cmd.Flags().GetString("role")
		maxUses, _ := cmd.Flags().GetInt("max-uses")
		expiresIn, _ := cmd.Flags().GetString("expires-in")
		if teacherID == "" {
			return fmt.Errorf("--teacher is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{
			"teacher_id": teacherID,
			"role":       role,
			"max_uses":   maxUses,
		}
		if expiresIn != "" {
			req["expires_in"] = expiresIn
		}

		var result map[string]any
		if err := client.postJSON(cmd.Context(), "/api/join-codes", req, &result); err != nil {
			return err
		}

		printSuccess("Created code %v (expires %v)", result["code"], result["expires_at"])
		return nil
	},
}

func init() {
	joinCodeCreateCmd.Flags().String("teacher", "", "teacher id the code belongs to")
	joinCodeCreateCmd.Flags().String("role", "student", "role granted on redemption")
	joinCodeCreateCmd.Flags().Int("max-uses", 30, "maximum number of redemptions")
	joinCodeCreateCmd.Flags().String("expires-in", "", "validity duration, e.g. 720h (default 30 days)")

	joinCodeCmd.AddCommand(joinCodeCreateCmd)
}

// --- channel users ---

var channelUserCmd = &cobra.Command{
	Use:   "channel-user",
	Short: "Manage messaging channel identities",
}

var channelUserAddCmd = &cobra.Command{
	Use:   "add <channel> <address> <user-id>",
	Short: "Link a channel address (phone number, chat id) to a learner",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{
			"channel": args[0],
			"address": args[1],
			"user_id": args[2],
		}
		var result map[string]any
		if err := client.postJSON(cmd.Context(), "/api/channel-users", req, &result); err != nil {
			return err
		}

		printSuccess("Linked %s:%s to %s", args[0], args[1], args[2])
		return nil
	},
}

func init() {
	channelUserCmd.AddCommand(channelUserAddCmd)
}

// --- progress ---

var progressCmd = &cobra.Command{
	Use:   "progress <user-id>",
	Short: "Show a learner's progress dashboard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		timeRange, _ := cmd.Flags().GetString("range")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var dashboard struct {
			PrepScore  int                `json:"prep_score"`
			StreakDays int                `json:"streak_days"`
			Skills     map[string]float64 `json:"skill_averages"`
		}
		path := fmt.Sprintf("/api/progress/%s?range=%s", args[0], timeRange)
		if err := client.getJSON(cmd.Context(), path, &dashboard); err != nil {
			return err
		}

		printStatus("Prep score", "%d/100", dashboard.PrepScore)
		printStatus("Streak", "%d days", dashboard.StreakDays)
		skills := make([]string, 0, len(dashboard.Skills))
		for s := range dashboard.Skills {
			skills = append(skills, s)
		}
		sort.Strings(skills)
		for _, s := range skills {
			printStatus(s, "%.0f%%", dashboard.Skills[s])
		}
		return nil
	},
}

func init() {
	progressCmd.Flags().String("range", "week", "time range: today, week, or month")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(ansiBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List valid configuration keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, k := range config.ValidKeys() {
			fmt.Println(k)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configKeysCmd)
}
