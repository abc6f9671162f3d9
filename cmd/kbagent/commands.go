package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/kbagent/internal/agent"
	"github.com/kalambet/kbagent/internal/config"
	"github.com/kalambet/kbagent/internal/document"
)

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send a message to the agent",
	Long: `Send a message to the agent.

Examples:
  kbagent chat "Explain vector search" --mode explainer
  kbagent chat "And how is it indexed?" --conversation 3f2c...`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")
		conversation, _ := cmd.Flags().GetString("conversation")
		extra, _ := cmd.Flags().GetString("context")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := agent.ChatRequest{
			Message:        strings.Join(args, " "),
			ConversationID: conversation,
			AgentMode:      agent.Mode(mode),
			Context:        extra,
		}
		resp, err := client.post(cmd.Context(), "/chat", req)
		if err != nil {
			return err
		}

		var out agent.ChatResponse
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}

		fmt.Println(out.Response)
		printStatus("Conversation", "%s", out.ConversationID)
		printStatus("Mode", "%s", out.AgentMode)
		printStatus("KB results", "%d", out.Metadata.KBResultsCount)
		return nil
	},
}

func init() {
	chatCmd.Flags().String("mode", string(agent.ModeExplainer), "agent mode (summarizer, router, explainer, quizzer)")
	chatCmd.Flags().String("conversation", "", "continue an existing conversation id")
	chatCmd.Flags().String("context", "", "additional context for the agent")
}

// --- summarize ---

var summarizeCmd = &cobra.Command{
	Use:   "summarize [text]",
	Short: "Summarize text or a document",
	Long: `Summarize text or a document.

Examples:
  kbagent summarize "Long text..." --type bullet_points
  kbagent summarize --file ./report.pdf --max-length 150`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		summaryType, _ := cmd.Flags().GetString("type")
		maxLength, _ := cmd.Flags().GetInt("max-length")

		text := strings.Join(args, " ")
		if file != "" {
			if text != "" {
				return fmt.Errorf("pass either text or --file, not both")
			}
			var err error
			text, err = document.ReadText(file)
			if err != nil {
				return err
			}
		}
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("text or --file is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/summarize", agent.SummaryRequest{
			Text:        text,
			SummaryType: agent.SummaryType(summaryType),
			MaxLength:   maxLength,
		})
		if err != nil {
			return err
		}

		var out agent.SummaryResponse
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		fmt.Println(out.Summary)
		return nil
	},
}

func init() {
	summarizeCmd.Flags().String("file", "", "read text from a .txt, .md or .pdf file")
	summarizeCmd.Flags().String("type", string(agent.SummaryBrief), "summary type (brief, detailed, bullet_points)")
	summarizeCmd.Flags().Int("max-length", 0, "approximate maximum summary length in words")
}

// --- quiz ---

var quizCmd = &cobra.Command{
	Use:   "quiz <topic>",
	Short: "Generate a quiz on a topic",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		difficulty, _ := cmd.Flags().GetString("difficulty")
		count, _ := cmd.Flags().GetInt("questions")
		questionType, _ := cmd.Flags().GetString("question-type")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/quiz", agent.QuizRequest{
			Topic:        strings.Join(args, " "),
			Difficulty:   agent.Difficulty(difficulty),
			NumQuestions: count,
			QuestionType: agent.QuestionType(questionType),
		})
		if err != nil {
			return err
		}

		var out agent.QuizResponse
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		fmt.Println(out.QuizContent)
		return nil
	},
}

func init() {
	quizCmd.Flags().String("difficulty", string(agent.DifficultyMedium), "difficulty (easy, medium, hard)")
	quizCmd.Flags().Int("questions", 5, "number of questions (1-20)")
	quizCmd.Flags().String("question-type", string(agent.QuestionMultipleChoice), "question type (multiple_choice, true_false, short_answer)")
}

// --- kb ---

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Query the knowledge base",
}

var kbQueryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Search the knowledge base directly",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		threshold, _ := cmd.Flags().GetFloat64("threshold")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/knowledge-base/query", agent.KnowledgeBaseQuery{
			Query:               strings.Join(args, " "),
			MaxResults:          limit,
			ConfidenceThreshold: &threshold,
		})
		if err != nil {
			return err
		}

		var out agent.KnowledgeBaseResult
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}

		if len(out.Results) == 0 {
			fmt.Printf("No results above %.2f (%d retrieved).\n", threshold, out.TotalResults)
			return nil
		}

		for i, r := range out.Results {
			fmt.Printf("\n%s [score: %.3f]\n", colorize(colorBold, fmt.Sprintf("Result %d", i+1)), r.Score)
			if r.Location != nil && r.Location.S3Location != nil {
				fmt.Printf("  Source: %s\n", r.Location.S3Location.URI)
			}
			text := []rune(r.Content)
			if len(text) > 500 {
				text = append(text[:500], []rune("...")...)
			}
			fmt.Printf("  %s\n", string(text))
		}
		return nil
	},
}

func init() {
	kbQueryCmd.Flags().Int("limit", 5, "maximum number of results (1-20)")
	kbQueryCmd.Flags().Float64("threshold", 0.7, "minimum relevance score")
	kbCmd.AddCommand(kbQueryCmd)
}

// --- conversations ---

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "Manage conversation history",
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		q := url.Values{}
		q.Set("limit", fmt.Sprint(limit))
		q.Set("offset", fmt.Sprint(offset))
		resp, err := client.get(cmd.Context(), "/conversations?"+q.Encode())
		if err != nil {
			return err
		}

		var convs []agent.ConversationSummary
		if err := decodeJSON(resp, &convs); err != nil {
			return err
		}

		if len(convs) == 0 {
			fmt.Println("No conversations found.")
			return nil
		}

		for _, c := range convs {
			fmt.Printf("%s  %s  %d messages\n",
				colorize(colorCyan, c.ID),
				c.UpdatedAt.Format("2006-01-02 15:04:05"),
				c.MessageCount,
			)
		}
		return nil
	},
}

var conversationsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/conversations/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var conv agent.Conversation
		if err := decodeJSON(resp, &conv); err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(conv)
		}

		for _, m := range conv.Messages {
			fmt.Printf("%s %s\n%s\n\n",
				colorize(colorBold, strings.ToUpper(string(m.Role))),
				m.Timestamp.Format("15:04:05"),
				m.Content,
			)
		}
		return nil
	},
}

var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/conversations/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}

		printSuccess("Deleted conversation %s", args[0])
		return nil
	},
}

func init() {
	conversationsListCmd.Flags().Int("limit", 20, "maximum number of conversations to list")
	conversationsListCmd.Flags().Int("offset", 0, "number of conversations to skip")
	conversationsShowCmd.Flags().Bool("json", false, "print the raw JSON document")
	conversationsCmd.AddCommand(conversationsListCmd)
	conversationsCmd.AddCommand(conversationsShowCmd)
	conversationsCmd.AddCommand(conversationsDeleteCmd)
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

		printStatus("File", "%s", config.FilePath())
		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorCyan, "$"+k.EnvVar))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys:\n  " + strings.Join(config.ValidKeys(), "\n  "),
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

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
