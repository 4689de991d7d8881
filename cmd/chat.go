package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/prep-assistant/internal/chat"
	"github.com/spigell/prep-assistant/internal/logger"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"

	commandClear = "/clear"
	commandExit  = "/exit"
)

var errExit = errors.New("exit requested")

var quitPrompt = promptui.Select{
	Label: "Quit the chat?",
	Items: []string{PromptYes, PromptNo},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask interview preparation questions in an interactive chat",
	Run: func(cmd *cobra.Command, _ []string) {
		runChat(cmd)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().Bool("keep-history", false, "keep the conversation for the next chat session")
	viper.BindPFlag("chat.keep-history", chatCmd.Flags().Lookup("keep-history"))
}

func runChat(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the prep-assistant chat", zap.String("version", version))

	assistant, _, err := newAssistant(ctx, config, logger)
	if err != nil {
		logger.Fatal("preparing the assistant", zap.Error(err))
	}

	history, release, err := newHistory(ctx, config.Chat.History, logger)
	if err != nil {
		logger.Fatal("opening chat history", zap.Error(err))
	}
	defer release()

	controller := chat.NewController(ctx, assistant,
		chat.WithHistory(history, config.Chat.History.Key),
		chat.WithTimeout(config.Chat.Timeout),
		chat.WithKeepHistory(config.Chat.KeepHistory),
		chat.WithNotifier(func(err error) {
			logger.Warn("the assistant could not answer", zap.Error(err))
		}),
		chat.WithLogger(logger),
	)
	defer func() {
		if err := controller.Close(ctx); err != nil {
			logger.Warn("clearing chat history", zap.Error(err))
		}
	}()

	out := cmd.OutOrStdout()
	for _, m := range controller.Messages() {
		printMessage(out, m)
	}
	fmt.Fprintf(out, "Ask about a company, an interview type or a role. %s starts over, %s quits.\n\n", commandClear, commandExit)

	for {
		err := chatTurn(ctx, out, controller)
		if errors.Is(err, errExit) {
			logger.Info("exiting", zap.String("reason", "chat closed"))
			return
		}
		if err != nil {
			logger.Error("chat turn failed", zap.Error(err))
			return
		}
	}
}

func chatTurn(ctx context.Context, out io.Writer, controller *chat.Controller) error {
	input := promptui.Prompt{Label: "You"}

	text, err := input.Run()
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return confirmQuit()
	}
	if err != nil {
		return err
	}

	switch strings.TrimSpace(text) {
	case "":
		return nil
	case commandExit:
		return errExit
	case commandClear:
		if err := controller.Reset(ctx); err != nil {
			return fmt.Errorf("clearing conversation: %w", err)
		}
		fmt.Fprintln(out, "Conversation cleared.")
		return nil
	}

	fmt.Fprintln(out, "Thinking...")

	reply, err := controller.Submit(ctx, text)
	if err != nil {
		return err
	}

	printMessage(out, reply)
	return nil
}

func confirmQuit() error {
	_, answer, err := quitPrompt.Run()
	if err != nil || answer == PromptYes {
		return errExit
	}
	return nil
}

func printMessage(out io.Writer, m chat.Message) {
	if m.Sender == chat.SenderUser {
		fmt.Fprintf(out, "You: %s\n", m.Text)
		return
	}

	fmt.Fprintf(out, "\n%s\n", m.Text)
	if len(m.Sources) > 0 {
		fmt.Fprintln(out, "\nSources:")
		for _, s := range m.Sources {
			fmt.Fprintf(out, "  - %s - %s (%s)\n", s.Company, s.Role, s.ID)
		}
	}
	fmt.Fprintln(out)
}
