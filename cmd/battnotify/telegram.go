package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/battnotify/pkg/alert"
	"github.com/charlie0129/battnotify/pkg/config"
	"github.com/charlie0129/battnotify/pkg/monitor"
)

// credentialFlags are the --token and --chat-id flags shared by telegram set and test.
type credentialFlags struct {
	token  string
	chatID string
}

func (f *credentialFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.token, "token", "", "Telegram bot token (default $BATTNOTIFY_TELEGRAM_TOKEN)")
	cmd.Flags().StringVar(&f.chatID, "chat-id", "", "Telegram chat id (default $BATTNOTIFY_TELEGRAM_CHAT_ID)")
}

func (f *credentialFlags) credentials() (config.Credentials, error) {
	c := config.Credentials{Token: f.token, ChatID: f.chatID}
	if c.Token == "" {
		c.Token = os.Getenv("BATTNOTIFY_TELEGRAM_TOKEN")
	}
	if c.ChatID == "" {
		c.ChatID = os.Getenv("BATTNOTIFY_TELEGRAM_CHAT_ID")
	}
	if !c.Complete() {
		return c, monitor.ErrMissingCredentials
	}
	return c, nil
}

func NewTelegramCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "telegram",
		Short:   "Manage Telegram credentials",
		GroupID: gTelegram,
		Long: `Manage the Telegram bot token and chat id used for remote alerts.

Remote alerts are disabled until both are set.`,
	}

	cmd.AddCommand(
		newTelegramSetCommand(),
		newTelegramClearCommand(),
	)

	return cmd
}

func newTelegramSetCommand() *cobra.Command {
	flags := &credentialFlags{}

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Save the Telegram bot token and chat id",
		RunE: func(_ *cobra.Command, _ []string) error {
			creds, err := flags.credentials()
			if err != nil {
				return err
			}

			ret, err := apiClient.SetTelegram(creds)
			if err != nil {
				return fmt.Errorf("failed to save telegram credentials: %w", err)
			}
			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.WithField("token", config.MaskToken(creds.Token)).Info("successfully saved telegram credentials")
			return nil
		},
	}
	flags.register(cmd)

	return cmd
}

func newTelegramClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the Telegram credentials and disable remote alerts",
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.ClearTelegram()
			if err != nil {
				return fmt.Errorf("failed to clear telegram credentials: %w", err)
			}
			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}
			return nil
		},
	}
}

func NewTestCommand() *cobra.Command {
	flags := &credentialFlags{}
	save := false

	cmd := &cobra.Command{
		Use:     "test",
		Short:   "Play the alert sound and send a test message",
		GroupID: gTelegram,
		Long: `Play the alert sound and send a test message to Telegram.

The credentials given here are used even if they have not been saved. Pass
--save to store them as well, like 'telegram set' does.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			creds, err := flags.credentials()
			if err != nil {
				return err
			}

			res, err := apiClient.Test(creds, save)
			if err != nil {
				return err
			}

			cmd.Println(bold("Test result:"))
			printOutcomes(cmd, res.Outcomes)

			if failed := alert.Failed(res.Outcomes); failed > 0 {
				return fmt.Errorf("%d of %d test deliveries failed", failed, len(res.Outcomes))
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&save, "save", false, "also save the credentials")

	return cmd
}
