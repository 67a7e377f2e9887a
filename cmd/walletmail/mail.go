package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	walletmail "github.com/walletmail/client-go"
)

var sendCmd = &cobra.Command{
	Use:   "send <address>",
	Short: "Send an encrypted message",
	Args:  cobra.ExactArgs(1),
	RunE:  runSend,
}

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "List received messages",
	RunE:  runInbox,
}

var sentCmd = &cobra.Command{
	Use:   "sent",
	Short: "List sent messages",
	RunE:  runSent,
}

var readCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Read a message and mark it read",
	Args:  cobra.ExactArgs(1),
	RunE:  runRead,
}

var attachmentsCmd = &cobra.Command{
	Use:   "attachments <id> <out.zip>",
	Short: "Download all attachments of a message as a zip archive",
	Args:  cobra.ExactArgs(2),
	RunE:  runAttachments,
}

var (
	sendSubject string
	sendBody    string
	sendAttach  []string
	inboxUnread bool
)

func init() {
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(inboxCmd)
	rootCmd.AddCommand(sentCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(attachmentsCmd)

	sendCmd.Flags().StringVarP(&sendSubject, "subject", "s", "", "message subject")
	sendCmd.Flags().StringVarP(&sendBody, "body", "b", "", "message body")
	sendCmd.Flags().StringArrayVarP(&sendAttach, "attach", "a", nil, "file to attach (repeatable)")
	inboxCmd.Flags().BoolVar(&inboxUnread, "unread", false, "unread messages only")
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx, cancel := cmdContext()
	defer cancel()

	client, err := ready(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	msg := &walletmail.Compose{
		To:      args[0],
		Subject: sendSubject,
		Body:    sendBody,
	}
	for _, path := range sendAttach {
		f, err := walletmail.FileFromPath(path)
		if err != nil {
			return err
		}
		msg.Attachments = append(msg.Attachments, f)
	}

	id, err := client.Send(ctx, msg)
	if err != nil {
		return err
	}
	fmt.Println("sent", id)
	return nil
}

func printMessages(messages []*walletmail.Message) {
	if len(messages) == 0 {
		fmt.Println("no messages")
		return
	}
	for _, m := range messages {
		flag := " "
		if !m.Read {
			flag = "*"
		}
		subject := m.Subject
		if m.Undecryptable {
			subject = "(undecryptable)"
		}
		fmt.Printf("%s %s  %s  %s  %s\n",
			flag, m.ID, m.CreatedAt.Local().Format("Jan 02 15:04"), m.From, subject)
	}
}

func runInbox(cmd *cobra.Command, args []string) error {
	ctx, cancel := cmdContext()
	defer cancel()

	client, err := ready(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	var opts []walletmail.ListOption
	if inboxUnread {
		opts = append(opts, walletmail.WithUnreadOnly())
	}
	messages, err := client.Inbox(ctx, opts...)
	if err != nil {
		return err
	}
	printMessages(messages)
	return nil
}

func runSent(cmd *cobra.Command, args []string) error {
	ctx, cancel := cmdContext()
	defer cancel()

	client, err := ready(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	messages, err := client.Sent(ctx)
	if err != nil {
		return err
	}
	printMessages(messages)
	return nil
}

func runRead(cmd *cobra.Command, args []string) error {
	ctx, cancel := cmdContext()
	defer cancel()

	client, err := ready(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	msg, err := client.GetMessage(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Println("From:   ", msg.From)
	fmt.Println("Date:   ", msg.CreatedAt.Local().Format("Jan 02 2006 15:04"))
	fmt.Println("Subject:", msg.Subject)
	fmt.Println()
	fmt.Println(msg.Body)
	for _, att := range msg.Attachments {
		fmt.Printf("\n[attachment] %s (%s, %d bytes)\n", att.FileName, att.MimeType, att.SizeBytes)
	}

	if msg.To == client.Address() && !msg.Read {
		if err := client.MarkRead(ctx, msg.ID, true); err != nil {
			return err
		}
	}
	return nil
}

func runAttachments(cmd *cobra.Command, args []string) error {
	ctx, cancel := cmdContext()
	defer cancel()

	client, err := ready(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	msg, err := client.GetMessage(ctx, args[0])
	if err != nil {
		return err
	}

	out, err := os.Create(args[1])
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	failures, err := client.DownloadAllAttachments(ctx, msg, out)
	if err != nil {
		return err
	}
	for _, f := range failures {
		fmt.Fprintf(os.Stderr, "skipped %s: %v\n", f.FileName, f.Err)
	}
	fmt.Println("archive written to", args[1])
	return nil
}
