package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"github.com/vanchat/vanchat/pkg/chat"
	"github.com/vanchat/vanchat/pkg/config"
	"github.com/vanchat/vanchat/pkg/logger"
	"github.com/vanchat/vanchat/pkg/panel"
	"github.com/vanchat/vanchat/pkg/store"
)

type chatOptions struct {
	profile  string
	message  string
	domain   string
	language string
	skill    string
	fresh    bool
	debug    bool
}

// cliObserver prints everything the session publishes: bot and human
// responses, handoff failures, and panel config updates.
type cliObserver struct {
	store   *store.SQLiteStore
	profile string
}

func (o *cliObserver) OnMessageReceived(msg *chat.APIMessage) {
	out := renderAPIMessage(msg)
	if out == "" {
		return
	}
	fmt.Print(out)
	if o.store != nil {
		for _, line := range transcriptLines(msg) {
			_ = o.store.AppendTranscript(context.Background(), o.profile, line.source, line.text)
		}
	}
}

func (o *cliObserver) OnFailure(err error) {
	var serverErr *chat.ServerError
	if errors.As(err, &serverErr) {
		fmt.Fprintf(os.Stderr, "! server error (%d): %s\n", serverErr.StatusCode, serverErr.Message)
		return
	}
	fmt.Fprintf(os.Stderr, "! %v\n", err)
}

func (o *cliObserver) OnConfigReceived(cfg *panel.Config) {
	if cfg != nil && cfg.ChatPanel != nil && cfg.ChatPanel.Styling != nil && cfg.ChatPanel.Styling.Pace != "" {
		fmt.Fprintf(os.Stderr, "· panel config updated (pace=%s)\n", cfg.ChatPanel.Styling.Pace)
	}
}

func (o *cliObserver) OnBackendEventReceived(eventType string, detail json.RawMessage) {
	if len(detail) > 0 {
		fmt.Fprintf(os.Stderr, "· event %s %s\n", eventType, string(detail))
		return
	}
	fmt.Fprintf(os.Stderr, "· event %s\n", eventType)
}

func buildSession(cfg *config.Config, opts chatOptions, profile store.Profile) (*chat.Session, error) {
	domain := opts.domain
	if domain == "" {
		domain = cfg.Server.Domain
	}
	if domain == "" && cfg.Server.ChatURL == "" {
		return nil, fmt.Errorf("no server domain configured (set server.domain or pass --domain)")
	}

	language := opts.language
	if language == "" {
		language = profile.LanguageCode
	}
	if language == "" {
		language = cfg.Session.LanguageCode
	}

	skill := opts.skill
	if skill == "" {
		skill = cfg.Session.Skill
	}

	userToken := profile.UserToken
	if userToken == "" {
		userToken = cfg.Session.UserToken
	}

	level := cfg.Log.Level
	if opts.debug {
		level = "debug"
	}
	zl, err := newCLILogger(cfg.Log.Format, level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	startOnFail := cfg.Session.StartNewConversationOnResumeFail
	session := chat.NewSession(chat.Options{
		Domain:                              domain,
		ChatURL:                             cfg.Server.ChatURL,
		ConfigURL:                           cfg.Server.ConfigURL,
		FileUploadServiceEndpointURL:        cfg.Server.FileUploadServiceEndpointURL,
		UserToken:                           userToken,
		Skill:                               skill,
		LanguageCode:                        language,
		FilterValues:                        cfg.Session.FilterValues,
		Clean:                               cfg.Session.Clean,
		PollInterval:                        time.Duration(cfg.Session.PollIntervalMS) * time.Millisecond,
		StartNewConversationOnResumeFailure: &startOnFail,
		CertificatePins:                     cfg.Server.CertificatePins,
		Logger:                              zl,
	})
	if len(cfg.Server.CertificatePins) > 0 {
		session.SetCertificatePinning(true)
	}
	return session, nil
}

func runChat(ctx context.Context, opts chatOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := store.NewSQLiteStore(cfg.StorePath())
	if err != nil {
		return err
	}
	defer st.Close()

	profile, err := st.GetProfile(ctx, opts.profile)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if opts.fresh {
		profile = store.Profile{Name: opts.profile}
	}

	session, err := buildSession(cfg, opts, profile)
	if err != nil {
		return err
	}
	defer session.Close()

	obs := &cliObserver{store: st, profile: opts.profile}
	msgSub := session.AddMessageObserver(obs)
	defer msgSub.Cancel()
	cfgSub := session.AddConfigObserver(obs)
	defer cfgSub.Cancel()
	evtSub := session.AddEventObserver(obs)
	defer evtSub.Cancel()

	// Resume continues the stored conversation; with nothing stored it
	// starts a new one through the resume failure policy.
	if profile.ConversationID != "" || profile.UserToken != "" {
		session.SetConversationID(profile.ConversationID)
		if _, err := session.Resume(ctx, nil); err != nil {
			return fmt.Errorf("resume conversation: %w", err)
		}
	} else {
		if _, err := session.Start(ctx, nil); err != nil {
			return fmt.Errorf("start conversation: %w", err)
		}
	}

	saveProfile := func() {
		_ = st.SaveProfile(ctx, store.Profile{
			Name:           opts.profile,
			ConversationID: session.ConversationID(),
			UserToken:      session.UserToken(),
			LanguageCode:   session.LanguageCode(),
		})
	}
	saveProfile()
	defer saveProfile()

	if opts.message != "" {
		if _, err := session.Message(ctx, opts.message); err != nil {
			return err
		}
		// Give human handoff responses a beat to arrive before exit.
		if session.ChatStatus().IsHuman() {
			time.Sleep(time.Duration(cfg.Session.PollIntervalMS) * time.Millisecond)
		}
		return nil
	}

	fmt.Printf("%s connected (conversation %s, language %s)\n", appName, session.ConversationID(), session.LanguageCode())
	fmt.Println("Type /help for commands, Ctrl+C to exit.")
	return interactiveLoop(ctx, session, st, cfg, opts.profile)
}

func interactiveLoop(ctx context.Context, session *chat.Session, st *store.SQLiteStore, cfg *config.Config, profileName string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".vanchat_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			fmt.Fprintf(os.Stderr, "read input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return nil
		}

		if strings.HasPrefix(input, "/") {
			done, err := runSlashCommand(ctx, session, st, cfg, profileName, input)
			if err != nil {
				fmt.Fprintf(os.Stderr, "! %v\n", err)
			}
			if done {
				return nil
			}
			continue
		}

		if session.IsBlocked() {
			fmt.Fprintln(os.Stderr, "! conversation is blocked, message not sent")
			continue
		}
		if max := session.MaxInputChars(); len([]rune(input)) > max {
			fmt.Fprintf(os.Stderr, "! message exceeds %d characters\n", max)
			continue
		}

		_ = st.AppendTranscript(ctx, profileName, string(chat.SourceClient), input)
		if session.ChatStatus() == chat.ChatStatusAssignedToHuman {
			if _, err := session.HumanChatPost(ctx, input); err != nil {
				fmt.Fprintf(os.Stderr, "! %v\n", err)
			}
			continue
		}
		if _, err := session.Message(ctx, input); err != nil {
			fmt.Fprintf(os.Stderr, "! %v\n", err)
		}
	}
}

// runSlashCommand handles the /-prefixed control commands. It returns
// done=true when the loop should exit.
func runSlashCommand(ctx context.Context, session *chat.Session, st *store.SQLiteStore, cfg *config.Config, profileName, input string) (bool, error) {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/help":
		printSlashHelp()
		return false, nil

	case "/status":
		fmt.Printf("  conversation: %s\n", session.ConversationID())
		fmt.Printf("  status:       %s\n", session.ChatStatus())
		fmt.Printf("  language:     %s\n", session.LanguageCode())
		fmt.Printf("  blocked:      %v\n", session.IsBlocked())
		fmt.Printf("  polling:      %v\n", session.IsPolling())
		if van := session.VanID(); van != nil {
			fmt.Printf("  van:          %d\n", *van)
		}
		return false, nil

	case "/stop":
		if _, err := session.Stop(ctx, nil); err != nil {
			return false, err
		}
		fmt.Println("Conversation stopped.")
		return true, nil

	case "/delete":
		if !session.AllowDeleteConversation() {
			return false, fmt.Errorf("server does not allow deleting this conversation")
		}
		if _, err := session.Delete(ctx, nil); err != nil {
			return false, err
		}
		_ = st.DeleteProfile(ctx, profileName)
		fmt.Println("Conversation deleted.")
		return true, nil

	case "/download":
		msg, err := session.Download(ctx, "")
		if err != nil {
			return false, err
		}
		fmt.Println(msg.Download)
		return false, nil

	case "/feedback":
		if len(args) < 2 {
			return false, fmt.Errorf("usage: /feedback <message-id> <up|down>")
		}
		value := chat.FeedbackPositive
		if args[1] == "down" {
			value = chat.FeedbackNegative
		}
		if _, err := session.Feedback(ctx, args[0], value); err != nil {
			return false, err
		}
		fmt.Println("Feedback sent.")
		return false, nil

	case "/rate":
		if len(args) < 1 {
			return false, fmt.Errorf("usage: /rate <-1|0|1> [comment]")
		}
		rating, err := strconv.Atoi(args[0])
		if err != nil {
			return false, fmt.Errorf("rating must be a number: %w", err)
		}
		if _, err := session.ConversationFeedback(ctx, rating, strings.Join(args[1:], " ")); err != nil {
			return false, err
		}
		fmt.Println("Rating sent.")
		return false, nil

	case "/upload":
		if len(args) < 1 {
			return false, fmt.Errorf("usage: /upload <path> [message]")
		}
		return false, uploadAndSend(ctx, session, cfg, args[0], strings.Join(args[1:], " "))

	case "/action":
		if len(args) < 1 {
			return false, fmt.Errorf("usage: /action <link-id>")
		}
		_, err := session.ActionButton(ctx, args[0])
		return false, err

	case "/typing":
		if _, err := session.Typing(ctx); err != nil {
			return false, err
		}
		return false, nil

	case "/history":
		entries, err := st.Transcript(ctx, profileName, 50)
		if err != nil {
			return false, err
		}
		for _, e := range entries {
			fmt.Printf("  [%s] %s: %s\n", e.CreatedAt.Format("15:04"), e.Source, e.Text)
		}
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", cmd)
	}
}

func uploadAndSend(ctx context.Context, session *chat.Session, cfg *config.Config, path, message string) error {
	if session.ChatStatus().IsHuman() && !session.AllowHumanChatFileUpload() {
		return fmt.Errorf("human chat file upload is not allowed")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	var expiry *int
	if cfg.Session.UploadExpirySeconds > 0 {
		expiry = &cfg.Session.UploadExpirySeconds
	}
	files, err := session.UploadFiles(ctx, []chat.FileUpload{{
		Filename: filepath.Base(path),
		MimeType: mimeType,
		Content:  f,
	}}, expiry)
	if err != nil {
		return err
	}
	_, err = session.SendFiles(ctx, files, message)
	return err
}

func printSlashHelp() {
	fmt.Println("  /status                    Show conversation state")
	fmt.Println("  /stop                      Stop the conversation and exit")
	fmt.Println("  /delete                    Delete the conversation and exit")
	fmt.Println("  /download                  Print the server-side transcript")
	fmt.Println("  /feedback <id> <up|down>   Rate a single response")
	fmt.Println("  /rate <-1|0|1> [comment]   Rate the whole conversation")
	fmt.Println("  /upload <path> [message]   Upload a file and send it")
	fmt.Println("  /action <link-id>          Press an action button")
	fmt.Println("  /typing                    Send a typing notification")
	fmt.Println("  /history                   Show the local transcript")
	fmt.Println("  exit                       Leave without stopping the conversation")
}

func runPanel(ctx context.Context, domain string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	session, err := buildSession(cfg, chatOptions{domain: domain}, store.Profile{})
	if err != nil {
		return err
	}
	defer session.Close()

	panelCfg, err := session.GetConfig(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(panelCfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runDownload(ctx context.Context, profileName, out string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := store.NewSQLiteStore(cfg.StorePath())
	if err != nil {
		return err
	}
	defer st.Close()

	profile, err := st.GetProfile(ctx, profileName)
	if err != nil {
		return err
	}
	session, err := buildSession(cfg, chatOptions{}, profile)
	if err != nil {
		return err
	}
	defer session.Close()
	session.SetConversationID(profile.ConversationID)

	msg, err := session.Download(ctx, profile.UserToken)
	if err != nil {
		return err
	}
	if out == "" {
		fmt.Println(msg.Download)
		return nil
	}
	if err := os.WriteFile(out, []byte(msg.Download), 0o644); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", out)
	return nil
}

func runDelete(ctx context.Context, profileName string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := store.NewSQLiteStore(cfg.StorePath())
	if err != nil {
		return err
	}
	defer st.Close()

	profile, err := st.GetProfile(ctx, profileName)
	if err != nil {
		return err
	}
	session, err := buildSession(cfg, chatOptions{}, profile)
	if err != nil {
		return err
	}
	defer session.Close()
	session.SetConversationID(profile.ConversationID)

	if _, err := session.Delete(ctx, nil); err != nil {
		return err
	}
	if err := st.DeleteProfile(ctx, profileName); err != nil {
		return err
	}
	fmt.Printf("Deleted conversation for profile %s\n", profileName)
	return nil
}

func newCLILogger(format, level string) (*zap.Logger, error) {
	if format == "json" {
		return logger.New(level)
	}
	return logger.NewDevelopment(level)
}
