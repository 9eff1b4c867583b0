package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hirelinehq/hireline/internal/ai/gemini"
	"github.com/hirelinehq/hireline/internal/conversation"
	"github.com/hirelinehq/hireline/internal/engine"
	"github.com/hirelinehq/hireline/internal/gate"
	"github.com/hirelinehq/hireline/internal/hours"
	"github.com/hirelinehq/hireline/internal/knowledge"
	"github.com/hirelinehq/hireline/internal/logger"
	"github.com/hirelinehq/hireline/internal/prompt"
	"github.com/hirelinehq/hireline/internal/resume"
	"github.com/hirelinehq/hireline/internal/secrets"
	"github.com/hirelinehq/hireline/internal/store"
	"github.com/hirelinehq/hireline/internal/util"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation session against the live engine",
	Long: `chat runs the conversation engine behind a local prompt instead of a
channel transport. Messages go through the same gate, state machine and
model calls the production transports use. Send a resume with
'/resume <path>', inspect state with '/state', leave with '/exit'.`,
	Run: func(cmd *cobra.Command, _ []string) {
		chat(cmd)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().String("platform", conversation.PlatformTelegram, "platform to impersonate (telegram or whatsapp)")
	chatCmd.Flags().String("user", "local", "platform user id for this session")
	chatCmd.Flags().String("name", "", "display name handed to the engine")
}

// chat wires the full engine and runs the interactive loop.
func chat(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the hireline chat session", zap.String("version", version))

	gemCfg := geminiConfig(config)
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: gemCfg.APIKey,
		File:  gemCfg.APIKeyFile,
	})
	if err != nil {
		logger.Fatal("loading gemini api key",
			zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY_FILE environment variable or the 'ai.gemini.api-key' key in the configuration file"),
		)
	}

	client, err := gemini.NewClient(ctx, apiKey, gemCfg.Model)
	if err != nil {
		logger.Fatal("creating gemini client", zap.Error(err))
	}

	repo, pg := openRepository(ctx, config, logger)
	defer repo.Close()

	ks, err := newKnowledgeStore(config, pg, logger)
	if err != nil {
		logger.Fatal("building knowledge store", zap.Error(err))
	}
	if pg != nil {
		if err := ks.Refresh(ctx); err != nil {
			logger.Warn("initial knowledge refresh failed, serving seed defaults", zap.Error(err))
		}
	}

	var searcher *knowledge.Searcher
	if config.AI != nil && config.AI.Embeddings {
		searcher = knowledge.NewSearcher(ks, client, logger)
	}
	matcher := knowledge.NewMatcher(ks, searcher, logger)
	tracker := conversation.NewTracker(store.Conversations(repo), logger)

	engineCfg := engine.Config{}
	if config.AI != nil {
		engineCfg.MaxTokens = config.AI.MaxTokens
		engineCfg.LLMTimeout = config.AI.Timeout
	}
	eng := engine.New(engine.Deps{
		Tracker:            tracker,
		Knowledge:          ks,
		Builder:            prompt.New(ks, searcher, logger),
		UserDetectors:      conversation.NewUserChain(matcher, logger),
		AssistantDetectors: conversation.NewAssistantChain(ks, logger),
		Matcher:            matcher,
		Completer:          client,
		Screener:           gemini.NewScreener(client, logger, gemCfg.MaxLogLength),
		Repository:         repo,
		Logger:             logger,
	}, engineCfg)

	window, err := newWindow(config)
	if err != nil {
		logger.Fatal("building operating hours window", zap.Error(err))
	}
	logger.Info("operating hours", zap.String("window", window.String()))

	keeper := newGate(config)

	group, gctx := errgroup.WithContext(ctx)
	if pg != nil {
		group.Go(func() error {
			if err := ks.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	platform, _ := cmd.Flags().GetString("platform")
	userID, _ := cmd.Flags().GetString("user")
	name, _ := cmd.Flags().GetString("name")
	session := chatSession{
		engine:    eng,
		tracker:   tracker,
		gate:      keeper,
		window:    window,
		recruiter: ks.Snapshot().Company.RecruiterName,
		inbound: engine.Inbound{
			Key:         conversation.Key{Platform: platform, UserID: userID},
			DisplayName: name,
		},
	}
	group.Go(func() error {
		defer stop()
		return session.loop(gctx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("chat session failed", zap.Error(err))
	}
	logger.Info("chat session closed")
}

type chatSession struct {
	engine    *engine.Engine
	tracker   *conversation.Tracker
	gate      *gate.Gate
	window    *hours.Window
	recruiter string
	inbound   engine.Inbound
}

func (s *chatSession) loop(ctx context.Context) error {
	input := promptui.Prompt{Label: s.inbound.Key.UserID}
	for ctx.Err() == nil {
		text, err := input.Run()
		if err != nil {
			// ^C / ^D end the session, not the process with a failure.
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		text = strings.TrimSpace(text)
		switch {
		case text == "/exit" || text == "exit":
			return nil
		case text == "/state":
			s.printState()
			continue
		case strings.HasPrefix(text, "/resume "):
			s.sendResume(ctx, strings.TrimSpace(strings.TrimPrefix(text, "/resume ")))
			continue
		}

		if !s.window.Open() {
			fmt.Printf("(outside operating hours %s, no reply)\n", s.window)
			continue
		}
		switch decision := s.gate.Check(s.inbound.Key.UserID, text); decision {
		case gate.RateLimited:
			fmt.Println(gate.RateLimitedNotice)
			continue
		case gate.Allowed:
		default:
			fmt.Printf("(message dropped: %s)\n", decision)
			continue
		}

		in := s.inbound
		in.Text = text
		s.deliver(ctx, s.engine.HandleText(ctx, in))
	}
	return ctx.Err()
}

func (s *chatSession) sendResume(ctx context.Context, path string) {
	if !resume.Supported(path) {
		fmt.Println("(unsupported file type)")
		return
	}
	doc, err := resume.ExtractFile(path)
	if err != nil {
		fmt.Printf("(could not read resume: %s)\n", err)
		return
	}
	if !doc.Usable() {
		fmt.Println("(too little text extracted to screen; is this a scanned document?)")
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("(could not read resume: %s)\n", err)
		return
	}

	in := s.inbound
	in.File = &engine.File{Data: data, Filename: doc.Filename}
	s.deliver(ctx, s.engine.HandleResume(ctx, in, doc.Text))
}

func (s *chatSession) printState() {
	state, ok := s.tracker.Peek(s.inbound.Key)
	if !ok {
		fmt.Println("(no conversation yet)")
		return
	}
	fmt.Println(state.Summary())
}

// deliver renders the reply parts with their human-pacing delays, like a
// real transport would.
func (s *chatSession) deliver(ctx context.Context, reply *engine.Reply) {
	for _, part := range reply.Parts {
		if err := util.WaitFor(ctx, part.Delay); err != nil {
			return
		}
		fmt.Printf("%s: %s\n", s.recruiter, part.Text)
	}
}

// openRepository returns the Postgres repository when a DSN is configured,
// the in-memory one otherwise. The second return value is non-nil only for
// Postgres, which doubles as the knowledge override source.
func openRepository(ctx context.Context, config *Config, logger *zap.Logger) (store.Repository, *store.Postgres) {
	db := config.Database
	if db == nil || strings.TrimSpace(db.URL) == "" {
		logger.Info("no database configured, conversation state is memory-only")
		return store.NewMemory(), nil
	}
	pg, err := store.OpenPostgres(ctx, db.URL, db.ResumeDir, logger)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	return pg, pg
}

func newKnowledgeStore(config *Config, source knowledge.Source, logger *zap.Logger) (*knowledge.Store, error) {
	var opts []knowledge.Option
	if source != nil {
		opts = append(opts, knowledge.WithSource(source))
	}
	if kc := config.Knowledge; kc != nil {
		if kc.RefreshInterval > 0 {
			opts = append(opts, knowledge.WithRefreshInterval(kc.RefreshInterval))
		}
		if kc.RecruiterName != "" {
			opts = append(opts, knowledge.WithRecruiterName(kc.RecruiterName))
		}
		if kc.FormURL != "" {
			opts = append(opts, knowledge.WithFormURL(kc.FormURL))
		}
	}
	return knowledge.New(logger, opts...)
}

func newWindow(config *Config) (*hours.Window, error) {
	hc := config.Hours
	if hc == nil {
		hc = &HoursConfig{}
	}
	timezone := hc.Timezone
	if timezone == "" {
		timezone = hours.DefaultTimezone
	}
	start := hc.Start
	if start == "" {
		start = hours.DefaultStart
	}
	end := hc.End
	if end == "" {
		end = hours.DefaultEnd
	}
	return hours.New(timezone, start, end, hours.Disabled(hc.Disabled))
}

func newGate(config *Config) *gate.Gate {
	gc := config.Gate
	if gc == nil {
		return gate.New()
	}
	return gate.New(
		gate.WithRateLimit(gc.RateLimit, gc.RateWindow),
		gate.WithBlockedUsers(gc.Blocked),
		gate.WithWhitelist(gc.WhitelistEnabled, gc.Whitelist),
	)
}

func geminiConfig(config *Config) GeminiConfig {
	if config.AI == nil || config.AI.Gemini == nil {
		return GeminiConfig{}
	}
	return *config.AI.Gemini
}
