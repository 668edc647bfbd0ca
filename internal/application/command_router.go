package application

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"client-manager-bot/internal/domain/model"
	"client-manager-bot/internal/domain/ports/adapter"
	"client-manager-bot/internal/flow"
)

// flowCommands maps the slash commands that open a conversational flow.
// These are the rate-limited ones; read-only commands are not throttled.
var flowCommands = map[string]flow.Kind{
	"addclient":    flow.KindAddClient,
	"addproduct":   flow.KindAddProduct,
	"delclient":    flow.KindDeleteClient,
	"delproduct":   flow.KindDeleteProduct,
	"updateclient": flow.KindUpdateClient,
	"renew":        flow.KindRenewProduct,
	"restore":      flow.KindRestore,
}

// Limiter is the per-user flow-start budget. A nil Limiter disables
// throttling.
type Limiter interface {
	Allow(ctx context.Context, userID int64, command string) (bool, error)
}

// CommandRouter turns inbound messages into facade calls and flow steps. Each
// transport owns one router wired to its own engine and messenger, so replies
// go back out the way the message came in.
type CommandRouter struct {
	engine  *flow.Engine
	facade  *BotFacade
	msgr    adapter.Messenger
	limiter Limiter
	log     *zerolog.Logger
}

func NewCommandRouter(engine *flow.Engine, facade *BotFacade, msgr adapter.Messenger, limiter Limiter, logger *zerolog.Logger) *CommandRouter {
	compLog := logger.With().Str("component", "CommandRouter").Logger()
	return &CommandRouter{
		engine:  engine,
		facade:  facade,
		msgr:    msgr,
		limiter: limiter,
		log:     &compLog,
	}
}

// ParseCommand splits "/cmd@botname arg arg" into its command and argument
// string. ok is false when text is not a command at all.
func ParseCommand(text string) (command, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	command, args, _ = strings.Cut(text[1:], " ")
	if command == "" {
		return "", "", false
	}
	// Telegram appends the bot's username in group chats.
	command, _, _ = strings.Cut(command, "@")
	return strings.ToLower(command), strings.TrimSpace(args), true
}

// HandleMessage is the single entry point for an inbound message that has
// already been resolved to a domain user.
func (r *CommandRouter) HandleMessage(ctx context.Context, user *model.User, m adapter.Message) error {
	if command, args, ok := ParseCommand(m.Text); ok {
		return r.dispatch(ctx, user, m, command, args)
	}

	routed, err := r.engine.Route(ctx, m)
	if err != nil {
		return err
	}
	if !routed {
		return r.reply(ctx, m.Chat, "I didn't understand that. Send /info to see what I can do.")
	}
	return nil
}

func (r *CommandRouter) dispatch(ctx context.Context, user *model.User, m adapter.Message, command, args string) error {
	if kind, ok := flowCommands[command]; ok {
		allowed, err := r.allow(ctx, user.ID, command)
		if err != nil {
			r.log.Warn().Err(err).Int64("user_id", user.ID).Msg("rate limit check failed, allowing")
		} else if !allowed {
			return r.reply(ctx, m.Chat, "You are sending commands too fast. Wait a minute and try again.")
		}
		return r.engine.StartFlow(ctx, kind, m)
	}

	switch command {
	case "start":
		text, err := r.facade.HandleStart(ctx, user.ID, user.Name)
		return r.replyFrom(ctx, m.Chat, text, err)
	case "info", "help":
		text, err := r.facade.HandleInfo(ctx, user.ID)
		return r.replyFrom(ctx, m.Chat, text, err)
	case "cancel":
		return r.engine.Cancel(ctx, m)
	case "client":
		if args == "" {
			return r.engine.StartFlow(ctx, flow.KindViewClient, m)
		}
		text, err := r.facade.HandleClientDetails(ctx, user.ID, args)
		return r.replyFrom(ctx, m.Chat, text, err)
	case "listclients":
		text, err := r.facade.HandleListClients(ctx, user.ID, args)
		return r.replyFrom(ctx, m.Chat, text, err)
	case "myproducts":
		text, err := r.facade.HandleMyProducts(ctx, user.ID)
		return r.replyFrom(ctx, m.Chat, text, err)
	case "presente":
		text, err := r.facade.HandlePresente(ctx, user.ID, args)
		return r.replyFrom(ctx, m.Chat, text, err)
	case "setname":
		text, err := r.facade.HandleSetName(ctx, user.ID, args)
		return r.replyFrom(ctx, m.Chat, text, err)
	case "setrole":
		text, err := r.facade.HandleSetRole(ctx, user.ID, args)
		return r.replyFrom(ctx, m.Chat, text, err)
	case "linkwa":
		text, err := r.facade.HandleLinkWhatsApp(ctx, user.ID, args)
		return r.replyFrom(ctx, m.Chat, text, err)
	case "stats":
		text, err := r.facade.HandleStats(ctx, user.ID)
		return r.replyFrom(ctx, m.Chat, text, err)
	default:
		return r.reply(ctx, m.Chat, "Unknown command. Send /info for the list of commands.")
	}
}

func (r *CommandRouter) allow(ctx context.Context, userID int64, command string) (bool, error) {
	if r.limiter == nil {
		return true, nil
	}
	return r.limiter.Allow(ctx, userID, command)
}

func (r *CommandRouter) reply(ctx context.Context, chat, text string) error {
	_, err := r.msgr.Send(ctx, chat, text)
	return err
}

// replyFrom sends a facade handler's answer, propagating the handler error
// over a send error.
func (r *CommandRouter) replyFrom(ctx context.Context, chat string, text string, err error) error {
	if err != nil {
		return err
	}
	return r.reply(ctx, chat, text)
}
