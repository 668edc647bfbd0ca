// Package flow implements the multi-step conversational engine shared by the
// bot transports: per-user sessions, step routing, input validation and the
// terminal atomic commit of each operation.
package flow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"client-manager-bot/internal/domain"
	"client-manager-bot/internal/domain/model"
	"client-manager-bot/internal/domain/ports/adapter"
	"client-manager-bot/internal/infra/metrics"
)

// Outcome is a step handler's verdict on the session.
type Outcome int

const (
	// OutcomeStay re-prompts the same step; the handler already sent a hint.
	OutcomeStay Outcome = iota
	// OutcomeContinue advances the session (the handler mutated Step).
	OutcomeContinue
	// OutcomeDone terminates the flow after a successful commit.
	OutcomeDone
	// OutcomeAbort terminates the flow without a commit.
	OutcomeAbort
)

// ClientService is the persistence boundary the flows commit through. The two
// multi-entity writes (CreateWithFirstProduct, RestoreBackup) are atomic:
// all rows or none.
type ClientService interface {
	Find(ctx context.Context, query string, ownerScope *int64) (*model.Client, error)
	List(ctx context.Context, search string, ownerScope *int64) ([]*model.Client, error)
	Products(ctx context.Context, clientID string, ownerScope *int64) ([]*model.ClientProduct, error)
	CreateWithFirstProduct(ctx context.Context, c *model.Client, p *model.ClientProduct) error
	AddProduct(ctx context.Context, p *model.ClientProduct) error
	UpdateClientField(ctx context.Context, id string, field model.ClientField, value string, ownerScope *int64) error
	UpdateProductField(ctx context.Context, id int64, field model.ProductField, value string, ownerScope *int64) error
	DeleteClient(ctx context.Context, id string, ownerScope *int64) (bool, error)
	DeleteProduct(ctx context.Context, id int64, ownerScope *int64) (bool, error)
	RenewProduct(ctx context.Context, id int64, durationDays int, ownerScope *int64) (*model.ClientProduct, error)
	RestoreBackup(ctx context.Context, clients []model.BackupClient, ownerID int64) (int, error)
}

// UserService resolves the acting user for role and owner-scope checks.
type UserService interface {
	Get(ctx context.Context, id int64) (*model.User, error)
}

// Encryptor is the secret codec for credential fields.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type stepFn func(ctx context.Context, u *model.User, s *Session, m adapter.Message) (Outcome, error)

// startRoles is the per-flow authorization policy, checked before a session
// is created and never mid-flow.
var startRoles = map[Kind][]model.Role{
	KindAddClient:     model.ManagementRoles,
	KindAddProduct:    model.ManagementRoles,
	KindDeleteClient:  model.DeletionRoles,
	KindDeleteProduct: model.ManagementRoles,
	KindUpdateClient:  model.ManagementRoles,
	KindRenewProduct:  model.ManagementRoles,
	KindViewClient:    model.ManagementRoles,
	KindRestore:       model.OwnerOnly,
}

// Engine routes inbound messages to the active session's step handler. One
// Engine is instantiated per transport; they may share a Store.
type Engine struct {
	transport string
	store     Store
	msgr      adapter.Messenger
	users     UserService
	clients   ClientService
	enc       Encryptor
	log       *zerolog.Logger

	registry map[Kind]map[Step]stepFn
	starters map[Kind]func(ctx context.Context, u *model.User, m adapter.Message) error
}

// NewEngine builds the engine with the full step registry.
func NewEngine(
	transport string,
	store Store,
	msgr adapter.Messenger,
	users UserService,
	clients ClientService,
	enc Encryptor,
	logger *zerolog.Logger,
) *Engine {
	compLog := logger.With().Str("component", "FlowEngine").Str("transport", transport).Logger()
	e := &Engine{
		transport: transport,
		store:     store,
		msgr:      msgr,
		users:     users,
		clients:   clients,
		enc:       enc,
		log:       &compLog,
	}
	e.registry = map[Kind]map[Step]stepFn{
		KindAddClient: {
			StepClientName:      e.addClientName,
			StepClientWhatsApp:  e.addClientWhatsApp,
			StepClientEmail:     e.addClientEmail,
			StepClientNotes:     e.addClientNotes,
			StepProductName:     e.addClientProductName,
			StepProductDuration: e.addClientProductDuration,
			StepProductNotes:    e.addClientProductNotes,
			StepProductUsername: e.addClientProductUsername,
			StepProductPassword: e.addClientProductPasswordAndCommit,
		},
		KindAddProduct: {
			StepClientSelection: e.addProductSelectClient,
			StepProductDetails:  e.addProductDetailsAndCommit,
		},
		KindDeleteClient: {
			StepClientSelection: e.deleteClientSelectAndCommit,
		},
		KindDeleteProduct: {
			StepClientSelection:  e.deleteProductSelectClient,
			StepProductSelection: e.deleteProductSelectAndCommit,
		},
		KindUpdateClient: {
			StepClientSelection:  e.updateSelectClient,
			StepUpdateTarget:     e.updateSelectTarget,
			StepProductSelection: e.updateSelectProduct,
			StepFieldSelection:   e.updateSelectField,
			StepNewValue:         e.updateApplyValue,
		},
		KindRenewProduct: {
			StepClientSelection:  e.renewSelectClient,
			StepProductSelection: e.renewSelectProduct,
			StepRenewDuration:    e.renewDurationAndCommit,
		},
		KindViewClient: {
			StepViewQuery: e.viewClientQuery,
		},
		KindRestore: {
			StepBackupFile:     e.restoreReceiveFile,
			StepRestoreConfirm: e.restoreConfirm,
		},
	}
	e.starters = map[Kind]func(ctx context.Context, u *model.User, m adapter.Message) error{
		KindAddClient:     e.startAddClient,
		KindAddProduct:    e.startAddProduct,
		KindDeleteClient:  e.startDeleteClient,
		KindDeleteProduct: e.startDeleteProduct,
		KindUpdateClient:  e.startUpdateClient,
		KindRenewProduct:  e.startRenewProduct,
		KindViewClient:    e.startViewClient,
		KindRestore:       e.startRestore,
	}
	return e
}

// Route dispatches an inbound message to the session's current step handler.
// It reports false when the user has no active session, so the caller can
// fall through to its default handling. Any handler error is caught here:
// the user gets an apology with a correlation id and the session is cleared
// unconditionally, so no failure can leave a session stuck.
func (e *Engine) Route(ctx context.Context, m adapter.Message) (bool, error) {
	s, err := e.store.Get(ctx, m.UserID)
	if err != nil {
		return false, fmt.Errorf("session lookup: %w", err)
	}
	if s == nil {
		return false, nil
	}

	// Track the inbound message before invoking the handler so it is cleaned
	// up regardless of outcome.
	s.track(m.MessageID)

	u, err := e.users.Get(ctx, m.UserID)
	if err != nil {
		e.fail(ctx, s, m, fmt.Errorf("resolve user %d: %w", m.UserID, err))
		return true, nil
	}

	handlers, ok := e.registry[s.Kind]
	var h stepFn
	if ok {
		h = handlers[s.Step]
	}
	if h == nil {
		// A session pointing at an unregistered step is stuck; keep it so the
		// user can still /cancel, but do nothing else.
		e.log.Warn().Str("flow", string(s.Kind)).Str("step", string(s.Step)).Msg("no handler for session step")
		_ = e.store.Set(ctx, m.UserID, s)
		return true, nil
	}

	start := time.Now()
	outcome, err := e.invoke(ctx, h, u, s, m)
	metrics.ObserveStepLatency(string(s.Kind), float64(time.Since(start).Milliseconds()))
	if err != nil {
		e.fail(ctx, s, m, err)
		return true, nil
	}

	switch outcome {
	case OutcomeDone:
		e.cleanup(ctx, m.Chat, s.MessagesToDelete)
		_ = e.store.Clear(ctx, m.UserID)
		metrics.FlowCompleted(string(s.Kind), e.transport)
	case OutcomeAbort:
		e.cleanup(ctx, m.Chat, s.MessagesToDelete)
		_ = e.store.Clear(ctx, m.UserID)
	default:
		if err := e.store.Set(ctx, m.UserID, s); err != nil {
			e.fail(ctx, s, m, fmt.Errorf("persist session: %w", err))
		}
	}
	return true, nil
}

// invoke runs a handler with panic containment.
func (e *Engine) invoke(ctx context.Context, h stepFn, u *model.User, s *Session, m adapter.Message) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step handler panic: %v", r)
		}
	}()
	return h(ctx, u, s, m)
}

// StartFlow begins a new flow for the user, discarding any session already in
// progress. The role check happens here, before a session exists.
func (e *Engine) StartFlow(ctx context.Context, kind Kind, m adapter.Message) error {
	u, err := e.users.Get(ctx, m.UserID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if !u.HasRole(startRoles[kind]) {
		e.say(ctx, m.Chat, "Sorry, your role does not allow this operation.")
		return nil
	}
	start := e.starters[kind]
	if start == nil {
		return fmt.Errorf("%w: unknown flow %q", domain.ErrInvalidArgument, kind)
	}
	if err := start(ctx, u, m); err != nil {
		e.fail(ctx, NewSession(kind, ""), m, err)
		return nil
	}
	metrics.FlowStarted(string(kind), e.transport)
	return nil
}

// Cancel clears the user's session, if any. Idempotent: with no session it
// only acknowledges.
func (e *Engine) Cancel(ctx context.Context, m adapter.Message) error {
	s, err := e.store.Get(ctx, m.UserID)
	if err != nil {
		return err
	}
	if s == nil {
		e.say(ctx, m.Chat, "Nothing to cancel.")
		return nil
	}
	e.cleanup(ctx, m.Chat, s.MessagesToDelete)
	if err := e.store.Clear(ctx, m.UserID); err != nil {
		return err
	}
	metrics.FlowCancelled(string(s.Kind), e.transport)
	e.say(ctx, m.Chat, "Operation cancelled. You can start a new command whenever you like.")
	return nil
}

// InFlow reports whether the user has an active session.
func (e *Engine) InFlow(ctx context.Context, userID int64) bool {
	s, err := e.store.Get(ctx, userID)
	return err == nil && s != nil
}

// fail is the router-level backstop: log with a correlation id, apologize,
// and discard the session so the user can immediately start over.
func (e *Engine) fail(ctx context.Context, s *Session, m adapter.Message, err error) {
	corrID := ulid.Make().String()
	e.log.Error().
		Err(err).
		Str("correlation_id", corrID).
		Str("flow", string(s.Kind)).
		Str("step", string(s.Step)).
		Int64("user_id", m.UserID).
		Msg("flow handler failed; session discarded")
	metrics.FlowFailed(string(s.Kind), e.transport)
	_ = e.store.Clear(ctx, m.UserID)
	e.say(ctx, m.Chat, fmt.Sprintf(
		"Sorry, something unexpected went wrong and the operation was discarded.\n"+
			"If the problem persists, give the administrator this error code: %s", corrID))
}

// say sends an untracked message; delivery failures are logged and swallowed.
func (e *Engine) say(ctx context.Context, chat, text string) {
	if _, err := e.msgr.Send(ctx, chat, text); err != nil {
		metrics.SendError(e.transport)
		e.log.Warn().Err(err).Msg("send failed")
	}
}

// prompt sends a message and tracks it for end-of-flow cleanup.
func (e *Engine) prompt(ctx context.Context, s *Session, chat, text string) {
	id, err := e.msgr.Send(ctx, chat, text)
	if err != nil {
		metrics.SendError(e.transport)
		e.log.Warn().Err(err).Msg("send failed")
		return
	}
	s.track(id)
}

// reject re-prompts the current step with a validation hint.
func (e *Engine) reject(ctx context.Context, s *Session, chat, hint string) (Outcome, error) {
	metrics.ValidationRejected(string(s.Kind), string(s.Step))
	e.prompt(ctx, s, chat, hint)
	return OutcomeStay, nil
}

func (e *Engine) cleanup(ctx context.Context, chat string, messageIDs []string) {
	for _, id := range messageIDs {
		_ = e.msgr.Delete(ctx, chat, id)
	}
}

// promptClientSelection lists the user's clients as a numbered table, stores
// the row map on the session and persists it. Returns false (with the session
// not stored) when the user has no clients.
func (e *Engine) promptClientSelection(ctx context.Context, u *model.User, s *Session, m adapter.Message, header string) (bool, error) {
	clients, err := e.clients.List(ctx, "", u.OwnerScope())
	if err != nil {
		return false, err
	}
	if len(clients) == 0 {
		e.say(ctx, m.Chat, "You have no registered clients for this action.")
		return false, nil
	}
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\nReply with the row number, the client id or the name:\n\n")
	s.ClientPick = make(map[int]ClientRef, len(clients))
	for i, c := range clients {
		row := i + 1
		s.ClientPick[row] = ClientRef{ID: c.ID, Name: c.Name}
		fmt.Fprintf(&b, "%-2d | %-20s | %s\n", row, c.Name, c.ID)
	}
	e.prompt(ctx, s, m.Chat, b.String())
	if err := e.store.Set(ctx, m.UserID, s); err != nil {
		return false, err
	}
	return true, nil
}

// resolveClientSelection interprets a selection reply: a known row number is
// looked up in the session's pick map, anything else is tried as a direct
// id/name query.
func (e *Engine) resolveClientSelection(ctx context.Context, u *model.User, s *Session, text string) (*model.Client, error) {
	query := strings.TrimSpace(text)
	if row, err := strconv.Atoi(query); err == nil {
		if ref, ok := s.ClientPick[row]; ok {
			query = ref.ID
		}
	}
	return e.clients.Find(ctx, query, u.OwnerScope())
}

// promptProductSelection lists a client's products as a numbered list and
// stores the row map on the session.
func (e *Engine) promptProductSelection(ctx context.Context, s *Session, m adapter.Message, products []*model.ClientProduct, header string) {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")
	s.ProductPick = make(map[int]ProductRef, len(products))
	for i, p := range products {
		row := i + 1
		s.ProductPick[row] = ProductRef{ID: p.ID, Name: p.ProductName, Expiry: p.ExpiryDate}
		fmt.Fprintf(&b, "%d. %s (expires %s)\n", row, p.ProductName, p.ExpiryDate.Format("02-01-2006"))
	}
	e.prompt(ctx, s, m.Chat, b.String())
}

// resetPrompts deletes the prompts shown so far and starts a fresh tracking
// list, used when a flow moves to a new screen.
func (e *Engine) resetPrompts(ctx context.Context, s *Session, chat string) {
	e.cleanup(ctx, chat, s.MessagesToDelete)
	s.MessagesToDelete = nil
}
