// Package application composes the use cases into the single-shot bot
// commands shared by both transports. Multi-step operations live in the flow
// engine; everything here is one message in, one reply out.
package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"client-manager-bot/internal/domain"
	"client-manager-bot/internal/domain/model"
	"client-manager-bot/internal/flow"
	"client-manager-bot/internal/usecase"
)

// ListPageSize is how many clients a /listclients page shows.
const ListPageSize = 5

// BotFacade methods return the reply text so the transports just forward it.
type BotFacade struct {
	UserUC   usecase.UserUseCase
	ClientUC usecase.ClientUseCase
	StatsUC  usecase.StatsUseCase
	Enc      flow.Encryptor
}

func NewBotFacade(userUC usecase.UserUseCase, clientUC usecase.ClientUseCase, statsUC usecase.StatsUseCase, enc flow.Encryptor) *BotFacade {
	return &BotFacade{UserUC: userUC, ClientUC: clientUC, StatsUC: statsUC, Enc: enc}
}

// HandleStart registers or fetches the user and returns a welcome string.
func (b *BotFacade) HandleStart(ctx context.Context, userID int64, name string) (string, error) {
	u, err := b.UserUC.RegisterOrFetch(ctx, userID, name)
	if err != nil {
		return "", fmt.Errorf("register/fetch user: %w", err)
	}
	return fmt.Sprintf("Hello %s!\nYour role: %s\nUse /info to see what you can do.", u.Name, u.Role), nil
}

// HandleInfo returns the role-aware command list.
func (b *BotFacade) HandleInfo(ctx context.Context, userID int64) (string, error) {
	u, err := b.UserUC.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "Send /start first so I know who you are.", nil
		}
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Available commands:\n\n")
	sb.WriteString("/start - register\n/info - this help\n/cancel - abort the current operation\n")
	sb.WriteString("/myproducts - your contracted products\n/presente <client_id> - link yourself to a client record\n")
	sb.WriteString("/setname <name> - change your display name\n")
	if u.HasRole(model.ManagementRoles) {
		sb.WriteString("\nManagement:\n")
		sb.WriteString("/addclient - register a client with their first product\n")
		sb.WriteString("/addproduct - add a product to a client\n")
		sb.WriteString("/updateclient - edit client or product fields\n")
		sb.WriteString("/renew - extend a product\n")
		sb.WriteString("/delproduct - remove one product\n")
		sb.WriteString("/client <id or name> - client details\n")
		sb.WriteString("/listclients [search] [page] - browse clients\n")
		sb.WriteString("/stats - counters\n")
		sb.WriteString("/linkwa <phone> - link your WhatsApp number\n")
	}
	if u.HasRole(model.DeletionRoles) {
		sb.WriteString("/delclient - remove a client and all their products\n")
	}
	if u.IsOwner() {
		sb.WriteString("\nOwner:\n/setrole <user_id> <role> - change a user's role\n/restore - restore a JSON backup\n")
	}
	return sb.String(), nil
}

// HandleListClients renders one page of the client list. args is the raw
// command tail: an optional search term and an optional trailing page number.
func (b *BotFacade) HandleListClients(ctx context.Context, userID int64, args string) (string, error) {
	u, err := b.UserUC.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if !u.HasRole(model.ManagementRoles) {
		return "Sorry, your role does not allow this operation.", nil
	}

	search, page := parseListArgs(args)
	clients, err := b.ClientUC.List(ctx, search, u.OwnerScope())
	if err != nil {
		return "", err
	}
	if len(clients) == 0 {
		if search != "" {
			return fmt.Sprintf("No clients match %q.", search), nil
		}
		return "You have no registered clients yet. Use /addclient to add one.", nil
	}

	pages := (len(clients) + ListPageSize - 1) / ListPageSize
	if page > pages {
		page = pages
	}
	start := (page - 1) * ListPageSize
	end := start + ListPageSize
	if end > len(clients) {
		end = len(clients)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Clients (page %d/%d, %d total):\n\n", page, pages, len(clients))
	for _, c := range clients[start:end] {
		fmt.Fprintf(&sb, "%s | %s | %s\n", c.ID, c.Name, orNA(c.WhatsApp))
	}
	if page < pages {
		fmt.Fprintf(&sb, "\nNext page: /listclients %s", strings.TrimSpace(fmt.Sprintf("%s %d", search, page+1)))
	}
	return sb.String(), nil
}

// parseListArgs splits "search terms 2" into the search string and the page.
func parseListArgs(args string) (search string, page int) {
	page = 1
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", page
	}
	if n, err := strconv.Atoi(fields[len(fields)-1]); err == nil && n > 0 {
		page = n
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " "), page
}

// HandleClientDetails is the non-interactive /client view: the client block
// followed by every product, credentials decrypted.
func (b *BotFacade) HandleClientDetails(ctx context.Context, userID int64, query string) (string, error) {
	u, err := b.UserUC.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if !u.HasRole(model.ManagementRoles) {
		return "Sorry, your role does not allow this operation.", nil
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return "Usage: /client <id or name>", nil
	}

	c, err := b.ClientUC.Find(ctx, query, u.OwnerScope())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Sprintf("No client found for %q.", query), nil
		}
		return "", err
	}
	products, err := b.ClientUC.Products(ctx, c.ID, u.OwnerScope())
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(flow.FormatClientDetails(c))
	if len(products) == 0 {
		sb.WriteString("\n\nThis client has no registered products.")
		return sb.String(), nil
	}
	for _, p := range products {
		password := ""
		if p.ServicePassword != "" {
			if password, err = b.Enc.Decrypt(p.ServicePassword); err != nil {
				password = "(cannot decrypt)"
			}
		}
		sb.WriteString("\n\n")
		sb.WriteString(flow.FormatProductDetails(p, password))
	}
	return sb.String(), nil
}

// HandleMyProducts shows a linked end user the products on their own client
// record. Credentials are never included here.
func (b *BotFacade) HandleMyProducts(ctx context.Context, userID int64) (string, error) {
	u, err := b.UserUC.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "Send /start first so I know who you are.", nil
		}
		return "", err
	}
	if u.ClientID == "" {
		return "Your account is not linked to a client record yet. Ask your reseller for your client id and send /presente <id>.", nil
	}
	products, err := b.ClientUC.Products(ctx, u.ClientID, nil)
	if err != nil {
		return "", err
	}
	if len(products) == 0 {
		return "You have no contracted products.", nil
	}
	var sb strings.Builder
	sb.WriteString("Your products:\n\n")
	for _, p := range products {
		fmt.Fprintf(&sb, "- %s: %s, expires %s\n", p.ProductName, p.Status, p.ExpiryDate.Format("02-01-2006"))
	}
	return sb.String(), nil
}

// HandlePresente links the calling user to an existing client record.
func (b *BotFacade) HandlePresente(ctx context.Context, userID int64, clientID string) (string, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return "Usage: /presente <client_id>", nil
	}
	if err := b.UserUC.LinkClient(ctx, userID, clientID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Sprintf("No client record found for %q. Check the id with your reseller.", clientID), nil
		}
		return "", err
	}
	return "Done. Your account is now linked; use /myproducts to see your products.", nil
}

// HandleSetName updates the caller's display name.
func (b *BotFacade) HandleSetName(ctx context.Context, userID int64, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Usage: /setname <name>", nil
	}
	if err := b.UserUC.SetName(ctx, userID, name); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "Send /start first so I know who you are.", nil
		}
		return "", err
	}
	return fmt.Sprintf("Your name is now %s.", name), nil
}

// HandleSetRole is owner only: "/setrole <user_id> <role>".
func (b *BotFacade) HandleSetRole(ctx context.Context, actorID int64, args string) (string, error) {
	actor, err := b.UserUC.Get(ctx, actorID)
	if err != nil {
		return "", err
	}
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return "Usage: /setrole <user_id> <owner|admin|moderator|user>", nil
	}
	targetID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return fmt.Sprintf("%q is not a user id.", fields[0]), nil
	}
	role, ok := model.ParseRole(fields[1])
	if !ok {
		return fmt.Sprintf("%q is not a role. Valid roles: owner, admin, moderator, user.", fields[1]), nil
	}
	if err := b.UserUC.SetRole(ctx, actor, targetID, role); err != nil {
		switch {
		case errors.Is(err, domain.ErrPermissionDenied):
			return "Sorry, only the owner can change roles, and the owner cannot demote themselves.", nil
		case errors.Is(err, domain.ErrNotFound):
			return fmt.Sprintf("No user with id %d. They need to /start first.", targetID), nil
		}
		return "", err
	}
	return fmt.Sprintf("User %d is now %s.", targetID, role), nil
}

// HandleLinkWhatsApp stores the caller's WhatsApp number so inbound WhatsApp
// messages resolve to the same account.
func (b *BotFacade) HandleLinkWhatsApp(ctx context.Context, userID int64, phone string) (string, error) {
	normalized, ok := flow.NormalizeWhatsApp(phone)
	if !ok {
		return "That does not look like a valid Argentine number. Example: 1122334455", nil
	}
	// WhatsApp ids come in without the plus.
	waID := strings.TrimPrefix(normalized, "+")
	if err := b.UserUC.LinkWhatsApp(ctx, userID, waID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "Send /start first so I know who you are.", nil
		}
		return "", err
	}
	return fmt.Sprintf("Linked. Messages from %s now act as your account.", normalized), nil
}

// HandleStats formats the counters for /stats.
func (b *BotFacade) HandleStats(ctx context.Context, userID int64) (string, error) {
	u, err := b.UserUC.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if !u.HasRole(model.ManagementRoles) {
		return "Sorry, your role does not allow this operation.", nil
	}
	totals, err := b.StatsUC.Totals(ctx, u.OwnerScope())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"Stats:\n\nClients: %d\nProducts: %d\nExpiring within %d days: %d\nRegistered users: %d",
		totals.Clients, totals.Products, usecase.ExpiringSoonDays, totals.ExpiringSoon, totals.Users), nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
