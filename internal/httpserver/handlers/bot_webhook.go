package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"subtrack/internal/models"
	"subtrack/internal/notify"
	"subtrack/internal/workflow"
)

type tgChat struct {
	ID int64 `json:"id"`
}

type tgMessage struct {
	Chat tgChat `json:"chat"`
	Text string `json:"text"`
}

type tgUpdate struct {
	UpdateID int64      `json:"update_id"`
	Message  *tgMessage `json:"message"`
}

// BotWebhook handles Telegram updates. It always answers 200 so Telegram
// does not redeliver: user-facing feedback goes back through the bot itself.
//
// Commands:
//
//	/start <token>  link this chat to the account holding the token
//	/approve <id>   approve a request (staff)
//	/reject <id>    start a rejection; the next reply is the reason (staff)
//	/renew <id>     start a renewal decision; reply yes or no (owner)
func BotWebhook(d Deps, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if secret != "" {
			got := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				w.WriteHeader(http.StatusForbidden)
				return
			}
		}
		var upd tgUpdate
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil || upd.Message == nil {
			w.WriteHeader(http.StatusOK)
			return
		}
		handleMessage(d, r, *upd.Message)
		w.WriteHeader(http.StatusOK)
	}
}

func handleMessage(d Deps, r *http.Request, msg tgMessage) {
	ctx := r.Context()
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	reply := func(format string, args ...any) {
		if err := d.Bot.Send(ctx, chatID, fmt.Sprintf(format, args...)); err != nil {
			d.Lg.Warnw("bot reply failed", "chat", chatID, "error", err)
		}
	}

	if cmd, arg, ok := parseCommand(text); ok && cmd == "start" {
		if arg == "" {
			reply("Get a linking token from your profile page, then send /start <token>.")
			return
		}
		u, err := d.Users.RedeemChatToken(ctx, arg, chatID)
		if err != nil {
			reply("That token is not valid. Mint a fresh one from your profile.")
			return
		}
		reply("Linked. Hello, %s — you will receive updates here.", u.FullName)
		return
	}

	u, err := d.Users.GetByChatID(ctx, chatID)
	if err != nil {
		reply("This chat is not linked to an account. Send /start <token> first.")
		return
	}

	cmd, arg, isCmd := parseCommand(text)
	if !isCmd {
		resolveReply(d, r, u, chatID, text, reply)
		return
	}

	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		reply("Usage: /%s <request id>", cmd)
		return
	}
	reqID := uint(id)

	switch cmd {
	case "approve":
		if !u.IsStaff() {
			reply("Only accountants and admins can decide requests.")
			return
		}
		row, err := d.Workflow.UpdateStatus(ctx, u, reqID, workflow.Decision{NewStatus: models.StatusApproved})
		if err != nil {
			reply("Could not approve #%d: %s", reqID, err)
			return
		}
		reply("Approved #%d (%s).", row.ID, row.PlatformName)
	case "reject":
		if !u.IsStaff() {
			reply("Only accountants and admins can decide requests.")
			return
		}
		if err := d.Pending.Put(ctx, notify.PendingAction{ChatID: chatID, Kind: notify.ActionReject, RequestID: reqID}); err != nil {
			d.Lg.Warnw("pending store put failed", "chat", chatID, "error", err)
			reply("Something went wrong, try again.")
			return
		}
		reply("Reply with the rejection reason for #%d.", reqID)
	case "renew":
		if err := d.Pending.Put(ctx, notify.PendingAction{ChatID: chatID, Kind: notify.ActionRenewal, RequestID: reqID}); err != nil {
			d.Lg.Warnw("pending store put failed", "chat", chatID, "error", err)
			reply("Something went wrong, try again.")
			return
		}
		reply("Keep subscription #%d? Reply yes or no.", reqID)
	default:
		reply("Unknown command. Try /approve, /reject or /renew.")
	}
}

// resolveReply matches a plain-text message against the chat's pending
// actions: an open rejection consumes the text as its reason, an open renewal
// consumes a yes/no.
func resolveReply(d Deps, r *http.Request, u *models.User, chatID int64, text string, reply func(string, ...any)) {
	ctx := r.Context()

	if act, err := d.Pending.Take(ctx, chatID, notify.ActionReject); err == nil {
		dec := workflow.Decision{NewStatus: models.StatusRejected, Reason: text}
		row, err := d.Workflow.UpdateStatus(ctx, u, act.RequestID, dec)
		if err != nil {
			reply("Could not reject #%d: %s", act.RequestID, err)
			return
		}
		reply("Rejected #%d (%s).", row.ID, row.PlatformName)
		return
	} else if !errors.Is(err, notify.ErrNoPending) {
		d.Lg.Warnw("pending store take failed", "chat", chatID, "error", err)
	}

	if act, err := d.Pending.Take(ctx, chatID, notify.ActionRenewal); err == nil {
		accept, ok := parseYesNo(text)
		if !ok {
			// put it back so the user can answer properly
			if err := d.Pending.Put(ctx, *act); err != nil {
				d.Lg.Warnw("pending store put failed", "chat", chatID, "error", err)
			}
			reply("Please reply yes or no for #%d.", act.RequestID)
			return
		}
		row, err := d.Workflow.DecideRenewal(ctx, u, act.RequestID, accept)
		if err != nil {
			reply("Could not record the renewal decision for #%d: %s", act.RequestID, err)
			return
		}
		if accept {
			if row.RenewalDate != nil {
				reply("Renewed #%d (%s) until %s.", row.ID, row.PlatformName, row.RenewalDate.Format("2006-01-02"))
			} else {
				reply("Renewed #%d (%s).", row.ID, row.PlatformName)
			}
		} else {
			reply("Marked #%d (%s) as expired.", row.ID, row.PlatformName)
		}
		return
	} else if !errors.Is(err, notify.ErrNoPending) {
		d.Lg.Warnw("pending store take failed", "chat", chatID, "error", err)
	}
}

func parseCommand(text string) (cmd, arg string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	fields := strings.Fields(strings.TrimPrefix(text, "/"))
	if len(fields) == 0 {
		return "", "", false
	}
	// strip the @botname suffix Telegram appends in group chats
	cmd, _, _ = strings.Cut(fields[0], "@")
	if len(fields) > 1 {
		arg = fields[1]
	}
	return strings.ToLower(cmd), arg, true
}

func parseYesNo(text string) (accept, ok bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes", "y", "keep", "renew":
		return true, true
	case "no", "n", "cancel", "stop":
		return false, true
	}
	return false, false
}
