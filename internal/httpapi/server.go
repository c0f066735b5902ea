// Package httpapi is the bot's HTTP surface: the Slack webhook endpoints and
// the browser-facing confirmation pages the NEAR wallet redirects back to.
package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/enthusiasm-bot/enthusiasm/internal/bot"
	"github.com/enthusiasm-bot/enthusiasm/internal/config"
	"github.com/enthusiasm-bot/enthusiasm/internal/ledger"
	"github.com/enthusiasm-bot/enthusiasm/web"
)

const (
	maxBodyBytes   = 1 << 20
	dispatchBudget = 30 * time.Second
)

// Server wires the webhook and confirmation routes.
type Server struct {
	net           config.NetworkConfig
	router        *bot.Router
	ledger        *ledger.Service
	signingSecret string
	page          *template.Template
	handler       http.Handler
	started       time.Time

	eventsSeen       atomic.Int64
	interactionsSeen atomic.Int64
}

func NewServer(net config.NetworkConfig, router *bot.Router, led *ledger.Service, signingSecret string) (*Server, error) {
	page, err := template.ParseFS(web.FS, "index.html")
	if err != nil {
		return nil, fmt.Errorf("parse bridge template: %w", err)
	}
	s := &Server{
		net:           net,
		router:        router,
		ledger:        led,
		signingSecret: signingSecret,
		page:          page,
		started:       time.Now(),
	}

	r := mux.NewRouter()
	r.HandleFunc("/events", s.handleEvents).Methods(http.MethodPost)
	r.HandleFunc("/interactions", s.handleInteractions).Methods(http.MethodPost)
	r.HandleFunc("/enthusiasm", s.handleSlashCommand).Methods(http.MethodPost)

	r.HandleFunc("/getAccountId/{slackId}", s.handleGetAccountID).Methods(http.MethodGet)
	r.HandleFunc("/processAccountId/{slackId}", s.handleProcessAccountID).Methods(http.MethodGet)
	r.HandleFunc("/sendMoney/{targetSlackId}/{targetAccountId}/{amount}", s.handleSendMoney).Methods(http.MethodGet)
	r.HandleFunc("/voteForSlackId/{ownerSlackId}/{votedForSlackId}", s.handleVote).Methods(http.MethodGet)
	r.HandleFunc("/createNomination/{ownerSlackId}/{title}/{depositAmount}", s.handleCreateNomination).Methods(http.MethodGet)
	r.HandleFunc("/signInFailure", s.handleSignInFailure).Methods(http.MethodGet)
	r.HandleFunc("/qr/{slackId}", s.handleQR).Methods(http.MethodGet)

	r.PathPrefix("/assets/").Handler(http.StripPrefix("/assets/", http.FileServer(http.FS(web.FS))))
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "N/A", http.StatusNotFound)
	})
	s.handler = r
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.handler }

// readVerified reads the request body and checks the Slack signature.
func (s *Server) readVerified(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return nil, false
	}
	err = verifySlackSignature(s.signingSecret,
		r.Header.Get("X-Slack-Request-Timestamp"),
		r.Header.Get("X-Slack-Signature"), body)
	if err != nil {
		slog.Warn("rejected slack request", "path", r.URL.Path, "error", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return nil, false
	}
	return body, true
}

// dispatch runs fn detached from the request so Slack always gets an
// immediate acknowledgment.
func dispatch(fn func(ctx context.Context)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchBudget)
		defer cancel()
		fn(ctx)
	}()
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readVerified(w, r)
	if !ok {
		return
	}
	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		http.Error(w, "bad event", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			http.Error(w, "bad challenge", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, challenge.Challenge)
		return
	case slackevents.CallbackEvent:
		s.eventsSeen.Add(1)
		switch ev := event.InnerEvent.Data.(type) {
		case *slackevents.AppMentionEvent:
			user, channel := ev.User, ev.Channel
			dispatch(func(ctx context.Context) { s.router.HandleAppMention(ctx, user, channel) })
		case *slackevents.ReactionAddedEvent:
			reaction, user, itemUser, channel := ev.Reaction, ev.User, ev.ItemUser, ev.Item.Channel
			dispatch(func(ctx context.Context) { s.router.HandleReaction(ctx, reaction, user, itemUser, channel) })
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleInteractions(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readVerified(w, r)
	if !ok {
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(r.PostForm.Get("payload")), &cb); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	// Ack first; the real work runs detached.
	w.WriteHeader(http.StatusOK)
	s.interactionsSeen.Add(1)

	switch cb.Type {
	case slack.InteractionTypeViewSubmission:
		dispatch(func(ctx context.Context) { s.router.HandleViewSubmission(ctx, &cb) })
	case slack.InteractionTypeMessageAction:
		if cb.CallbackID != bot.ShortcutCallbackID {
			return
		}
		user, messageUser, channel := cb.User.ID, cb.Message.User, cb.Channel.ID
		dispatch(func(ctx context.Context) { s.router.HandleShortcut(ctx, user, messageUser, channel) })
	default:
		in := bot.NewInteraction(&cb)
		dispatch(func(ctx context.Context) { s.router.Dispatch(ctx, in) })
	}
}

func (s *Server) handleSlashCommand(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readVerified(w, r)
	if !ok {
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		http.Error(w, "bad command", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
	dispatch(func(ctx context.Context) { s.router.HandleAppMention(ctx, cmd.UserID, cmd.ChannelID) })
}

// pageContext is the base64 JSON blob handed to the browser bridge.
type pageContext struct {
	Action        string              `json:"action"`
	SlackID       string              `json:"slackId,omitempty"`
	TargetSlackID string              `json:"targetSlackId,omitempty"`
	Amount        string              `json:"amount,omitempty"`
	Title         string              `json:"title,omitempty"`
	Config        config.PublicConfig `json:"config"`
}

type pageData struct {
	Heading   string
	Message   string
	Context   string
	RunBridge bool
}

func (s *Server) renderBridge(w http.ResponseWriter, pc pageContext) {
	pc.Config = s.net.Public()
	blob, err := json.Marshal(pc)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.renderPage(w, pageData{
		Heading:   "Connecting to your NEAR wallet",
		Message:   "Please approve the transaction in the wallet window.",
		Context:   base64.StdEncoding.EncodeToString(blob),
		RunBridge: true,
	})
}

func (s *Server) renderResult(w http.ResponseWriter, heading, message string) {
	s.renderPage(w, pageData{Heading: heading, Message: message})
}

func (s *Server) renderPage(w http.ResponseWriter, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, data); err != nil {
		slog.Warn("render page", "error", err)
	}
}

// txHash extracts the wallet redirect's transaction hash. The wallet uses
// transactionHashes; some versions send a comma-separated transactions param.
func txHash(q url.Values) string {
	if h := q.Get("transactionHashes"); h != "" {
		return strings.Split(h, ",")[0]
	}
	if h := q.Get("transactions"); h != "" {
		return strings.Split(h, ",")[0]
	}
	return ""
}

func walletError(q url.Values) string {
	msg := q.Get("errorMessage")
	if msg == "" {
		return ""
	}
	if decoded, err := url.QueryUnescape(msg); err == nil {
		msg = decoded
	}
	return msg
}

func (s *Server) handleGetAccountID(w http.ResponseWriter, r *http.Request) {
	s.renderBridge(w, pageContext{
		Action:  "getAccountId",
		SlackID: mux.Vars(r)["slackId"],
	})
}

func (s *Server) handleProcessAccountID(w http.ResponseWriter, r *http.Request) {
	slackID := mux.Vars(r)["slackId"]
	q := r.URL.Query()
	if msg := walletError(q); msg != "" {
		s.renderResult(w, "Authorization failed", msg)
		return
	}
	accountID := q.Get("account_id")
	if accountID == "" {
		s.renderResult(w, "Authorization failed", "The wallet did not report an account id.")
		return
	}
	if err := s.router.LinkWallet(r.Context(), slackID, accountID); err != nil {
		slog.Error("link wallet", "slack", slackID, "error", err)
		s.renderResult(w, "Something went wrong", "We could not link your wallet. Please try again later.")
		return
	}
	s.renderResult(w, "You have successfully authorized Enthusiasm!",
		"Head back to Slack and mention @enthusiasm to get started.")
}

func (s *Server) handleSendMoney(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	target := vars["targetSlackId"]
	q := r.URL.Query()
	if msg := walletError(q); msg != "" {
		s.renderResult(w, "Transfer cancelled", msg)
		return
	}
	if hash := txHash(q); hash != "" {
		err := s.router.ConfirmSendMoney(r.Context(), target, hash)
		switch {
		case errors.Is(err, bot.ErrUnconfirmedDeposit):
			s.renderResult(w, "Transfer not confirmed",
				"Transferred amount is not confirmed. Transaction hash: "+hash)
		case err != nil:
			slog.Error("confirm send money", "tx", hash, "error", err)
			s.renderResult(w, "Something went wrong",
				"We could not deliver the reward. Please try again later.")
		default:
			s.renderResult(w, "Reward sent! :tada:",
				"The tokens are on their way. You can close this page.")
		}
		return
	}
	s.renderBridge(w, pageContext{
		Action:        "sendMoney",
		SlackID:       target,
		TargetSlackID: target,
		Amount:        vars["amount"],
	})
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	owner, voted := vars["ownerSlackId"], vars["votedForSlackId"]
	q := r.URL.Query()
	if msg := walletError(q); msg != "" {
		s.renderResult(w, "Vote cancelled", msg)
		return
	}
	if hash := txHash(q); hash != "" {
		if err := s.router.ConfirmVote(r.Context(), owner, hash); err != nil {
			slog.Error("confirm vote", "tx", hash, "error", err)
		}
		s.renderResult(w, "Thank you for your vote!", "You can close this page.")
		return
	}
	s.renderBridge(w, pageContext{
		Action:        "voteForSlackId",
		SlackID:       owner,
		TargetSlackID: voted,
	})
}

func (s *Server) handleCreateNomination(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	owner := vars["ownerSlackId"]
	title, err := url.PathUnescape(vars["title"])
	if err != nil {
		title = vars["title"]
	}
	q := r.URL.Query()
	if msg := walletError(q); msg != "" {
		s.renderResult(w, "Nomination cancelled", msg)
		return
	}
	if hash := txHash(q); hash != "" {
		err := s.router.ConfirmNomination(r.Context(), owner, title, hash, q.Get("channel"))
		switch {
		case errors.Is(err, bot.ErrUnconfirmedDeposit):
			s.renderResult(w, "Deposit not confirmed",
				"Transferred amount is not confirmed. Transaction hash: "+hash)
		case err != nil:
			slog.Error("confirm nomination", "tx", hash, "error", err)
			s.renderResult(w, "Something went wrong",
				"We could not create the nomination. Please try again later.")
		default:
			s.renderResult(w, "Nomination created!",
				"Your teammates are being asked to vote. You can close this page.")
		}
		return
	}
	s.renderBridge(w, pageContext{
		Action:  "createNomination",
		SlackID: owner,
		Title:   title,
		Amount:  vars["depositAmount"],
	})
}

func (s *Server) handleSignInFailure(w http.ResponseWriter, r *http.Request) {
	msg := walletError(r.URL.Query())
	if msg == "" {
		msg = "The wallet sign-in was cancelled."
	}
	s.renderResult(w, "Authorization failed", msg)
}

// handleQR serves a QR code pointing at the user's sign-in link, handy for
// onboarding from a phone.
func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	link := s.net.Endpoints.APIHost + "/getAccountId/" + mux.Vars(r)["slackId"]
	png, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	interactions, err := s.ledger.InteractionCount()
	if err != nil {
		slog.Warn("status: interaction count", "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"network":             s.net.NetworkID,
		"contract":            s.net.ContractName,
		"uptime_seconds":      int64(time.Since(s.started).Seconds()),
		"events_seen":         s.eventsSeen.Load(),
		"interactions_seen":   s.interactionsSeen.Load(),
		"interactions_stored": interactions,
	})
}
