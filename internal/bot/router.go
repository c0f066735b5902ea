// Package bot routes Slack interactions to contract calls and renders the
// results back as Block Kit messages.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/slack-go/slack"

	"github.com/enthusiasm-bot/enthusiasm/internal/audit"
	"github.com/enthusiasm-bot/enthusiasm/internal/config"
	"github.com/enthusiasm-bot/enthusiasm/internal/ledger"
	"github.com/enthusiasm-bot/enthusiasm/internal/near"
)

// Reactions that open the reward prompt.
const (
	reactionNearIcon   = "near_icon"
	reactionEnthusiasm = "enthusiasm"
)

// ShortcutCallbackID is the message-action shortcut that opens the reward
// prompt for a message's author.
const ShortcutCallbackID = "enthusiasm-shortcut"

// SlackAPI is the subset of the Slack Web API the router calls.
type SlackAPI interface {
	PostEphemeralContext(ctx context.Context, channelID, userID string, options ...slack.MsgOption) (string, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	OpenViewContext(ctx context.Context, triggerID string, view slack.ModalViewRequest) (*slack.ViewResponse, error)
	GetUsersInConversationContext(ctx context.Context, params *slack.GetUsersInConversationParameters) ([]string, string, error)
}

// ContractGateway submits contract calls and resolves wallet transactions.
type ContractGateway interface {
	Call(ctx context.Context, method, argsJSON string, deposit *near.Amount) (string, error)
	DepositAmount(ctx context.Context, txHash string) (*near.Amount, error)
	ContractName() string
}

// Responder delivers blocks to an interaction's response URL.
type Responder func(ctx context.Context, responseURL string, msg *slack.WebhookMessage) error

// Interaction is the per-request context. Everything the handlers need is
// carried here; the router holds no per-user mutable state.
type Interaction struct {
	TraceID      string
	UserID       string
	ChannelID    string
	TriggerID    string
	ResponseURL  string
	ActionID     string
	ActionValue  string
	Conversation string // selected conversation, for vote actions
}

// Router dispatches normalized Slack actions.
type Router struct {
	net     config.NetworkConfig
	slack   SlackAPI
	gateway ContractGateway
	ledger  *ledger.Service
	audit   audit.Publisher
	respond Responder
}

func NewRouter(net config.NetworkConfig, api SlackAPI, gw ContractGateway, led *ledger.Service, pub audit.Publisher) *Router {
	return &Router{
		net:     net,
		slack:   api,
		gateway: gw,
		ledger:  led,
		audit:   pub,
		respond: func(ctx context.Context, responseURL string, msg *slack.WebhookMessage) error {
			return slack.PostWebhookContext(ctx, responseURL, msg)
		},
	}
}

// SetResponder overrides response-URL delivery, for tests.
func (r *Router) SetResponder(fn Responder) { r.respond = fn }

// NewInteraction normalizes an interaction callback. Menu selections route by
// the selected option's value; every other block action routes by its action
// id; shortcuts fall back to the callback id.
func NewInteraction(cb *slack.InteractionCallback) Interaction {
	in := Interaction{
		TraceID:     uuid.NewString(),
		UserID:      cb.User.ID,
		ChannelID:   cb.Channel.ID,
		TriggerID:   cb.TriggerID,
		ResponseURL: cb.ResponseURL,
		ActionID:    cb.CallbackID,
	}
	if actions := cb.ActionCallback.BlockActions; len(actions) > 0 {
		a := actions[0]
		in.ActionID = a.ActionID
		in.ActionValue = a.Value
		in.Conversation = a.SelectedConversation
		if a.ActionID == actionMenu {
			in.ActionID = a.SelectedOption.Value
		}
	}
	return in
}

// Dispatch routes one normalized interaction. The HTTP layer has already
// acknowledged Slack; errors here are logged and answered with a fallback
// message rather than dropped silently.
func (r *Router) Dispatch(ctx context.Context, in Interaction) {
	var err error
	switch in.ActionID {
	case actionLogin:
		err = r.send(ctx, in, NetworkSelectBlocks()...)
	case actionAbout:
		err = r.send(ctx, in, AboutBlocks()...)
	case actionBalance:
		err = r.handleBalance(ctx, in)
	case actionWithdraw:
		err = r.handleWithdraw(ctx, in)
	case actionNetworkMain:
		err = r.send(ctx, in, BackToMenuBlocks(fmt.Sprintf(
			"Please authorize Enthusiasm app in your NEAR account by <%s/getAccountId/%s|the following link>",
			r.net.Endpoints.APIHost, in.UserID))...)
	case actionSendRewards:
		err = r.handleSendRewards(ctx, in)
	case actionNominationMenu:
		err = r.handleNominationMenu(ctx, in)
	case actionNominationNew:
		_, err = r.slack.OpenViewContext(ctx, in.TriggerID, NominationModal(in.ChannelID))
	case actionNominationVote:
		err = r.send(ctx, in, BackToMenuBlocks(fmt.Sprintf(
			"Please confirm your vote by <%s/voteForSlackId/%s/%s|the following link>",
			r.net.Endpoints.APIHost, in.UserID, in.Conversation))...)
	case actionNominationEnd:
		err = r.handleNominationFinish(ctx, in)
	case actionNominationHelp:
		err = r.send(ctx, in, BackToMenuBlocks(NominationHelpText)...)
	case actionRenderMenu:
		err = r.send(ctx, in, MenuBlocks(r.IsLoggedIn(ctx, in.UserID))...)
	default:
		slog.Warn("unknown action", "action", in.ActionID, "trace", in.TraceID)
		return
	}

	outcome := "ok"
	if err != nil {
		outcome = err.Error()
		slog.Error("action failed", "action", in.ActionID, "user", in.UserID,
			"trace", in.TraceID, "error", err)
		r.sendError(ctx, in)
	}
	if recErr := r.ledger.RecordInteraction(in.TraceID, in.UserID, in.ActionID, outcome); recErr != nil {
		slog.Warn("record interaction", "error", recErr)
	}
}

// IsLoggedIn reports whether the user has a wallet linked, checking the local
// cache first and falling back to the contract.
func (r *Router) IsLoggedIn(ctx context.Context, userID string) bool {
	if _, ok, err := r.ledger.WalletLink(userID); err == nil && ok {
		return true
	}
	account, err := r.call(ctx, "", userID, "get_wallet",
		fmt.Sprintf(`{"slack_account_id":%q}`, userID), nil)
	if err != nil || account == "" || account == "null" {
		return false
	}
	if err := r.ledger.SaveWalletLink(userID, account); err != nil {
		slog.Warn("cache wallet link", "user", userID, "error", err)
	}
	return true
}

func (r *Router) handleBalance(ctx context.Context, in Interaction) error {
	raw, err := r.call(ctx, in.TraceID, in.UserID, "get_rewards",
		fmt.Sprintf(`{"slack_account_id":%q}`, in.UserID), nil)
	if err != nil {
		return err
	}
	amount, err := near.ParseYocto(raw)
	if err != nil {
		return fmt.Errorf("parse balance %q: %w", raw, err)
	}
	return r.send(ctx, in, BalanceBlocks(amount)...)
}

func (r *Router) handleWithdraw(ctx context.Context, in Interaction) error {
	args := fmt.Sprintf(`{"slack_account_id":%q}`, in.UserID)
	raw, err := r.call(ctx, in.TraceID, in.UserID, "get_rewards", args, nil)
	if err != nil {
		return err
	}
	amount, err := near.ParseYocto(raw)
	if err != nil {
		return fmt.Errorf("parse balance %q: %w", raw, err)
	}
	if amount.IsZero() {
		return r.send(ctx, in, BackToMenuBlocks("Ooops, nothing to withdraw yet! :confused:")...)
	}
	if _, err := r.call(ctx, in.TraceID, in.UserID, "withdraw_rewards", args, nil); err != nil {
		return err
	}
	return r.send(ctx, in, BackToMenuBlocks(fmt.Sprintf(
		"Tokens have been successfully transferred <%s|to your wallet!> :tada:", r.net.WalletURL))...)
}

func (r *Router) handleSendRewards(ctx context.Context, in Interaction) error {
	amount, err := near.ParseNEAR(in.ActionValue)
	if err != nil {
		return r.send(ctx, in, BackToMenuBlocks(fmt.Sprintf(
			"Hmm, %q does not look like an amount of Near tokens. Please try again.", in.ActionValue))...)
	}
	target, ok, err := r.ledger.RewardTarget(in.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return r.send(ctx, in, BackToMenuBlocks(
			"I lost track of who you wanted to reward. Please react to their message again.")...)
	}
	return r.send(ctx, in, BackToMenuBlocks(fmt.Sprintf(
		"To send *%s Near* to <@%s> please confirm the transfer by <%s/sendMoney/%s/%s/%s|the following link>",
		amount.FormatNEAR(), target, r.net.Endpoints.APIHost, target, r.gateway.ContractName(), amount.FormatNEAR()))...)
}

// Nomination mirrors the contract's get_nomination return value. Amount is a
// json.Number: reward sums are yoctoNEAR integers far beyond float range.
type Nomination struct {
	Title      string          `json:"title"`
	Amount     json.Number     `json:"amount"`
	IsValid    bool            `json:"is_valid"`
	Nominators []NominationRow `json:"nominators"`
}

func (r *Router) handleNominationMenu(ctx context.Context, in Interaction) error {
	raw, err := r.call(ctx, in.TraceID, in.UserID, "get_nomination",
		fmt.Sprintf(`{"owner":%q}`, in.UserID), nil)
	if err != nil {
		return err
	}
	var nom Nomination
	if err := json.Unmarshal([]byte(raw), &nom); err != nil {
		return fmt.Errorf("decode nomination %q: %w", raw, err)
	}
	sort.SliceStable(nom.Nominators, func(i, j int) bool {
		return nom.Nominators[i].Votes < nom.Nominators[j].Votes
	})
	return r.send(ctx, in, NominationTableBlocks(nom.Title, nom.Nominators, nom.IsValid)...)
}

func (r *Router) handleNominationFinish(ctx context.Context, in Interaction) error {
	raw, err := r.call(ctx, in.TraceID, in.UserID, "finish_nomination",
		fmt.Sprintf(`{"owner":%q}`, in.UserID), nil)
	if err != nil {
		return err
	}
	var result struct {
		Nomination string `json:"nomination"`
		Winner     string `json:"winner"`
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return fmt.Errorf("decode finish_nomination %q: %w", raw, err)
	}
	if result.Winner != "" {
		if _, _, err := r.slack.PostMessageContext(ctx, result.Winner,
			slack.MsgOptionBlocks(WinnerBlocks(result.Nomination)...)); err != nil {
			slog.Warn("congratulate winner", "winner", result.Winner, "error", err)
		}
	}
	return r.send(ctx, in, BackToMenuBlocks(fmt.Sprintf(
		"The nomination *\"%s\"* has been finished, the winner is <@%s>! :tada:",
		result.Nomination, result.Winner))...)
}

// HandleViewSubmission processes the nomination modal. The originating channel
// rides in the view's private metadata.
func (r *Router) HandleViewSubmission(ctx context.Context, cb *slack.InteractionCallback) {
	values := cb.View.State.Values
	title := values[nominationTitleBlock][nominationTitleAction].Value
	rawAmount := values[nominationAmountBlock][nominationAmountAction].Value
	channelID := cb.View.PrivateMetadata
	userID := cb.User.ID
	traceID := uuid.NewString()

	amount, err := near.ParseNEAR(rawAmount)
	if err != nil {
		r.ephemeral(ctx, channelID, userID, BackToMenuBlocks(fmt.Sprintf(
			"Hmm, %q does not look like an amount of Near tokens. Please try again.", rawAmount)))
		return
	}
	link := fmt.Sprintf("%s/createNomination/%s/%s/%s?channel=%s",
		r.net.Endpoints.APIHost, userID, url.PathEscape(title), amount.FormatNEAR(),
		url.QueryEscape(channelID))
	r.ephemeral(ctx, channelID, userID, ConfirmationBlocks(fmt.Sprintf(
		"To create the nomination *\"%s\"* please confirm the *%s Near* deposit by <%s|the following link>",
		title, amount.FormatNEAR(), link)))
	if err := r.ledger.RecordInteraction(traceID, userID, nominationModalCallback, "ok"); err != nil {
		slog.Warn("record interaction", "error", err)
	}
}

// HandleAppMention answers a mention with the menu, shaped by login state.
func (r *Router) HandleAppMention(ctx context.Context, userID, channelID string) {
	r.ephemeral(ctx, channelID, userID, MenuBlocks(r.IsLoggedIn(ctx, userID)))
}

// HandleReaction turns a recognized reaction into a reward prompt for the
// reacting user, remembering the reacted-to author as their reward target.
func (r *Router) HandleReaction(ctx context.Context, reaction, userID, itemUserID, channelID string) {
	if reaction != reactionNearIcon && reaction != reactionEnthusiasm {
		return
	}
	r.promptReward(ctx, userID, itemUserID, channelID)
}

// HandleShortcut is the message-action path to the same reward prompt: the
// message author becomes the reward target.
func (r *Router) HandleShortcut(ctx context.Context, userID, messageUserID, channelID string) {
	r.promptReward(ctx, userID, messageUserID, channelID)
}

func (r *Router) promptReward(ctx context.Context, userID, targetUserID, channelID string) {
	if userID == targetUserID || targetUserID == "" {
		return
	}
	if !r.IsLoggedIn(ctx, userID) {
		r.ephemeral(ctx, channelID, userID, NotAuthorizedBlocks())
		return
	}
	if err := r.ledger.SetRewardTarget(userID, targetUserID); err != nil {
		slog.Error("set reward target", "user", userID, "error", err)
		return
	}
	r.ephemeral(ctx, channelID, userID, RewardPromptBlocks(targetUserID))
}

// LinkWallet associates a wallet account with a Slack user, on the contract
// and in the local cache.
func (r *Router) LinkWallet(ctx context.Context, slackID, accountID string) error {
	_, err := r.call(ctx, uuid.NewString(), slackID, "associate_wallet_with_slack",
		fmt.Sprintf(`{"slack_account_id":%q,"near_account_id":%q}`, slackID, accountID), nil)
	if err != nil {
		return err
	}
	if err := r.ledger.SaveWalletLink(slackID, accountID); err != nil {
		slog.Warn("cache wallet link", "user", slackID, "error", err)
	}
	return nil
}

// ErrUnconfirmedDeposit is returned by confirmation flows when the referenced
// transaction carries no transfer.
var ErrUnconfirmedDeposit = fmt.Errorf("transferred amount is not confirmed")

// ConfirmSendMoney finishes the reward flow after the wallet redirect: the
// deposit is read back from the chain and forwarded to the target through
// send_reward. Each transaction hash is honored exactly once.
func (r *Router) ConfirmSendMoney(ctx context.Context, targetSlackID, txHash string) error {
	deposit, err := r.gateway.DepositAmount(ctx, txHash)
	if err != nil {
		return err
	}
	if deposit == nil || deposit.IsZero() {
		return fmt.Errorf("%w: transaction hash: %s", ErrUnconfirmedDeposit, txHash)
	}
	first, err := r.ledger.MarkTxProcessed(txHash, "send_reward")
	if err != nil {
		return err
	}
	if !first {
		slog.Info("send_reward replay ignored", "tx", txHash)
		return nil
	}
	_, err = r.call(ctx, uuid.NewString(), targetSlackID, "send_reward",
		fmt.Sprintf(`{"slack_account_id":%q}`, targetSlackID), deposit)
	if err != nil {
		return err
	}
	r.directMessage(ctx, targetSlackID, ConfirmationBlocks(fmt.Sprintf(
		"You have received *%s Near*! :tada:", deposit.FormatNEAR()),
		primaryButton(actionBalance, "Balance"), menuButton()))
	return nil
}

// ConfirmNomination finishes the nomination flow: the deposit transferred by
// the owner backs the create_nomination call. channelID may be empty; when
// set, every member of that channel gets a voting request.
func (r *Router) ConfirmNomination(ctx context.Context, ownerSlackID, title, txHash, channelID string) error {
	deposit, err := r.gateway.DepositAmount(ctx, txHash)
	if err != nil {
		return err
	}
	if deposit == nil || deposit.IsZero() {
		return fmt.Errorf("%w: transaction hash: %s", ErrUnconfirmedDeposit, txHash)
	}
	first, err := r.ledger.MarkTxProcessed(txHash, "create_nomination")
	if err != nil {
		return err
	}
	if !first {
		slog.Info("create_nomination replay ignored", "tx", txHash)
		return nil
	}
	_, err = r.call(ctx, uuid.NewString(), ownerSlackID, "create_nomination",
		fmt.Sprintf(`{"owner":%q,"title":%q}`, ownerSlackID, title), deposit)
	if err != nil {
		return err
	}
	r.directMessage(ctx, ownerSlackID, BackToMenuBlocks(
		fmt.Sprintf("The nomination *\"%s\"* has been created! :white_check_mark:", title)))
	if channelID != "" {
		r.SendVotingRequest(ctx, channelID, title)
	}
	return nil
}

// ConfirmVote acknowledges a vote submitted from the voter's own wallet. The
// add_vote call itself happens browser-side; here we only dedupe and thank.
func (r *Router) ConfirmVote(ctx context.Context, ownerSlackID, txHash string) error {
	if txHash != "" {
		if _, err := r.ledger.MarkTxProcessed(txHash, "add_vote"); err != nil {
			return err
		}
	}
	r.directMessage(ctx, ownerSlackID, BackToMenuBlocks("Thank you for your vote! :ballot_box_with_ballot:"))
	return nil
}

// SendVotingRequest DMs every member of the channel asking them to vote.
func (r *Router) SendVotingRequest(ctx context.Context, channelID, title string) {
	params := &slack.GetUsersInConversationParameters{ChannelID: channelID, Limit: 200}
	for {
		members, cursor, err := r.slack.GetUsersInConversationContext(ctx, params)
		if err != nil {
			slog.Error("list channel members", "channel", channelID, "error", err)
			return
		}
		for _, member := range members {
			if _, _, err := r.slack.PostMessageContext(ctx, member,
				slack.MsgOptionBlocks(VotingRequestBlocks(member, title)...)); err != nil {
				slog.Warn("voting request", "member", member, "error", err)
			}
		}
		if cursor == "" {
			return
		}
		params.Cursor = cursor
	}
}

// call wraps gateway calls with audit publishing.
func (r *Router) call(ctx context.Context, traceID, slackUser, method, argsJSON string, deposit *near.Amount) (string, error) {
	started := time.Now()
	out, err := r.gateway.Call(ctx, method, argsJSON, deposit)
	outcome := "ok"
	if err != nil {
		outcome = err.Error()
	}
	ev := audit.Event{
		TraceID:   traceID,
		SlackUser: slackUser,
		Method:    method,
		Outcome:   outcome,
		ElapsedMS: time.Since(started).Milliseconds(),
		At:        time.Now().UTC(),
	}
	if deposit != nil {
		ev.Deposit = deposit.String()
	}
	r.audit.Publish(ctx, ev)
	return out, err
}

func (r *Router) send(ctx context.Context, in Interaction, blocks ...slack.Block) error {
	if in.ResponseURL != "" {
		return r.respond(ctx, in.ResponseURL, &slack.WebhookMessage{
			Blocks:          &slack.Blocks{BlockSet: blocks},
			ReplaceOriginal: true,
		})
	}
	_, err := r.slack.PostEphemeralContext(ctx, in.ChannelID, in.UserID, slack.MsgOptionBlocks(blocks...))
	return err
}

func (r *Router) sendError(ctx context.Context, in Interaction) {
	if err := r.send(ctx, in, BackToMenuBlocks("Ooops, something went wrong. Please try again later.")...); err != nil {
		slog.Warn("send error fallback", "trace", in.TraceID, "error", err)
	}
}

func (r *Router) ephemeral(ctx context.Context, channelID, userID string, blocks []slack.Block) {
	if _, err := r.slack.PostEphemeralContext(ctx, channelID, userID,
		slack.MsgOptionBlocks(blocks...)); err != nil {
		slog.Warn("post ephemeral", "channel", channelID, "user", userID, "error", err)
	}
}

func (r *Router) directMessage(ctx context.Context, userID string, blocks []slack.Block) {
	if _, _, err := r.slack.PostMessageContext(ctx, userID,
		slack.MsgOptionBlocks(blocks...)); err != nil {
		slog.Warn("direct message", "user", userID, "error", err)
	}
}
