package bot

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/slack-go/slack"

	"github.com/enthusiasm-bot/enthusiasm/internal/audit"
	"github.com/enthusiasm-bot/enthusiasm/internal/config"
	"github.com/enthusiasm-bot/enthusiasm/internal/ledger"
	"github.com/enthusiasm-bot/enthusiasm/internal/near"
)

type gatewayCall struct {
	method  string
	args    string
	deposit *near.Amount
}

type fakeGateway struct {
	results  map[string]string
	deposits map[string]*near.Amount
	callErr  error
	calls    []gatewayCall
}

func (g *fakeGateway) Call(_ context.Context, method, args string, deposit *near.Amount) (string, error) {
	g.calls = append(g.calls, gatewayCall{method: method, args: args, deposit: deposit})
	if g.callErr != nil {
		return "", g.callErr
	}
	return g.results[method], nil
}

func (g *fakeGateway) DepositAmount(_ context.Context, txHash string) (*near.Amount, error) {
	return g.deposits[txHash], nil
}

func (g *fakeGateway) ContractName() string { return "rewards.testnet" }

func (g *fakeGateway) callCount(method string) int {
	n := 0
	for _, c := range g.calls {
		if c.method == method {
			n++
		}
	}
	return n
}

type fakeSlack struct {
	ephemerals []string // channel/user pairs
	messages   []string // channel ids
	views      []slack.ModalViewRequest
	members    []string
}

func (s *fakeSlack) PostEphemeralContext(_ context.Context, channelID, userID string, _ ...slack.MsgOption) (string, error) {
	s.ephemerals = append(s.ephemerals, channelID+"/"+userID)
	return "", nil
}

func (s *fakeSlack) PostMessageContext(_ context.Context, channelID string, _ ...slack.MsgOption) (string, string, error) {
	s.messages = append(s.messages, channelID)
	return channelID, "", nil
}

func (s *fakeSlack) OpenViewContext(_ context.Context, _ string, view slack.ModalViewRequest) (*slack.ViewResponse, error) {
	s.views = append(s.views, view)
	return &slack.ViewResponse{}, nil
}

func (s *fakeSlack) GetUsersInConversationContext(_ context.Context, _ *slack.GetUsersInConversationParameters) ([]string, string, error) {
	return s.members, "", nil
}

type routerFixture struct {
	router  *Router
	gateway *fakeGateway
	slack   *fakeSlack
	ledger  *ledger.Service
	sent    *[][]slack.Block
}

func newTestRouter(t *testing.T) *routerFixture {
	t.Helper()
	led, err := ledger.NewService(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	t.Cleanup(func() { _ = led.Close() })

	gw := &fakeGateway{results: map[string]string{}, deposits: map[string]*near.Amount{}}
	api := &fakeSlack{}
	net := config.NetworkConfig{
		NetworkID:    "testnet",
		ContractName: "rewards.testnet",
		WalletURL:    "https://wallet.testnet.near.org",
		Endpoints:    config.Endpoints{APIHost: "http://localhost:3000"},
	}
	r := NewRouter(net, api, gw, led, audit.NopPublisher{})

	var sent [][]slack.Block
	r.SetResponder(func(_ context.Context, _ string, msg *slack.WebhookMessage) error {
		sent = append(sent, msg.Blocks.BlockSet)
		return nil
	})
	return &routerFixture{router: r, gateway: gw, slack: api, ledger: led, sent: &sent}
}

func sectionTexts(blocks []slack.Block) []string {
	var texts []string
	for _, b := range blocks {
		if s, ok := b.(*slack.SectionBlock); ok && s.Text != nil {
			texts = append(texts, s.Text.Text)
		}
	}
	return texts
}

func buttonActions(blocks []slack.Block) []string {
	var ids []string
	for _, b := range blocks {
		ab, ok := b.(*slack.ActionBlock)
		if !ok || ab.Elements == nil {
			continue
		}
		for _, el := range ab.Elements.ElementSet {
			if btn, ok := el.(*slack.ButtonBlockElement); ok {
				ids = append(ids, btn.ActionID)
			}
		}
	}
	return ids
}

func menuCallback(userID, optionValue string) *slack.InteractionCallback {
	return &slack.InteractionCallback{
		User:        slack.User{ID: userID},
		Channel:     slack.Channel{GroupConversation: slack.GroupConversation{Conversation: slack.Conversation{ID: "C1"}}},
		ResponseURL: "https://hooks.slack.test/respond",
		ActionCallback: slack.ActionCallbacks{BlockActions: []*slack.BlockAction{{
			ActionID:       actionMenu,
			SelectedOption: slack.OptionBlockObject{Value: optionValue},
		}}},
	}
}

func directCallback(userID, actionID string) *slack.InteractionCallback {
	return &slack.InteractionCallback{
		User:        slack.User{ID: userID},
		Channel:     slack.Channel{GroupConversation: slack.GroupConversation{Conversation: slack.Conversation{ID: "C1"}}},
		ResponseURL: "https://hooks.slack.test/respond",
		ActionCallback: slack.ActionCallbacks{BlockActions: []*slack.BlockAction{{
			ActionID: actionID,
		}}},
	}
}

func TestMenuSelectionRoutesLikeDirectAction(t *testing.T) {
	viaMenu := NewInteraction(menuCallback("U1", actionLogin))
	direct := NewInteraction(directCallback("U1", actionLogin))
	if viaMenu.ActionID != direct.ActionID {
		t.Fatalf("menu selection routed to %q, direct to %q", viaMenu.ActionID, direct.ActionID)
	}

	f := newTestRouter(t)
	f.router.Dispatch(context.Background(), viaMenu)
	f.router.Dispatch(context.Background(), direct)
	if len(*f.sent) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(*f.sent))
	}
	first := sectionTexts((*f.sent)[0])
	second := sectionTexts((*f.sent)[1])
	if len(first) == 0 || first[0] != second[0] {
		t.Errorf("menu and direct login rendered different blocks: %v vs %v", first, second)
	}
}

func TestNominationRowsRenderAscendingByVotes(t *testing.T) {
	f := newTestRouter(t)
	f.gateway.results["get_nomination"] =
		`{"title":"MVP","amount":10000000000000000000000000,"is_valid":true,` +
			`"nominators":[{"slack_user":"UA","votes":3},{"slack_user":"UB","votes":1}]}`

	f.router.Dispatch(context.Background(), NewInteraction(directCallback("U1", actionNominationMenu)))
	if len(*f.sent) != 1 {
		t.Fatalf("expected 1 response, got %d", len(*f.sent))
	}
	texts := sectionTexts((*f.sent)[0])
	joined := strings.Join(texts, "\n")
	ubAt := strings.Index(joined, "<@UB>")
	uaAt := strings.Index(joined, "<@UA>")
	if ubAt < 0 || uaAt < 0 {
		t.Fatalf("rows missing from render: %v", texts)
	}
	if ubAt > uaAt {
		t.Errorf("rows not ascending by votes: UB (1 vote) rendered after UA (3 votes)")
	}
}

func TestBalanceOffersWithdrawOnlyWhenPositive(t *testing.T) {
	f := newTestRouter(t)
	f.gateway.results["get_rewards"] = "2500000000000000000000000" // 2.5 NEAR
	f.router.Dispatch(context.Background(), NewInteraction(directCallback("U1", actionBalance)))

	actions := buttonActions((*f.sent)[0])
	found := false
	for _, id := range actions {
		if id == actionWithdraw {
			found = true
		}
	}
	if !found {
		t.Errorf("positive balance should offer withdraw, buttons: %v", actions)
	}

	f.gateway.results["get_rewards"] = "0"
	f.router.Dispatch(context.Background(), NewInteraction(directCallback("U1", actionBalance)))
	for _, id := range buttonActions((*f.sent)[1]) {
		if id == actionWithdraw {
			t.Errorf("zero balance must not offer withdraw")
		}
	}
}

func TestWithdrawWithEmptyBalance(t *testing.T) {
	f := newTestRouter(t)
	f.gateway.results["get_rewards"] = "0"
	f.router.Dispatch(context.Background(), NewInteraction(directCallback("U1", actionWithdraw)))

	if f.gateway.callCount("withdraw_rewards") != 0 {
		t.Errorf("withdraw_rewards must not be called with nothing to withdraw")
	}
	texts := sectionTexts((*f.sent)[0])
	if len(texts) == 0 || !strings.Contains(texts[0], "nothing to withdraw") {
		t.Errorf("expected empty-balance message, got %v", texts)
	}
}

func TestConfirmSendMoneyIsIdempotentPerTxHash(t *testing.T) {
	f := newTestRouter(t)
	deposit, _ := near.ParseNEAR("5")
	f.gateway.deposits["TX1"] = deposit

	if err := f.router.ConfirmSendMoney(context.Background(), "UTARGET", "TX1"); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if err := f.router.ConfirmSendMoney(context.Background(), "UTARGET", "TX1"); err != nil {
		t.Fatalf("replay confirm: %v", err)
	}
	if n := f.gateway.callCount("send_reward"); n != 1 {
		t.Errorf("send_reward invoked %d times for one tx hash", n)
	}
}

func TestConfirmSendMoneyRejectsNonTransferTx(t *testing.T) {
	f := newTestRouter(t)
	err := f.router.ConfirmSendMoney(context.Background(), "UTARGET", "TXNONE")
	if !errors.Is(err, ErrUnconfirmedDeposit) {
		t.Fatalf("expected ErrUnconfirmedDeposit, got %v", err)
	}
	if f.gateway.callCount("send_reward") != 0 {
		t.Errorf("send_reward must not run for unconfirmed transfers")
	}
}

func TestReactionSetsPerUserRewardTarget(t *testing.T) {
	f := newTestRouter(t)
	f.gateway.results["get_wallet"] = "alice.testnet"

	f.router.HandleReaction(context.Background(), reactionNearIcon, "UA", "UTARGET_A", "C1")
	f.router.HandleReaction(context.Background(), reactionEnthusiasm, "UB", "UTARGET_B", "C1")

	target, ok, err := f.ledger.RewardTarget("UA")
	if err != nil || !ok || target != "UTARGET_A" {
		t.Fatalf("UA target = (%q, %v, %v)", target, ok, err)
	}
	target, ok, _ = f.ledger.RewardTarget("UB")
	if !ok || target != "UTARGET_B" {
		t.Fatalf("UB target = %q; concurrent users must not clobber each other", target)
	}
	if len(f.slack.ephemerals) != 2 {
		t.Errorf("expected 2 reward prompts, got %d", len(f.slack.ephemerals))
	}
}

func TestUnrelatedReactionIgnored(t *testing.T) {
	f := newTestRouter(t)
	f.router.HandleReaction(context.Background(), "thumbsup", "UA", "UB", "C1")
	if len(f.slack.ephemerals) != 0 {
		t.Errorf("unrelated reaction should be ignored")
	}
}

func TestDispatchSurfacesGatewayErrors(t *testing.T) {
	f := newTestRouter(t)
	f.gateway.callErr = errors.New("rpc unreachable")
	f.router.Dispatch(context.Background(), NewInteraction(directCallback("U1", actionBalance)))

	if len(*f.sent) != 1 {
		t.Fatalf("expected a fallback response, got %d", len(*f.sent))
	}
	texts := sectionTexts((*f.sent)[0])
	if len(texts) == 0 || !strings.Contains(texts[0], "something went wrong") {
		t.Errorf("gateway error should produce a visible fallback, got %v", texts)
	}
	n, err := f.ledger.InteractionCount()
	if err != nil || n != 1 {
		t.Errorf("failed interaction should still be recorded: (%d, %v)", n, err)
	}
}

func TestNominationModalOpens(t *testing.T) {
	f := newTestRouter(t)
	f.router.Dispatch(context.Background(), NewInteraction(directCallback("U1", actionNominationNew)))
	if len(f.slack.views) != 1 {
		t.Fatalf("expected one opened view, got %d", len(f.slack.views))
	}
	view := f.slack.views[0]
	if view.CallbackID != nominationModalCallback {
		t.Errorf("callback id = %q", view.CallbackID)
	}
	if view.PrivateMetadata != "C1" {
		t.Errorf("private metadata should carry the channel, got %q", view.PrivateMetadata)
	}
}

func TestVotingRequestReachesAllMembers(t *testing.T) {
	f := newTestRouter(t)
	f.slack.members = []string{"U1", "U2", "U3"}
	f.router.SendVotingRequest(context.Background(), "C1", "MVP")
	if len(f.slack.messages) != 3 {
		t.Errorf("expected 3 voting DMs, got %d", len(f.slack.messages))
	}
}
